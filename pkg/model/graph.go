package model

// Graph holds the static rTFPG definition G = <F, D, E, ET, DC, DP>: the
// signal catalog plus the node and edge slices refinement operates on.
//
// Mutations mirror the reference implementation: AddNode is idempotent on
// id, RemoveNode cascades to every touching edge, and RemoveEdge removes
// every edge matching the (from, to) pair, not just the first.
type Graph struct {
	Signals []Signal
	Nodes   []Node
	Edges   []Edge
}

// NewGraph builds a Graph from already-parsed signals, nodes and edges.
func NewGraph(signals []Signal, nodes []Node, edges []Edge) *Graph {
	return &Graph{Signals: signals, Nodes: nodes, Edges: edges}
}

// NodeByID performs a linear scan for the node with the given id, mirroring
// the reference implementation which rebuilds a lookup map from this same
// slice at each component's construction rather than maintaining one live.
func (g *Graph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// NodeByName performs a linear scan for the node with the given name, used
// by fault-injection resolution when a stream references a node by its
// human-readable name instead of its id.
func (g *Graph) NodeByName(name string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// SignalByID performs a linear scan for the signal with the given id.
func (g *Graph) SignalByID(id string) (Signal, bool) {
	for _, s := range g.Signals {
		if s.ID == id {
			return s, true
		}
	}
	return Signal{}, false
}

// CriticalityFront returns every node with CriticalityLevel >= n.
func (g *Graph) CriticalityFront(n int) []Node {
	var front []Node
	for _, node := range g.Nodes {
		if node.CriticalityLevel >= n {
			front = append(front, node)
		}
	}
	return front
}

// AddNode appends node unless a node with the same id already exists, in
// which case the call is a no-op.
func (g *Graph) AddNode(node Node) {
	if _, ok := g.NodeByID(node.ID); ok {
		return
	}
	g.Nodes = append(g.Nodes, node)
}

// RemoveNode deletes the node with the given id, along with every edge that
// touches it as either endpoint.
func (g *Graph) RemoveNode(id string) {
	nodes := g.Nodes[:0]
	for _, n := range g.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	g.Nodes = nodes

	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if e.From != id && e.To != id {
			edges = append(edges, e)
		}
	}
	g.Edges = edges
}

// AddEdge appends edge unconditionally; duplicate (from, to) pairs are
// permitted, matching the reference implementation.
func (g *Graph) AddEdge(edge Edge) {
	g.Edges = append(g.Edges, edge)
}

// RemoveEdge deletes every edge whose (From, To) matches the given pair.
func (g *Graph) RemoveEdge(from, to string) {
	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if !(e.From == from && e.To == to) {
			edges = append(edges, e)
		}
	}
	g.Edges = edges
}

// HasNode reports whether a node with the given id exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.NodeByID(id)
	return ok
}

// Predecessors returns the ids of every node with an edge into id.
func (g *Graph) Predecessors(id string) []string {
	var preds []string
	for _, e := range g.Edges {
		if e.To == id {
			preds = append(preds, e.From)
		}
	}
	return preds
}
