// Package prognosis estimates the time remaining until a currently-active
// state front reaches a node at or above a criticality threshold.
package prognosis

import (
	"container/heap"
	"math"

	"go.uber.org/zap"

	"github.com/mrhapile/rtfpg-diagnoser/pkg/model"
)

type adjEntry struct {
	to        string
	timeMinMs int
}

// Manager pre-builds a node lookup and a forward adjacency list keyed by
// each edge's minimum propagation time, so Time-To-Criticality searches
// don't rescan the full edge list per query.
type Manager struct {
	nodeMap map[string]model.Node
	adj     map[string][]adjEntry
	log     *zap.Logger
}

// New builds a Manager over graph.
func New(graph *model.Graph, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		nodeMap: make(map[string]model.Node, len(graph.Nodes)),
		adj:     make(map[string][]adjEntry),
		log:     log,
	}
	for _, n := range graph.Nodes {
		m.nodeMap[n.ID] = n
	}
	for _, e := range graph.Edges {
		m.adj[e.From] = append(m.adj[e.From], adjEntry{to: e.To, timeMinMs: e.TimeMinMs})
	}
	return m
}

type queueItem struct {
	dist float64
	id   string
}

type priorityQueue []queueItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(queueItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// TimeToCriticality runs a Dijkstra-style search over minimum propagation
// time, seeded from every currently-active node at its recorded activation
// time. It returns the first node reached that meets or exceeds
// criticalityThreshold and is not already active (skipping past an
// already-active critical node lets the search find the *next* critical
// event rather than reporting one that has already happened).
//
// Arrival times earlier than currentTimeMs are rejected outright: a stalled
// AND-gate can otherwise leave a phantom prediction permanently "overdue".
// Downstream nodes that are already active are never relaxed through,
// since an observed activation time always wins over a predicted one.
func (m *Manager) TimeToCriticality(states map[string]model.NodeState, criticalityThreshold int, currentTimeMs float64) model.PrognosisResult {
	pq := &priorityQueue{}
	heap.Init(pq)
	minDist := make(map[string]float64)

	for id, state := range states {
		if !state.IsActive {
			continue
		}
		start := float64(state.ActivationTimeMs)
		minDist[id] = start
		heap.Push(pq, queueItem{dist: start, id: id})
	}

	for pq.Len() > 0 {
		top := heap.Pop(pq).(queueItem)
		d, u := top.dist, top.id

		if node, ok := m.nodeMap[u]; ok && node.CriticalityLevel >= criticalityThreshold {
			if state, active := states[u]; !active || !state.IsActive {
				m.log.Debug("critical node reached",
					zap.String("node_id", u),
					zap.Float64("ttc_ms", d-currentTimeMs))
				return model.PrognosisResult{TTC: d - currentTimeMs, CriticalNodeID: u}
			}
		}

		if best, ok := minDist[u]; ok && d > best {
			continue
		}

		for _, edge := range m.adj[u] {
			if state, ok := states[edge.to]; ok && state.IsActive {
				continue
			}
			arrival := d + float64(edge.timeMinMs)
			if arrival < currentTimeMs {
				continue
			}
			if best, ok := minDist[edge.to]; !ok || best > arrival {
				minDist[edge.to] = arrival
				heap.Push(pq, queueItem{dist: arrival, id: edge.to})
			}
		}
	}

	return model.PrognosisResult{TTC: math.Inf(1), CriticalNodeID: ""}
}
