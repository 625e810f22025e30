// Package refine implements offline model refinement: given labeled
// traces (a target node's expected activation for each trace), it searches
// for graph mutations that reduce the target's diagnosis error.
package refine

import (
	"go.uber.org/zap"

	"github.com/mrhapile/rtfpg-diagnoser/pkg/ingest"
	"github.com/mrhapile/rtfpg-diagnoser/pkg/logic"
	"github.com/mrhapile/rtfpg-diagnoser/pkg/model"
)

// LabeledTrace pairs a pre-populated SignalIngestor with the ground-truth
// activation label for whatever node is currently being refined.
type LabeledTrace struct {
	Ingestor           *ingest.SignalIngestor
	ExpectedActivation bool
}

// Optimizer mutates a Graph in place to reduce a target node's diagnosis
// error against a labeled dataset.
type Optimizer struct {
	graph *model.Graph
	log   *zap.Logger
}

// New builds an Optimizer over graph. Mutations made by Refine are applied
// directly to graph.
func New(graph *model.Graph, log *zap.Logger) *Optimizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Optimizer{graph: graph, log: log}
}

// DiagnosisError instantiates a fresh Logic Engine per trace and measures
// the fraction of traces where the target node's simulated activation
// disagrees with the trace's expected activation. Re-running the engine
// per trace per call is the dominant cost of refinement; it is also what
// keeps each measurement independent of any other trace's history.
func (o *Optimizer) DiagnosisError(targetNodeID string, dataset []LabeledTrace) float64 {
	if len(dataset) == 0 {
		return 0.0
	}

	var misclassifications int
	for _, trace := range dataset {
		engine := logic.New(o.graph, trace.Ingestor, nil)
		engine.FindActiveHypotheses()
		isActive := engine.NodeStates()[targetNodeID].IsActive
		if isActive != trace.ExpectedActivation {
			misclassifications++
		}
	}
	return float64(misclassifications) / float64(len(dataset))
}

// MinimalCutSet returns every ancestor of nodeID reached by a backward
// breadth-first search over the graph's edges.
func (o *Optimizer) MinimalCutSet(nodeID string) map[string]struct{} {
	mcs := make(map[string]struct{})
	visited := map[string]bool{nodeID: true}
	queue := []string{nodeID}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, edge := range o.graph.Edges {
			if edge.To != curr {
				continue
			}
			mcs[edge.From] = struct{}{}
			if !visited[edge.From] {
				visited[edge.From] = true
				queue = append(queue, edge.From)
			}
		}
	}
	return mcs
}

// Refine greedily mutates the graph to reduce targetNodeID's diagnosis
// error against dataset, drawing new nodes from candidates when internal
// restructuring isn't enough. It tries, in order, at each recursion level:
//
//  1. Successor descent: recurse on the first outgoing neighbor whose own
//     diagnosis error is no worse than the current node's.
//  2. Internal edge addition: try wiring in an existing discrepancy node
//     that isn't already an ancestor; keep the edge and recurse on the same
//     node if it strictly reduces the error, else revert.
//  3. Node expansion: try adding a fresh candidate node, first as a direct
//     child of the current node, then, if that alone doesn't help the new
//     node's own error, as a child of one of the current node's parents;
//     keep whichever wiring helps and recurse, else discard the candidate
//     entirely.
//
// The recursion terminates because diagnosis error is bounded and rational
// in [0, 1] and each accepted step strictly decreases it or the current
// call returns.
func (o *Optimizer) Refine(targetNodeID string, candidates []model.Node, dataset []LabeledTrace) {
	currentDE := o.DiagnosisError(targetNodeID, dataset)
	if currentDE == 0.0 {
		return
	}

	o.log.Debug("refining node", zap.String("node_id", targetNodeID), zap.Float64("diagnosis_error", currentDE))

	if o.trySuccessorDescent(targetNodeID, currentDE, candidates, dataset) {
		return
	}
	if o.tryInternalEdgeAddition(targetNodeID, currentDE, candidates, dataset) {
		return
	}
	o.tryNodeExpansion(targetNodeID, currentDE, candidates, dataset)
}

func (o *Optimizer) trySuccessorDescent(targetNodeID string, currentDE float64, candidates []model.Node, dataset []LabeledTrace) bool {
	for _, edge := range o.graph.Edges {
		if edge.From != targetNodeID {
			continue
		}
		successorDE := o.DiagnosisError(edge.To, dataset)
		if successorDE <= currentDE {
			o.log.Debug("traversing to successor", zap.String("from", targetNodeID), zap.String("to", edge.To))
			o.Refine(edge.To, candidates, dataset)
			return true
		}
	}
	return false
}

func (o *Optimizer) tryInternalEdgeAddition(targetNodeID string, currentDE float64, candidates []model.Node, dataset []LabeledTrace) bool {
	mcs := o.MinimalCutSet(targetNodeID)
	for _, node := range o.graph.Nodes {
		if node.Type != model.Discrepancy || node.ID == targetNodeID {
			continue
		}
		if _, ancestor := mcs[node.ID]; ancestor {
			continue
		}

		o.graph.AddEdge(model.Edge{From: node.ID, To: targetNodeID, TimeMinMs: 0, TimeMaxMs: 1000})
		newDE := o.DiagnosisError(targetNodeID, dataset)
		if newDE < currentDE {
			o.log.Debug("added internal edge", zap.String("from", node.ID), zap.String("to", targetNodeID))
			o.Refine(targetNodeID, candidates, dataset)
			return true
		}
		o.graph.RemoveEdge(node.ID, targetNodeID)
	}
	return false
}

func (o *Optimizer) tryNodeExpansion(targetNodeID string, currentDE float64, candidates []model.Node, dataset []LabeledTrace) {
	for _, candidate := range candidates {
		if o.graph.HasNode(candidate.ID) {
			continue
		}

		o.graph.AddNode(candidate)

		o.graph.AddEdge(model.Edge{From: targetNodeID, To: candidate.ID, TimeMinMs: 0, TimeMaxMs: 1000})
		candidateDE := o.DiagnosisError(candidate.ID, dataset)
		if candidateDE < currentDE {
			o.log.Debug("expanded via new child", zap.String("from", targetNodeID), zap.String("to", candidate.ID))
			o.Refine(candidate.ID, candidates, dataset)
			return
		}
		o.graph.RemoveEdge(targetNodeID, candidate.ID)

		improved := false
		for _, predecessorID := range o.graph.Predecessors(targetNodeID) {
			o.graph.AddEdge(model.Edge{From: predecessorID, To: candidate.ID, TimeMinMs: 0, TimeMaxMs: 1000})
			newDE := o.DiagnosisError(targetNodeID, dataset)
			if newDE < currentDE {
				o.log.Debug("expanded via predecessor", zap.String("predecessor", predecessorID), zap.String("to", candidate.ID))
				improved = true
				break
			}
			o.graph.RemoveEdge(predecessorID, candidate.ID)
		}

		if improved {
			o.Refine(targetNodeID, candidates, dataset)
			return
		}

		o.graph.RemoveNode(candidate.ID)
	}
}
