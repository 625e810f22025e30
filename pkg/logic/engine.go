// Package logic implements the reasoning core: it converts a signal trace
// into node activation state (the Mapping Function ΠG), then runs
// backward/forward hypothesis tracking over the activation graph to rank
// candidate Failure Modes.
package logic

import (
	"sort"

	"go.uber.org/zap"

	"github.com/mrhapile/rtfpg-diagnoser/pkg/ingest"
	"github.com/mrhapile/rtfpg-diagnoser/pkg/model"
)

// Engine determines which nodes are active based on the signal history held
// by its SignalIngestor, and tracks the resulting hypothesis graph.
type Engine struct {
	graph    *model.Graph
	ingestor *ingest.SignalIngestor
	states   map[string]model.NodeState
	log      *zap.Logger
}

// New builds an Engine over graph and ingestor. states starts zero-valued
// for every node in graph, matching the reference constructor.
func New(graph *model.Graph, ingestor *ingest.SignalIngestor, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		graph:    graph,
		ingestor: ingestor,
		states:   make(map[string]model.NodeState, len(graph.Nodes)),
		log:      log,
	}
	for _, n := range graph.Nodes {
		e.states[n.ID] = model.NodeState{}
	}
	return e
}

// NodeStates returns the current per-node activation state.
func (e *Engine) NodeStates() map[string]model.NodeState {
	return e.states
}

// calculateRobustness returns a positive value when the predicate is
// satisfied and negative when it is violated, normalized by the signal's
// range unless that range is degenerate.
func calculateRobustness(pred model.Predicate, value float64, sig model.Signal) float64 {
	var raw float64
	switch pred.Op {
	case ">":
		raw = value - pred.Threshold
	case "<":
		raw = pred.Threshold - value
	}
	if sig.DegenerateRange() {
		return raw
	}
	return raw / sig.Width()
}

// isFaultInjection decides whether sample represents a fault-injection
// branch rather than a sensor reading. An explicit IsFailureMode=true is
// authoritative; otherwise the sample is a sensor reading iff its
// parameter id matches a declared signal's source name.
func (e *Engine) isFaultInjection(sample model.DataSample) bool {
	if sample.IsFailureMode {
		return true
	}
	_, isSensor := e.signalBySourceName(sample.ParameterID)
	return !isSensor
}

func (e *Engine) signalBySourceName(name string) (model.Signal, bool) {
	for _, sig := range e.graph.Signals {
		if sig.SourceName == name {
			return sig, true
		}
	}
	return model.Signal{}, false
}

// evaluateSignalTrace resets every node state to zero and rebuilds it by
// replaying every ingested sample, evaluating discrepancy predicates for
// sensor readings and resolving fault-injection targets by id then by name.
// Robustness is unconditionally refreshed for inactive nodes even when the
// predicate is not yet satisfied, so it always reflects the most recent
// observation.
func (e *Engine) evaluateSignalTrace() {
	e.states = make(map[string]model.NodeState, len(e.graph.Nodes))
	for _, n := range e.graph.Nodes {
		e.states[n.ID] = model.NodeState{}
	}
	for _, sample := range e.ingestor.Samples() {
		if e.isFaultInjection(sample) {
			e.applyFaultInjection(sample)
			continue
		}
		e.applySensorReading(sample)
	}
}

func (e *Engine) applySensorReading(sample model.DataSample) {
	for _, node := range e.graph.Nodes {
		if node.Type != model.Discrepancy {
			continue
		}
		sig, ok := e.graph.SignalByID(node.Predicate.SignalRef)
		if !ok || sig.SourceName != sample.ParameterID {
			continue
		}

		robustness := calculateRobustness(node.Predicate, sample.Value, sig)
		state := e.states[node.ID]

		if !state.IsActive {
			state.Robustness = robustness
			e.states[node.ID] = state
		}

		if robustness > 0 && !state.IsActive {
			if e.gateSatisfied(node, sample.TimestampMs) {
				state.IsActive = true
				state.Robustness = robustness
				state.ActivationTimeMs = sample.TimestampMs
				state.TriggerValue = sample.Value
				e.states[node.ID] = state
				e.log.Debug("node activated",
					zap.String("node_id", node.ID),
					zap.String("node_name", node.Name),
					zap.Uint64("time_ms", sample.TimestampMs))
			}
		}
	}
}

// gateSatisfied reports whether node's activation gate accepts activation
// at timestampMs. OR gates have no precondition; AND gates require every
// parent to already be active and to have activated no later than
// timestampMs.
func (e *Engine) gateSatisfied(node model.Node, timestampMs uint64) bool {
	if node.GateType != model.GateAND {
		return true
	}
	for _, edge := range e.graph.Edges {
		if edge.To != node.ID {
			continue
		}
		parent := e.states[edge.From]
		if !parent.IsActive || parent.ActivationTimeMs > timestampMs {
			return false
		}
	}
	return true
}

func (e *Engine) applyFaultInjection(sample model.DataSample) {
	targetID := sample.ParameterID
	if !e.graph.HasNode(targetID) {
		if n, ok := e.graph.NodeByName(sample.ParameterID); ok {
			targetID = n.ID
		} else {
			return
		}
	}

	state := e.states[targetID]
	if !state.IsActive && sample.Value > 0 {
		state.IsActive = true
		state.ActivationTimeMs = sample.TimestampMs
		state.TriggerValue = sample.Value
		e.states[targetID] = state
		e.log.Debug("fault injected",
			zap.String("node_id", targetID),
			zap.Uint64("time_ms", sample.TimestampMs))
	}
}

// FindActiveHypotheses runs the full reasoning cycle: predicate evaluation,
// backward propagation to collect candidate failure modes, and forward
// propagation to score each candidate's plausibility and aggregate
// robustness. Only candidates with plausibility > 0 are returned, sorted by
// plausibility descending, then robustness descending, then node id
// ascending for determinism.
func (e *Engine) FindActiveHypotheses() []model.DiagnosisResult {
	e.evaluateSignalTrace()

	var activeSymptoms []string
	for id, state := range e.states {
		if !state.IsActive {
			continue
		}
		if node, ok := e.graph.NodeByID(id); ok && node.Type == model.Discrepancy {
			activeSymptoms = append(activeSymptoms, id)
		}
	}
	sort.Strings(activeSymptoms)

	candidates := make(map[string]struct{})
	for _, symptom := range activeSymptoms {
		e.backwardPropagate(symptom, candidates, make(map[string]bool))
	}

	var ranked []model.DiagnosisResult
	for fmID := range candidates {
		result := e.scoreCandidate(fmID)
		if result.Plausibility > 0.0 {
			ranked = append(ranked, result)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if diff := a.Plausibility - b.Plausibility; diff > 1e-6 || diff < -1e-6 {
			return a.Plausibility > b.Plausibility
		}
		if diff := a.Robustness - b.Robustness; diff > 1e-6 || diff < -1e-6 {
			return a.Robustness > b.Robustness
		}
		return a.Node.ID < b.Node.ID
	})

	return ranked
}

// backwardPropagate walks from currentID to every parent edge, collecting
// Failure Mode ancestors into candidates and recursing through Discrepancy
// ancestors that are active and whose activation falls inside the causal
// window of the edge that connects them. visited bounds each node to a
// single expansion per top-level symptom, avoiding the reference
// implementation's redundant re-expansion, without changing which Failure
// Modes are ultimately discovered.
func (e *Engine) backwardPropagate(currentID string, candidates map[string]struct{}, visited map[string]bool) {
	if visited[currentID] {
		return
	}
	visited[currentID] = true

	for _, edge := range e.graph.Edges {
		if edge.To != currentID {
			continue
		}
		parent, ok := e.graph.NodeByID(edge.From)
		if !ok {
			continue
		}

		if parent.Type == model.FailureMode {
			candidates[parent.ID] = struct{}{}
			continue
		}

		parentState, ok := e.states[parent.ID]
		if !ok || !parentState.IsActive {
			continue
		}
		childState := e.states[currentID]
		delta := float64(childState.ActivationTimeMs) - float64(parentState.ActivationTimeMs)
		if delta >= float64(edge.TimeMinMs) && delta <= float64(edge.TimeMaxMs) {
			e.backwardPropagate(parent.ID, candidates, visited)
		}
	}
}

// scoreCandidate runs forward BFS from fmID to collect its expected
// discrepancy descendants, then measures plausibility (consistent /
// expected) and aggregate robustness (mean robustness over every expected
// symptom, clamped to [-1, 1]).
func (e *Engine) scoreCandidate(fmID string) model.DiagnosisResult {
	expected := make(map[string]struct{})
	visited := map[string]bool{fmID: true}
	queue := []string{fmID}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, edge := range e.graph.Edges {
			if edge.From != u || visited[edge.To] {
				continue
			}
			visited[edge.To] = true
			queue = append(queue, edge.To)
			if node, ok := e.graph.NodeByID(edge.To); ok && node.Type == model.Discrepancy {
				expected[edge.To] = struct{}{}
			}
		}
	}

	var consistentCount int
	var sumRobustness float64
	var consistent []string
	symptomValues := make(map[string]float64)

	expectedIDs := make([]string, 0, len(expected))
	for id := range expected {
		expectedIDs = append(expectedIDs, id)
	}
	sort.Strings(expectedIDs)

	for _, id := range expectedIDs {
		state, ok := e.states[id]
		if !ok {
			continue
		}
		sumRobustness += state.Robustness
		if state.IsActive {
			consistentCount++
			consistent = append(consistent, id)
			symptomValues[id] = state.TriggerValue
		}
	}

	var plausibility float64
	if len(expected) > 0 {
		plausibility = float64(consistentCount) / float64(len(expected))
	}

	var aggregateRobustness float64
	if len(expected) > 0 {
		aggregateRobustness = sumRobustness / float64(len(expected))
		if aggregateRobustness > 1.0 {
			aggregateRobustness = 1.0
		}
		if aggregateRobustness < -1.0 {
			aggregateRobustness = -1.0
		}
	}

	node, _ := e.graph.NodeByID(fmID)
	return model.DiagnosisResult{
		Node:               node,
		Plausibility:       plausibility,
		Robustness:         aggregateRobustness,
		ExpectedSymptoms:   expected,
		ConsistentSymptoms: consistent,
		SymptomValues:      symptomValues,
	}
}
