package logic

import (
	"testing"

	"github.com/mrhapile/rtfpg-diagnoser/pkg/ingest"
	"github.com/mrhapile/rtfpg-diagnoser/pkg/model"
)

func pumpGraph() *model.Graph {
	return model.NewGraph(
		[]model.Signal{
			{ID: "sig-pressure", SourceName: "Pump_Pressure", RangeMin: 0, RangeMax: 100},
		},
		[]model.Node{
			{ID: "fm-pump", Name: "Pump Failure", Type: model.FailureMode},
			{ID: "d-lowpressure", Name: "Low Pressure", Type: model.Discrepancy, GateType: model.GateOR,
				CriticalityLevel: 5,
				Predicate:        model.Predicate{SignalRef: "sig-pressure", Op: "<", Threshold: 20}},
		},
		[]model.Edge{
			{From: "fm-pump", To: "d-lowpressure", TimeMinMs: 0, TimeMaxMs: 1000},
		},
	)
}

func TestFindActiveHypotheses_NoSamples(t *testing.T) {
	g := pumpGraph()
	e := New(g, ingest.New(g), nil)

	diagnoses := e.FindActiveHypotheses()
	if len(diagnoses) != 0 {
		t.Fatalf("expected no diagnoses with no samples, got %d", len(diagnoses))
	}
}

func TestFindActiveHypotheses_SinglePredicateTrigger(t *testing.T) {
	g := pumpGraph()
	ing := ingest.New(g)
	ing.Ingest(model.DataSample{TimestampMs: 100, ParameterID: "Pump_Pressure", Value: 5})

	e := New(g, ing, nil)
	diagnoses := e.FindActiveHypotheses()

	if len(diagnoses) != 1 {
		t.Fatalf("expected 1 diagnosis, got %d", len(diagnoses))
	}
	got := diagnoses[0]
	if got.Node.ID != "fm-pump" {
		t.Errorf("expected fm-pump, got %s", got.Node.ID)
	}
	if got.Plausibility != 1.0 {
		t.Errorf("expected plausibility 1.0, got %f", got.Plausibility)
	}
	states := e.NodeStates()
	if !states["d-lowpressure"].IsActive {
		t.Errorf("expected d-lowpressure to be active")
	}
}

func TestFindActiveHypotheses_AndGateRequiresBothParents(t *testing.T) {
	g := model.NewGraph(
		[]model.Signal{{ID: "sig-temp", SourceName: "Motor_Temp", RangeMin: 0, RangeMax: 200}},
		[]model.Node{
			{ID: "fm-a", Name: "Cause A", Type: model.FailureMode},
			{ID: "fm-b", Name: "Cause B", Type: model.FailureMode},
			{ID: "d-combined", Name: "Combined Symptom", Type: model.Discrepancy, GateType: model.GateAND,
				Predicate: model.Predicate{SignalRef: "sig-temp", Op: ">", Threshold: 150}},
		},
		[]model.Edge{
			{From: "fm-a", To: "d-combined", TimeMinMs: 0, TimeMaxMs: 1000},
			{From: "fm-b", To: "d-combined", TimeMinMs: 0, TimeMaxMs: 1000},
		},
	)
	ingPartial := ingest.New(g)
	ingPartial.Ingest(model.DataSample{TimestampMs: 10, ParameterID: "fm-a", Value: 1, IsFailureMode: true})
	ingPartial.Ingest(model.DataSample{TimestampMs: 20, ParameterID: "Motor_Temp", Value: 180})

	e := New(g, ingPartial, nil)
	e.FindActiveHypotheses()
	if e.NodeStates()["d-combined"].IsActive {
		t.Fatalf("AND gate should not activate with only one parent active")
	}

	// Buffer order, not timestamp order, drives replay: both fault
	// injections must precede the triggering sensor reading in the
	// ingested sequence for the AND gate to see them satisfied.
	ingFull := ingest.New(g)
	ingFull.Ingest(model.DataSample{TimestampMs: 10, ParameterID: "fm-a", Value: 1, IsFailureMode: true})
	ingFull.Ingest(model.DataSample{TimestampMs: 15, ParameterID: "fm-b", Value: 1, IsFailureMode: true})
	ingFull.Ingest(model.DataSample{TimestampMs: 20, ParameterID: "Motor_Temp", Value: 180})

	e2 := New(g, ingFull, nil)
	e2.FindActiveHypotheses()
	if !e2.NodeStates()["d-combined"].IsActive {
		t.Errorf("AND gate should activate once both parents are active")
	}
}

func TestFindActiveHypotheses_RobustnessTracksInactiveNode(t *testing.T) {
	g := pumpGraph()
	ing := ingest.New(g)
	ing.Ingest(model.DataSample{TimestampMs: 10, ParameterID: "Pump_Pressure", Value: 90})

	e := New(g, ing, nil)
	e.FindActiveHypotheses()

	state := e.NodeStates()["d-lowpressure"]
	if state.IsActive {
		t.Fatalf("node should not be active above threshold")
	}
	if state.Robustness >= 0 {
		t.Errorf("expected negative robustness while inactive above threshold, got %f", state.Robustness)
	}
}

func TestFindActiveHypotheses_DegenerateRangeReturnsRawRobustness(t *testing.T) {
	g := model.NewGraph(
		[]model.Signal{{ID: "sig-flag", SourceName: "Fault_Flag", RangeMin: 0, RangeMax: 0}},
		[]model.Node{
			{ID: "fm-1", Name: "Cause", Type: model.FailureMode},
			{ID: "d-1", Name: "Flag Set", Type: model.Discrepancy, GateType: model.GateOR,
				Predicate: model.Predicate{SignalRef: "sig-flag", Op: ">", Threshold: 0.5}},
		},
		[]model.Edge{{From: "fm-1", To: "d-1", TimeMinMs: 0, TimeMaxMs: 100}},
	)
	ing := ingest.New(g)
	ing.Ingest(model.DataSample{TimestampMs: 1, ParameterID: "Fault_Flag", Value: 1})

	e := New(g, ing, nil)
	e.FindActiveHypotheses()
	state := e.NodeStates()["d-1"]
	if state.Robustness != 0.5 {
		t.Errorf("expected raw robustness 0.5 for degenerate range, got %f", state.Robustness)
	}
}

func TestFindActiveHypotheses_RankingTieBreaksOnRobustnessThenID(t *testing.T) {
	g := model.NewGraph(
		[]model.Signal{{ID: "sig-1", SourceName: "S", RangeMin: 0, RangeMax: 100}},
		[]model.Node{
			{ID: "fm-a", Name: "A", Type: model.FailureMode},
			{ID: "fm-b", Name: "B", Type: model.FailureMode},
			{ID: "d-1", Name: "Symptom", Type: model.Discrepancy, GateType: model.GateOR,
				Predicate: model.Predicate{SignalRef: "sig-1", Op: ">", Threshold: 10}},
		},
		[]model.Edge{
			{From: "fm-a", To: "d-1", TimeMinMs: 0, TimeMaxMs: 100},
			{From: "fm-b", To: "d-1", TimeMinMs: 0, TimeMaxMs: 100},
		},
	)
	ing := ingest.New(g)
	ing.Ingest(model.DataSample{TimestampMs: 1, ParameterID: "S", Value: 50})

	e := New(g, ing, nil)
	diagnoses := e.FindActiveHypotheses()
	if len(diagnoses) != 2 {
		t.Fatalf("expected 2 tied candidates, got %d", len(diagnoses))
	}
	if diagnoses[0].Node.ID != "fm-a" || diagnoses[1].Node.ID != "fm-b" {
		t.Errorf("expected deterministic id tie-break fm-a before fm-b, got %s then %s",
			diagnoses[0].Node.ID, diagnoses[1].Node.ID)
	}
}
