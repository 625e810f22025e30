package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mrhapile/rtfpg-diagnoser/pkg/model"
)

const yamlModel = `
signals:
  - id: sig-1
    source_name: Pump_Pressure
    type: pressure
    units: psi
    range_min: 0
    range_max: 100
nodes:
  - id: fm-1
    name: Pump Failure
    type: FailureMode
  - id: d-1
    name: Low Pressure
    type: Discrepancy
    gate_type: OR
    criticality_level: 5
    predicate:
      signal_ref: sig-1
      operator: "<"
      threshold: 20
edges:
  - from: fm-1
    to: d-1
    time_min_ms: 0
    time_max_ms: 500
`

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(path, []byte(yamlModel), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	graph, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.Nodes) != 2 || len(graph.Edges) != 1 || len(graph.Signals) != 1 {
		t.Fatalf("unexpected graph shape: %+v", graph)
	}
	d1, ok := graph.NodeByID("d-1")
	if !ok || d1.CriticalityLevel != 5 || d1.GateType != model.GateOR {
		t.Errorf("unexpected d-1: %+v", d1)
	}
}

func TestLoad_RejectsUnknownEdgeEndpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	bad := yamlModel + "\n  - from: fm-1\n    to: nonexistent\n    time_min_ms: 0\n    time_max_ms: 1\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown edge endpoint")
	}
}

func TestLoad_RejectsInvertedTimeWindow(t *testing.T) {
	doc := ModelDoc{
		Nodes: []NodeDoc{
			{ID: "fm-1", Name: "A", Type: "FailureMode"},
			{ID: "d-1", Name: "B", Type: "Discrepancy", GateType: "OR",
				Predicate: &PredicateDoc{SignalRef: "sig-1", Operator: "<", Threshold: 1}},
		},
		Edges: []EdgeDoc{{From: "fm-1", To: "d-1", TimeMinMs: 500, TimeMaxMs: 100}},
	}
	if err := validateDoc(&doc); err == nil {
		t.Fatalf("expected error for time_min_ms > time_max_ms")
	}
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	original := model.NewGraph(
		[]model.Signal{{ID: "sig-1", SourceName: "Pump_Pressure", Type: "pressure", Units: "psi", RangeMin: 0, RangeMax: 100}},
		[]model.Node{
			{ID: "fm-1", Name: "Pump Failure", Type: model.FailureMode},
			{ID: "d-1", Name: "Low Pressure", Type: model.Discrepancy, GateType: model.GateAND, CriticalityLevel: 5,
				Predicate: model.Predicate{SignalRef: "sig-1", Op: "<", Threshold: 20}},
		},
		[]model.Edge{{From: "fm-1", To: "d-1", TimeMinMs: 0, TimeMaxMs: 500}},
	)

	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	if err := Save(path, original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(reloaded.Signals) != len(original.Signals) || len(reloaded.Nodes) != len(original.Nodes) || len(reloaded.Edges) != len(original.Edges) {
		t.Fatalf("round-trip changed graph shape: got %+v", reloaded)
	}
	d1, ok := reloaded.NodeByID("d-1")
	if !ok || d1.GateType != model.GateAND || d1.CriticalityLevel != 5 {
		t.Errorf("round-trip lost node fields: %+v", d1)
	}
}
