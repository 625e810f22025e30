package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mrhapile/rtfpg-diagnoser/pkg/model"
)

const datasetJSON = `{
  "target_node_id": "fm-1",
  "traces": [
    {
      "expected_activation": true,
      "stream": {
        "scenario_id": "positive",
        "data_stream": [
          {"timestamp_ms": 1, "parameter_id": "fm-1", "value": 1, "is_failure_mode": true}
        ]
      }
    },
    {
      "id": "trace-negative",
      "expected_activation": false,
      "stream": {
        "scenario_id": "negative",
        "data_stream": []
      }
    }
  ]
}`

func testGraph() *model.Graph {
	return model.NewGraph(nil, []model.Node{{ID: "fm-1", Name: "Cause", Type: model.FailureMode}}, nil)
}

func TestLoad_BuildsIngestorsPerTrace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.json")
	if err := os.WriteFile(path, []byte(datasetJSON), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	ds, err := Load(path, testGraph())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.TargetNodeID != "fm-1" {
		t.Errorf("got target %q", ds.TargetNodeID)
	}
	if len(ds.Traces) != 2 {
		t.Fatalf("expected 2 traces, got %d", len(ds.Traces))
	}
	if len(ds.Traces[0].Ingestor.Samples()) != 1 {
		t.Errorf("expected trace 0 to have 1 sample, got %d", len(ds.Traces[0].Ingestor.Samples()))
	}
	if !ds.Traces[0].ExpectedActivation {
		t.Errorf("expected trace 0 to expect activation")
	}
}

func TestLoad_AssignsGeneratedIDsWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.json")
	if err := os.WriteFile(path, []byte(datasetJSON), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	ds, err := Load(path, testGraph())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.TraceIDs[0] == "" {
		t.Errorf("expected a generated id for the first trace")
	}
	if ds.TraceIDs[1] != "trace-negative" {
		t.Errorf("expected explicit id to be preserved, got %q", ds.TraceIDs[1])
	}
	if ds.TraceIDs[0] == ds.TraceIDs[1] {
		t.Errorf("expected distinct trace ids")
	}
}
