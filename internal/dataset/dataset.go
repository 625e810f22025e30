// Package dataset parses the labeled-trace document consumed by the
// offline refinement driver.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mrhapile/rtfpg-diagnoser/internal/document"
	"github.com/mrhapile/rtfpg-diagnoser/internal/stream"
	"github.com/mrhapile/rtfpg-diagnoser/pkg/ingest"
	"github.com/mrhapile/rtfpg-diagnoser/pkg/model"
	"github.com/mrhapile/rtfpg-diagnoser/pkg/refine"
)

// traceDoc is one labeled trace: a scenario embedded inline or referenced
// by path, plus the ground-truth activation for the dataset's target node.
type traceDoc struct {
	ID                 string      `yaml:"id,omitempty" json:"id,omitempty"`
	ExpectedActivation bool        `yaml:"expected_activation" json:"expected_activation"`
	StreamPath         string      `yaml:"stream_path,omitempty" json:"stream_path,omitempty"`
	Stream             *stream.Doc `yaml:"stream,omitempty" json:"stream,omitempty"`
}

type docSchema struct {
	TargetNodeID string             `yaml:"target_node_id" json:"target_node_id"`
	Candidates   []document.NodeDoc `yaml:"candidates,omitempty" json:"candidates,omitempty"`
	Traces       []traceDoc         `yaml:"traces" json:"traces"`
}

// Dataset is a parsed labeled-trace dataset ready to hand to
// refine.Optimizer.Refine.
type Dataset struct {
	TargetNodeID string
	Candidates   []model.Node
	Traces       []refine.LabeledTrace
	// TraceIDs mirrors Traces by index; every empty id in the source
	// document is replaced with a generated one so logs and reports can
	// reference a specific trace unambiguously.
	TraceIDs []string
}

// Load parses the dataset document at path against graph, building one
// pre-populated SignalIngestor per trace.
func Load(path string, graph *model.Graph) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}

	var doc docSchema
	if err := unmarshal(path, data, &doc); err != nil {
		return nil, fmt.Errorf("dataset: decode %s: %w", path, err)
	}

	ds := &Dataset{TargetNodeID: doc.TargetNodeID}
	for _, c := range doc.Candidates {
		ds.Candidates = append(ds.Candidates, document.ToNode(c))
	}

	baseDir := filepath.Dir(path)
	for i, td := range doc.Traces {
		samples, err := traceSamples(baseDir, td)
		if err != nil {
			return nil, fmt.Errorf("dataset: trace %d: %w", i, err)
		}

		ing := ingest.New(graph)
		for _, s := range samples {
			ing.Ingest(s)
		}

		id := td.ID
		if id == "" {
			id = uuid.NewString()
		}
		ds.TraceIDs = append(ds.TraceIDs, id)
		ds.Traces = append(ds.Traces, refine.LabeledTrace{Ingestor: ing, ExpectedActivation: td.ExpectedActivation})
	}

	return ds, nil
}

func traceSamples(baseDir string, td traceDoc) ([]model.DataSample, error) {
	if td.Stream != nil {
		return stream.Samples(*td.Stream)
	}
	if td.StreamPath != "" {
		path := td.StreamPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		_, samples, err := stream.Load(path)
		return samples, err
	}
	return nil, fmt.Errorf("trace has neither an inline stream nor a stream_path")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshal(path string, data []byte, doc *docSchema) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, doc)
	}
	return json.Unmarshal(data, doc)
}
