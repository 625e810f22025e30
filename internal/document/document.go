// Package document parses and serializes the rTFPG model document,
// supporting both YAML and JSON encodings.
package document

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mrhapile/rtfpg-diagnoser/pkg/model"
)

var validate = validator.New()

// Load reads and parses the model document at path, validates it, and
// converts it into a model.Graph. Encoding is chosen from the file
// extension: .yaml and .yml decode as YAML, everything else as JSON.
func Load(path string) (*model.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("document: open %s: %w", path, err)
	}

	var doc ModelDoc
	if err := unmarshal(path, data, &doc); err != nil {
		return nil, fmt.Errorf("document: decode %s: %w", path, err)
	}

	if err := validateDoc(&doc); err != nil {
		return nil, fmt.Errorf("document: validate %s: %w", path, err)
	}

	return toGraph(&doc), nil
}

// Save serializes graph back into the doc form and writes it to path,
// choosing YAML or JSON by the same extension rule as Load.
func Save(path string, graph *model.Graph) error {
	doc := fromGraph(graph)

	data, err := marshal(path, &doc)
	if err != nil {
		return fmt.Errorf("document: encode %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("document: write %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshal(path string, data []byte, doc *ModelDoc) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, doc)
	}
	return json.Unmarshal(data, doc)
}

func marshal(path string, doc *ModelDoc) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// validateDoc runs struct-tag validation, then re-checks the cross-field
// invariants a validator tag can't express: range_max >= range_min,
// time_min_ms <= time_max_ms, unique node ids, and edges whose endpoints
// resolve to a declared node.
func validateDoc(doc *ModelDoc) error {
	if err := validate.Struct(doc); err != nil {
		return formatValidationError(err)
	}

	seen := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true

		if n.Type == "Discrepancy" {
			if n.Predicate == nil {
				return fmt.Errorf("node %q: type Discrepancy requires a predicate", n.ID)
			}
			if n.GateType != "OR" && n.GateType != "AND" {
				return fmt.Errorf("node %q: gate_type must be OR or AND, got %q", n.ID, n.GateType)
			}
		}
	}

	for _, s := range doc.Signals {
		if s.RangeMin != nil && s.RangeMax != nil && *s.RangeMax < *s.RangeMin {
			return fmt.Errorf("signal %q: range_max (%g) is less than range_min (%g)", s.ID, *s.RangeMax, *s.RangeMin)
		}
	}

	for _, e := range doc.Edges {
		if e.TimeMinMs > e.TimeMaxMs {
			return fmt.Errorf("edge %s -> %s: time_min_ms (%d) exceeds time_max_ms (%d)", e.From, e.To, e.TimeMinMs, e.TimeMaxMs)
		}
		if !seen[e.From] {
			return fmt.Errorf("edge references unknown source node %q", e.From)
		}
		if !seen[e.To] {
			return fmt.Errorf("edge references unknown target node %q", e.To)
		}
	}

	return nil
}

// formatValidationError reduces a validator.ValidationErrors into a single
// readable line naming the first offending field.
func formatValidationError(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	for _, e := range validationErrs {
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", e.Namespace())
		case "min":
			return fmt.Errorf("%s: must be at least %s", e.Namespace(), e.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s], got %q", e.Namespace(), e.Param(), e.Value())
		default:
			return fmt.Errorf("%s: validation failed (%s)", e.Namespace(), e.Tag())
		}
	}
	return err
}

// ToNode converts a single NodeDoc into a model.Node, applying the same
// FailureMode/Discrepancy branching Load uses for the full document. It is
// exported for callers (such as the dataset loader) that decode individual
// node documents outside of a full ModelDoc.
func ToNode(n NodeDoc) model.Node {
	node := model.Node{ID: n.ID, Name: n.Name, CriticalityLevel: n.CriticalityLevel}
	if n.Type == "FailureMode" {
		node.Type = model.FailureMode
		return node
	}
	node.Type = model.Discrepancy
	if n.GateType == "AND" {
		node.GateType = model.GateAND
	} else {
		node.GateType = model.GateOR
	}
	if n.Predicate != nil {
		node.Predicate = model.Predicate{
			SignalRef: n.Predicate.SignalRef,
			Op:        n.Predicate.Operator,
			Threshold: n.Predicate.Threshold,
		}
	}
	return node
}

func toGraph(doc *ModelDoc) *model.Graph {
	signals := make([]model.Signal, 0, len(doc.Signals))
	for _, s := range doc.Signals {
		rangeMin, rangeMax := 0.0, 1.0
		if s.RangeMin != nil {
			rangeMin = *s.RangeMin
		}
		if s.RangeMax != nil {
			rangeMax = *s.RangeMax
		}
		signals = append(signals, model.Signal{
			ID: s.ID, SourceName: s.SourceName, Type: s.Type, Units: s.Units,
			RangeMin: rangeMin, RangeMax: rangeMax,
		})
	}

	nodes := make([]model.Node, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		nodes = append(nodes, ToNode(n))
	}

	edges := make([]model.Edge, 0, len(doc.Edges))
	for _, e := range doc.Edges {
		edges = append(edges, model.Edge{From: e.From, To: e.To, TimeMinMs: e.TimeMinMs, TimeMaxMs: e.TimeMaxMs})
	}

	return model.NewGraph(signals, nodes, edges)
}

func fromGraph(graph *model.Graph) ModelDoc {
	var doc ModelDoc
	for _, s := range graph.Signals {
		rangeMin, rangeMax := s.RangeMin, s.RangeMax
		doc.Signals = append(doc.Signals, SignalDoc{
			ID: s.ID, SourceName: s.SourceName, Type: s.Type, Units: s.Units,
			RangeMin: &rangeMin, RangeMax: &rangeMax,
		})
	}
	for _, n := range graph.Nodes {
		nd := NodeDoc{ID: n.ID, Name: n.Name, Type: n.Type.String(), CriticalityLevel: n.CriticalityLevel}
		if n.Type == model.Discrepancy {
			nd.GateType = n.GateType.String()
			nd.Predicate = &PredicateDoc{
				SignalRef: n.Predicate.SignalRef,
				Operator:  n.Predicate.Op,
				Threshold: n.Predicate.Threshold,
			}
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, e := range graph.Edges {
		doc.Edges = append(doc.Edges, EdgeDoc{From: e.From, To: e.To, TimeMinMs: e.TimeMinMs, TimeMaxMs: e.TimeMaxMs})
	}
	return doc
}
