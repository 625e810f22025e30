// Package stream parses the scenario sample-stream document consumed by
// the online CLI driver and by dataset traces.
package stream

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mrhapile/rtfpg-diagnoser/pkg/model"
)

// EventDoc is a single entry in a scenario's data_stream. Comment entries
// carry only the Comment field and are skipped when converting to samples.
// Value is decoded generically so both numeric and boolean JSON/YAML
// values are accepted.
type EventDoc struct {
	Comment       string `yaml:"comment,omitempty" json:"comment,omitempty"`
	TimestampMs   uint64 `yaml:"timestamp_ms" json:"timestamp_ms"`
	ParameterID   string `yaml:"parameter_id" json:"parameter_id"`
	Value         any    `yaml:"value" json:"value"`
	IsFailureMode *bool  `yaml:"is_failure_mode,omitempty" json:"is_failure_mode,omitempty"`
}

// Doc is the parsed scenario envelope.
type Doc struct {
	ScenarioID string     `yaml:"scenario_id" json:"scenario_id"`
	DataStream []EventDoc `yaml:"data_stream" json:"data_stream"`
}

// Load reads and parses the scenario document at path into an ordered
// slice of model.DataSample, in file order.
func Load(path string) (string, []model.DataSample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("stream: open %s: %w", path, err)
	}

	var doc Doc
	if err := unmarshal(path, data, &doc); err != nil {
		return "", nil, fmt.Errorf("stream: decode %s: %w", path, err)
	}

	samples, err := Samples(doc)
	if err != nil {
		return "", nil, fmt.Errorf("stream: %s: %w", path, err)
	}
	return doc.ScenarioID, samples, nil
}

// Samples converts an already-parsed Doc into an ordered slice of
// model.DataSample, in document order. Comment entries are skipped. A
// boolean value coerces to 1.0/0.0; is_failure_mode defaults to false when
// absent.
func Samples(doc Doc) ([]model.DataSample, error) {
	samples := make([]model.DataSample, 0, len(doc.DataStream))
	for i, ev := range doc.DataStream {
		if ev.Comment != "" {
			continue
		}
		value, err := coerceValue(ev.Value)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		isFailureMode := false
		if ev.IsFailureMode != nil {
			isFailureMode = *ev.IsFailureMode
		}
		samples = append(samples, model.DataSample{
			TimestampMs:   ev.TimestampMs,
			ParameterID:   ev.ParameterID,
			Value:         value,
			IsFailureMode: isFailureMode,
		})
	}
	return samples, nil
}

func coerceValue(raw any) (float64, error) {
	switch v := raw.(type) {
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshal(path string, data []byte, doc *Doc) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, doc)
	}
	return json.Unmarshal(data, doc)
}
