package document

// SignalDoc is the on-disk representation of a model.Signal. RangeMin and
// RangeMax default to 0.0 and 1.0 respectively when absent, matching the
// reference model's json.value(key, default) parsing.
type SignalDoc struct {
	ID         string   `yaml:"id" json:"id" validate:"required"`
	SourceName string   `yaml:"source_name" json:"source_name" validate:"required"`
	Type       string   `yaml:"type" json:"type"`
	Units      string   `yaml:"units" json:"units"`
	RangeMin   *float64 `yaml:"range_min,omitempty" json:"range_min,omitempty"`
	RangeMax   *float64 `yaml:"range_max,omitempty" json:"range_max,omitempty"`
}

// PredicateDoc is the on-disk representation of a model.Predicate.
type PredicateDoc struct {
	SignalRef string  `yaml:"signal_ref" json:"signal_ref" validate:"required"`
	Operator  string  `yaml:"operator" json:"operator" validate:"required,oneof=> <"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// NodeDoc is the on-disk representation of a model.Node. GateType and
// Predicate are required only when Type is "Discrepancy"; a plain
// FailureMode node needs only id, name and type. CriticalityLevel is
// optional for both node types and defaults to 0.
type NodeDoc struct {
	ID               string        `yaml:"id" json:"id" validate:"required"`
	Name             string        `yaml:"name" json:"name" validate:"required"`
	Type             string        `yaml:"type" json:"type" validate:"required,oneof=FailureMode Discrepancy"`
	GateType         string        `yaml:"gate_type,omitempty" json:"gate_type,omitempty"`
	Predicate        *PredicateDoc `yaml:"predicate,omitempty" json:"predicate,omitempty"`
	CriticalityLevel int           `yaml:"criticality_level,omitempty" json:"criticality_level,omitempty"`
}

// EdgeDoc is the on-disk representation of a model.Edge.
type EdgeDoc struct {
	From      string `yaml:"from" json:"from" validate:"required"`
	To        string `yaml:"to" json:"to" validate:"required"`
	TimeMinMs int    `yaml:"time_min_ms" json:"time_min_ms"`
	TimeMaxMs int    `yaml:"time_max_ms" json:"time_max_ms"`
}

// ModelDoc is the top-level rTFPG model document.
type ModelDoc struct {
	Signals []SignalDoc `yaml:"signals,omitempty" json:"signals,omitempty" validate:"dive"`
	Nodes   []NodeDoc   `yaml:"nodes" json:"nodes" validate:"required,min=1,dive"`
	Edges   []EdgeDoc   `yaml:"edges,omitempty" json:"edges,omitempty" validate:"dive"`
}
