// Package ingest bridges an incoming sample stream with the mathematical
// requirements of the rTFPG: an append-only buffer plus a dense
// string-to-int registry for O(1) parameter lookups.
package ingest

import (
	"fmt"

	"github.com/mrhapile/rtfpg-diagnoser/pkg/model"
)

// SignalIngestor holds the ordered history of ingested samples and the
// bidirectional mapping between parameter id strings and dense internal
// integer ids.
//
// The registry is pre-populated from the model's signal source names at
// construction so every declared signal has a stable id from the start;
// parameter ids observed later that were never declared as signals (e.g.
// fault-injection node ids) are assigned the next free id on first sight.
type SignalIngestor struct {
	parameterToInternal map[string]int
	internalToParameter []string
	samples             []model.DataSample
}

// New builds a SignalIngestor whose registry is pre-populated from the
// given graph's signal source names.
func New(graph *model.Graph) *SignalIngestor {
	ing := &SignalIngestor{
		parameterToInternal: make(map[string]int),
	}
	for _, sig := range graph.Signals {
		ing.register(sig.SourceName)
	}
	return ing
}

func (s *SignalIngestor) register(parameterID string) int {
	if id, ok := s.parameterToInternal[parameterID]; ok {
		return id
	}
	id := len(s.internalToParameter)
	s.parameterToInternal[parameterID] = id
	s.internalToParameter = append(s.internalToParameter, parameterID)
	return id
}

// InternalID returns the internal integer id for parameterID, or -1 if the
// parameter has never been registered or ingested.
func (s *SignalIngestor) InternalID(parameterID string) int {
	if id, ok := s.parameterToInternal[parameterID]; ok {
		return id
	}
	return -1
}

// ParameterID returns the string parameter id for internalID. It returns an
// error rather than panicking on an out-of-range id: this mirrors the
// reference implementation's std::out_of_range, which signals a programmer
// error against a validated internal id space, not an expected runtime
// condition on untrusted input.
func (s *SignalIngestor) ParameterID(internalID int) (string, error) {
	if internalID < 0 || internalID >= len(s.internalToParameter) {
		return "", fmt.Errorf("ingest: internal id %d out of range [0,%d)", internalID, len(s.internalToParameter))
	}
	return s.internalToParameter[internalID], nil
}

// Ingest appends sample to the buffer, registering its parameter id if this
// is the first time it has been seen.
func (s *SignalIngestor) Ingest(sample model.DataSample) {
	s.register(sample.ParameterID)
	s.samples = append(s.samples, sample)
}

// Samples returns the full ordered history of ingested samples.
func (s *SignalIngestor) Samples() []model.DataSample {
	return s.samples
}
