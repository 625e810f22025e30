// Package rtfpglog builds the single structured logger threaded through
// the CLI drivers and the reasoning components.
package rtfpglog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production-configured zap.Logger, at Debug level when
// verbose is set and Info level otherwise. The returned logger is safe to
// pass directly to the logic, prognosis and refine constructors, all of
// which treat a nil logger as a no-op.
func New(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}
