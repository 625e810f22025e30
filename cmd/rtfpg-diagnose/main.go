// Command rtfpg-diagnose is the online CLI driver: it replays a sample
// stream against a model one sample at a time, emitting a tiered
// diagnostic report whenever the diagnosis state actually changes.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrhapile/rtfpg-diagnoser/internal/document"
	"github.com/mrhapile/rtfpg-diagnoser/internal/report"
	"github.com/mrhapile/rtfpg-diagnoser/internal/rtfpglog"
	"github.com/mrhapile/rtfpg-diagnoser/internal/stream"
	"github.com/mrhapile/rtfpg-diagnoser/pkg/ingest"
	"github.com/mrhapile/rtfpg-diagnoser/pkg/logic"
	"github.com/mrhapile/rtfpg-diagnoser/pkg/model"
	"github.com/mrhapile/rtfpg-diagnoser/pkg/prognosis"
)

var (
	verbose bool
	logger  *zap.Logger
)

const defaultCriticalityThreshold = 3

var rootCmd = &cobra.Command{
	Use:   "rtfpg-diagnose <model_path> <stream_path> [criticality_threshold] [output_log_path]",
	Short: "Replay a sample stream against an rTFPG model and report active hypotheses",
	Args:  cobra.RangeArgs(2, 4),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = rtfpglog.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runDiagnose,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseArgs disambiguates the trailing two positional arguments: a third
// argument that fails to parse as an integer is interpreted as the output
// path instead of a criticality threshold.
func parseArgs(args []string) (modelPath, streamPath string, threshold int, outputPath string) {
	modelPath, streamPath = args[0], args[1]
	threshold = defaultCriticalityThreshold

	rest := args[2:]
	if len(rest) > 0 {
		if n, err := strconv.Atoi(rest[0]); err == nil {
			threshold = n
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		outputPath = rest[0]
	}
	return
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	modelPath, streamPath, threshold, outputPath := parseArgs(args)

	graph, err := document.Load(modelPath)
	if err != nil {
		return err
	}

	_, samples, err := stream.Load(streamPath)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("rtfpg-diagnose: open output %s: %w", outputPath, err)
		}
		defer f.Close()
		out = f
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ing := ingest.New(graph)
	engine := logic.New(graph, ing, logger)
	manager := prognosis.New(graph, logger)

	tracker := newChangeTracker(graph)

	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			logger.Info("interrupted, stopping replay", zap.Error(err))
			return nil
		}

		ing.Ingest(sample)
		diagnoses := engine.FindActiveHypotheses()
		states := engine.NodeStates()
		ttc := manager.TimeToCriticality(states, threshold, float64(sample.TimestampMs))

		if tracker.changed(states, ttc) {
			report.Render(out, sample.TimestampMs, diagnoses, states, ttc, graph)
		}
		tracker.update(states, ttc)
	}

	return nil
}

// changeTracker decides whether the diagnosis state has moved enough since
// the last report to warrant emitting another one: the active symptom set
// changed, a node's robustness moved by more than 1e-6, or the predicted
// time-to-criticality crossed from positive to non-positive.
type changeTracker struct {
	graph          *model.Graph
	first          bool
	active         map[string]bool
	robustness     map[string]float64
	ttcWasPositive bool
}

func newChangeTracker(graph *model.Graph) *changeTracker {
	return &changeTracker{graph: graph, first: true, active: make(map[string]bool), robustness: make(map[string]float64)}
}

func (t *changeTracker) changed(states map[string]model.NodeState, ttc model.PrognosisResult) bool {
	if t.first {
		return true
	}

	for id, state := range states {
		if state.IsActive != t.active[id] {
			if node, ok := t.graph.NodeByID(id); ok && node.Type == model.Discrepancy {
				return true
			}
		}
		if math.Abs(state.Robustness-t.robustness[id]) > 1e-6 {
			return true
		}
	}

	ttcPositive := ttc.TTC > 0
	if t.ttcWasPositive && !ttcPositive {
		return true
	}

	return false
}

func (t *changeTracker) update(states map[string]model.NodeState, ttc model.PrognosisResult) {
	t.first = false
	for id, state := range states {
		t.active[id] = state.IsActive
		t.robustness[id] = state.Robustness
	}
	t.ttcWasPositive = ttc.TTC > 0
}
