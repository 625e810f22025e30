// Command rtfpg-refine is the offline refinement driver: it loads a model
// and a labeled-trace dataset, runs the Refinement Optimizer to
// convergence against the dataset's target node, and reports the
// before/after Diagnosis Error.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrhapile/rtfpg-diagnoser/internal/dataset"
	"github.com/mrhapile/rtfpg-diagnoser/internal/document"
	"github.com/mrhapile/rtfpg-diagnoser/internal/rtfpglog"
	"github.com/mrhapile/rtfpg-diagnoser/pkg/refine"
)

var (
	verbose bool
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rtfpg-refine <model_path> <dataset_path> <target_node_id> [output_model_path]",
	Short: "Refine an rTFPG model against a labeled-trace dataset",
	Args:  cobra.RangeArgs(3, 4),
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
	RunE: runRefine,
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

func runRefine(cmd *cobra.Command, args []string) error {
	modelPath, datasetPath, targetNodeID := args[0], args[1], args[2]
	var outputModelPath string
	if len(args) == 4 {
		outputModelPath = args[3]
	}

	graph, err := document.Load(modelPath)
	if err != nil {
		return err
	}

	ds, err := dataset.Load(datasetPath, graph)
	if err != nil {
		return err
	}

	optimizer := refine.New(graph, logger)

	before := optimizer.DiagnosisError(targetNodeID, ds.Traces)
	fmt.Printf("diagnosis error before refinement: %.4f\n", before)

	optimizer.Refine(targetNodeID, ds.Candidates, ds.Traces)

	after := optimizer.DiagnosisError(targetNodeID, ds.Traces)
	fmt.Printf("diagnosis error after refinement:  %.4f\n", after)

	if outputModelPath != "" {
		if err := document.Save(outputModelPath, graph); err != nil {
			return err
		}
		fmt.Printf("refined model written to %s\n", outputModelPath)
	}

	return nil
}
