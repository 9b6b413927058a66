package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spboyer/cropwise/internal/dataset"
	"github.com/spboyer/cropwise/internal/spinner"
	"github.com/spboyer/cropwise/internal/statistics"
	"github.com/spboyer/cropwise/internal/training"
)

type trainOptions struct {
	dataset  string
	output   string
	trees    int
	maxDepth int
	seed     int64
	workers  int
	testSize float64
	force    bool
	format   string
}

func newTrainCommand() *cobra.Command {
	opts := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the crop classifier and derive nutrient targets",
		Long: `Train a random forest on a labelled CSV dataset.

The dataset needs the columns N, P, K, temperature, humidity, ph, rainfall and
label (any order; extra columns are ignored; .csv.gz is accepted). Each crop is
split 80/20 into train and test rows. Three artifacts are written together to
the output directory:

  crop_model.bin        the trained classifier
  crop_targets.yaml     per-crop mean N, P, K over the whole dataset
  training_report.txt   accuracy and per-crop precision/recall/F1

Training is skipped when the artifacts already match the dataset and
hyperparameters, unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.dataset, "data", "d", "", "Dataset CSV (default: paths.dataset)")
	f.StringVarP(&opts.output, "output", "o", "", "Artifact directory (default: paths.models)")
	f.IntVar(&opts.trees, "trees", 0, "Number of trees (default: training.trees)")
	f.IntVar(&opts.maxDepth, "max-depth", 0, "Maximum tree depth, 0 for unlimited")
	f.Int64Var(&opts.seed, "seed", 0, "Random seed (default: training.seed)")
	f.IntVar(&opts.workers, "workers", 0, "Trees grown in parallel (default: training.workers)")
	f.Float64Var(&opts.testSize, "test-size", 0, "Held-out fraction of every crop (default: training.test_size)")
	f.BoolVar(&opts.force, "force", false, "Retrain even when the artifacts are up to date")
	f.StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")

	return cmd
}

func runTrain(cmd *cobra.Command, opts *trainOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q: must be text or json", opts.format)
	}

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	params := forestParams(cfg.Training)
	if flags.Changed("trees") {
		params.Trees = opts.trees
	}
	if flags.Changed("max-depth") {
		params.MaxDepth = opts.maxDepth
	}
	if flags.Changed("seed") {
		params.Seed = opts.seed
	}
	if flags.Changed("workers") {
		params.Workers = opts.workers
	}
	testSize := cfg.Training.TestSize
	if flags.Changed("test-size") {
		testSize = opts.testSize
	}
	if testSize <= 0 || testSize >= 1 {
		return fmt.Errorf("test size must be within (0, 1), got %g", testSize)
	}

	tcfg := training.Config{
		DatasetPath: stringFlag(flags, "data", opts.dataset, cfg.Paths.Dataset),
		OutputDir:   stringFlag(flags, "output", opts.output, cfg.Paths.Models),
		Params:      params,
		TestSize:    testSize,
		Force:       opts.force,
	}

	stop := func() {}
	if errOut := cmd.ErrOrStderr(); opts.format == "text" && spinner.IsTerminal(errOut) {
		sp := spinner.Start(errOut, "Training random forest...")
		tcfg.Progress = func(done, total int) {
			sp.Update(fmt.Sprintf("Growing trees %d/%d", done, total))
		}
		stop = sp.Stop
	}

	res, err := training.Run(cmd.Context(), tcfg)
	stop()
	if err != nil {
		if errors.Is(err, dataset.ErrSchema) || errors.Is(err, dataset.ErrEmptyDataset) {
			return &TrainingAbortedError{Message: fmt.Sprintf("training aborted: %v", err), Err: err}
		}
		return err
	}

	if opts.format == "json" {
		return printTrainJSON(cmd.OutOrStdout(), res)
	}
	printTrainText(cmd.OutOrStdout(), res)
	return nil
}

type trainJSON struct {
	Skipped     bool                           `json:"skipped"`
	Fingerprint string                         `json:"fingerprint"`
	Accuracy    float64                        `json:"accuracy"`
	AccuracyCI  *statistics.ConfidenceInterval `json:"accuracy_ci,omitempty"`
	Classes     []string                       `json:"classes"`
	TrainRows   int                            `json:"train_rows"`
	TestRows    int                            `json:"test_rows"`
	Artifacts   training.Paths                 `json:"artifacts"`
}

func printTrainJSON(w io.Writer, res *training.Result) error {
	out := trainJSON{
		Skipped:     res.Skipped,
		Fingerprint: res.Fingerprint,
		Accuracy:    res.Accuracy,
		Classes:     res.Classes,
		TrainRows:   res.TrainRows,
		TestRows:    res.TestRows,
		Artifacts:   res.Paths,
	}
	if res.Report != nil {
		out.AccuracyCI = res.Report.AccuracyCI
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal training result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printTrainText(w io.Writer, res *training.Result) {
	var b strings.Builder
	if res.Skipped {
		fmt.Fprintf(&b, "Artifacts are up to date (fingerprint %s); use --force to retrain.\n", shortFingerprint(res.Fingerprint))
		fmt.Fprintf(&b, "Accuracy: %.4f\n", res.Accuracy)
	} else {
		fmt.Fprintf(&b, "Trained on %d rows, tested on %d rows across %d crops.\n", res.TrainRows, res.TestRows, len(res.Classes))
		fmt.Fprintf(&b, "✅ Accuracy: %.4f", res.Accuracy)
		if res.Report != nil && res.Report.AccuracyCI != nil {
			ci := res.Report.AccuracyCI
			fmt.Fprintf(&b, " (%.0f%% CI %.4f-%.4f)", ci.ConfidenceLevel*100, ci.Lower, ci.Upper)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "✅ Model saved to %s\n", res.Paths.Model)
		fmt.Fprintf(&b, "📄 Fertilizer targets saved to %s\n", res.Paths.Targets)
		fmt.Fprintf(&b, "📊 Training report saved to %s\n", res.Paths.Report)
	}
	fmt.Fprint(w, b.String()) //nolint:errcheck
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
