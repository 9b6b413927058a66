// Package training runs the offline pipeline: load the dataset, split it,
// fit the forest, evaluate it, derive nutrient targets, and persist the three
// artifacts together.
package training

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spboyer/cropwise/internal/artifact"
	"github.com/spboyer/cropwise/internal/dataset"
	"github.com/spboyer/cropwise/internal/fertilizer"
	"github.com/spboyer/cropwise/internal/forest"
	"github.com/spboyer/cropwise/internal/metrics"
	"github.com/spboyer/cropwise/internal/statistics"
)

// Artifact file names inside the output directory.
const (
	ModelFile   = "crop_model.bin"
	TargetsFile = "crop_targets.yaml"
	ReportFile  = "training_report.txt"
)

// DefaultTestSize is the held-out fraction of every label.
const DefaultTestSize = 0.2

// ConfidenceLevel is used for the accuracy interval in the report.
const ConfidenceLevel = 0.95

// Config describes one training run.
type Config struct {
	DatasetPath string
	OutputDir   string
	Params      forest.Params
	// TestSize is the held-out fraction; zero selects DefaultTestSize.
	TestSize float64
	// Force retrains even when the artifacts already match the inputs.
	Force bool
	// Now stamps the artifact; defaults to time.Now.
	Now func() time.Time
	// Progress, if set, is called as trees finish growing.
	Progress func(done, total int)
}

// Paths locates the artifacts of one output directory.
type Paths struct {
	Model   string `json:"model"`
	Targets string `json:"targets"`
	Report  string `json:"report"`
}

// ArtifactPaths returns the artifact locations under dir.
func ArtifactPaths(dir string) Paths {
	return Paths{
		Model:   filepath.Join(dir, ModelFile),
		Targets: filepath.Join(dir, TargetsFile),
		Report:  filepath.Join(dir, ReportFile),
	}
}

// Result summarizes a run.
type Result struct {
	Paths       Paths
	Fingerprint string
	Classes     []string
	Accuracy    float64
	// Report is nil when the run was skipped.
	Report    *metrics.Report
	Targets   fertilizer.Table
	TrainRows int
	TestRows  int
	// Skipped is set when existing artifacts already matched the inputs.
	Skipped bool
}

// Run executes the pipeline. Dataset problems surface as dataset.ErrSchema or
// dataset.ErrEmptyDataset; on any error nothing is written.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.TestSize == 0 {
		cfg.TestSize = DefaultTestSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}

	slog.Debug("Loading dataset", "path", cfg.DatasetPath)
	ds, err := dataset.Load(cfg.DatasetPath)
	if err != nil {
		return nil, err
	}
	if err := dataset.CheckStratifiable(ds.Samples); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.DatasetPath, err)
	}
	slog.Debug("Dataset loaded", "rows", len(ds.Samples), "classes", len(dataset.Labels(ds.Samples)))

	paths := ArtifactPaths(cfg.OutputDir)
	fingerprint := Fingerprint(ds.Digest, cfg.Params, cfg.TestSize)
	if !cfg.Force {
		if res, ok := upToDate(paths, fingerprint); ok {
			slog.Info("Artifacts are up to date; skipping training", "model", paths.Model)
			return res, nil
		}
	}

	labels := make([]string, len(ds.Samples))
	for i, s := range ds.Samples {
		labels[i] = s.Label
	}
	split, err := statistics.StratifiedSplit(labels, cfg.TestSize, cfg.Params.Seed)
	if err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}
	train := pick(ds.Samples, split.Train)
	test := pick(ds.Samples, split.Test)
	slog.Debug("Split dataset", "train", len(train), "test", len(test))

	var opts []forest.FitOption
	if cfg.Progress != nil {
		opts = append(opts, forest.WithProgress(cfg.Progress))
	}
	f, err := forest.Fit(ctx, train, cfg.Params, opts...)
	if err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}

	report, err := evaluate(f, test, cfg.Params.Seed)
	if err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}
	slog.Info("Model evaluated", "accuracy", fmt.Sprintf("%.4f", report.Accuracy), "test_rows", len(test))

	targets := fertilizer.Derive(ds.Samples)

	model := artifact.New(f, artifact.Metadata{
		Fingerprint: fingerprint,
		TrainedAt:   cfg.Now().UTC(),
		Accuracy:    report.Accuracy,
		TrainRows:   len(train),
		TestRows:    len(test),
	})
	modelData, err := artifact.Encode(model)
	if err != nil {
		return nil, err
	}
	targetsData, err := targets.Encode()
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}
	if err := ensureDir(cfg.OutputDir); err != nil {
		return nil, err
	}
	err = writeAll([]pendingFile{
		{path: paths.Model, data: modelData},
		{path: paths.Targets, data: targetsData},
		{path: paths.Report, data: []byte(report.Text())},
	})
	if err != nil {
		return nil, fmt.Errorf("training: persisting artifacts: %w", err)
	}

	return &Result{
		Paths:       paths,
		Fingerprint: fingerprint,
		Classes:     f.Classes(),
		Accuracy:    report.Accuracy,
		Report:      report,
		Targets:     targets,
		TrainRows:   len(train),
		TestRows:    len(test),
	}, nil
}

func pick(samples []dataset.Sample, idx []int) []dataset.Sample {
	out := make([]dataset.Sample, len(idx))
	for i, j := range idx {
		out[i] = samples[j]
	}
	return out
}

func evaluate(f *forest.Forest, test []dataset.Sample, seed int64) (*metrics.Report, error) {
	actual := make([]string, len(test))
	predicted := make([]string, len(test))
	correct := make([]float64, len(test))
	for i, s := range test {
		p, err := f.Predict(s.Features)
		if err != nil {
			return nil, err
		}
		actual[i] = s.Label
		predicted[i] = p
		if p == s.Label {
			correct[i] = 1
		}
	}

	report, err := metrics.Evaluate(actual, predicted)
	if err != nil {
		return nil, err
	}
	ci := statistics.MeanCI(correct, ConfidenceLevel, seed)
	report.AccuracyCI = &ci
	return report, nil
}

// upToDate reports whether all artifacts exist and the model was trained on
// the same inputs.
func upToDate(paths Paths, fingerprint string) (*Result, bool) {
	model, err := artifact.Load(paths.Model)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("Existing model unusable; retraining", "error", err)
		}
		return nil, false
	}
	if model.Metadata.Fingerprint != fingerprint {
		return nil, false
	}
	targets, err := fertilizer.LoadTable(paths.Targets)
	if err != nil {
		return nil, false
	}
	if !exists(paths.Report) {
		return nil, false
	}
	return &Result{
		Paths:       paths,
		Fingerprint: fingerprint,
		Classes:     model.Metadata.Classes,
		Accuracy:    model.Metadata.Accuracy,
		Targets:     targets,
		TrainRows:   model.Metadata.TrainRows,
		TestRows:    model.Metadata.TestRows,
		Skipped:     true,
	}, true
}
