package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/spboyer/cropwise/internal/artifact"
	"github.com/spboyer/cropwise/internal/fertilizer"
	"github.com/spboyer/cropwise/internal/forest"
	"github.com/spboyer/cropwise/internal/projectconfig"
	"github.com/spboyer/cropwise/internal/recommend"
	"github.com/spboyer/cropwise/internal/training"
)

// loadProjectConfig reads .cropwise.yaml from the working directory or one of
// its parents.
func loadProjectConfig() (*projectconfig.ProjectConfig, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return projectconfig.Load(wd)
}

func forestParams(t projectconfig.TrainingConfig) forest.Params {
	return forest.Params{
		Trees:           t.Trees,
		MaxDepth:        t.MaxDepth,
		MinSamplesSplit: t.MinSamplesSplit,
		MinSamplesLeaf:  t.MinSamplesLeaf,
		MaxFeatures:     t.MaxFeatures,
		Seed:            t.SeedValue(),
		Workers:         t.Workers,
	}
}

// stringFlag returns the flag value when it was set, else fallback.
func stringFlag(flags *pflag.FlagSet, name, value, fallback string) string {
	if flags.Changed(name) {
		return value
	}
	return fallback
}

// targetsSource resolves --targets against advisor.targets.
func targetsSource(flags *pflag.FlagSet, value string, cfg *projectconfig.ProjectConfig) (fertilizer.Source, error) {
	return fertilizer.ParseSource(stringFlag(flags, "targets", value, cfg.Advisor.Targets))
}

// targetsTable returns the table for source. The editorial table may be
// replaced by advisor.custom; the derived table comes from the last training
// run in modelsDir.
func targetsTable(source fertilizer.Source, cfg *projectconfig.ProjectConfig, modelsDir string) (fertilizer.Table, error) {
	switch source {
	case fertilizer.SourceDerived:
		path := training.ArtifactPaths(modelsDir).Targets
		table, err := fertilizer.LoadTable(path)
		if err != nil {
			return nil, fmt.Errorf("loading derived targets (run 'cropwise train' first): %w", err)
		}
		return table, nil
	default:
		if cfg.Advisor.Custom != nil {
			table, err := fertilizer.FromMap(cfg.Advisor.Custom)
			if err != nil {
				return nil, fmt.Errorf("advisor.custom in %s: %w", projectconfig.FileName, err)
			}
			return table, nil
		}
		return fertilizer.EditorialTable(), nil
	}
}

// loadEngine loads the trained model once and pairs it with the selected
// target table.
func loadEngine(modelsDir string, source fertilizer.Source, cfg *projectconfig.ProjectConfig) (*recommend.Engine, *artifact.Model, error) {
	model, err := artifact.Load(training.ArtifactPaths(modelsDir).Model)
	if err != nil {
		return nil, nil, fmt.Errorf("loading model (run 'cropwise train' first): %w", err)
	}
	table, err := targetsTable(source, cfg, modelsDir)
	if err != nil {
		return nil, nil, err
	}
	return recommend.NewEngine(model.Forest, fertilizer.NewAdvisor(table, source)), model, nil
}
