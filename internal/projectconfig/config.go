// Package projectconfig provides the ProjectConfig struct and loader for
// .cropwise.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up from the working
// directory.
const FileName = ".cropwise.yaml"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultDatasetPath = "data/crop_recommendation.csv"
	DefaultModelsDir   = "models/"

	DefaultTrees           = 300
	DefaultMaxDepth        = 0
	DefaultMinSamplesSplit = 2
	DefaultMinSamplesLeaf  = 1
	DefaultMaxFeatures     = 0
	DefaultTestSize        = 0.2
	DefaultSeed            = 42
	DefaultWorkers         = 4

	DefaultTargets = "editorial"

	DefaultPublishContainer = "cropwise-models"
)

// PathsConfig holds the dataset location and the artifact directory.
type PathsConfig struct {
	Dataset string `yaml:"dataset,omitempty"`
	Models  string `yaml:"models,omitempty"`
}

// TrainingConfig holds forest hyperparameters and split settings.
// MaxDepth and MaxFeatures use 0 for "unlimited" and "sqrt of feature count".
type TrainingConfig struct {
	Trees           int     `yaml:"trees,omitempty"`
	MaxDepth        int     `yaml:"max_depth,omitempty"`
	MinSamplesSplit int     `yaml:"min_samples_split,omitempty"`
	MinSamplesLeaf  int     `yaml:"min_samples_leaf,omitempty"`
	MaxFeatures     int     `yaml:"max_features,omitempty"`
	TestSize        float64 `yaml:"test_size,omitempty"`
	Seed            *int64  `yaml:"seed,omitempty"`
	Workers         int     `yaml:"workers,omitempty"`
}

// AdvisorConfig selects the nutrient target table.
type AdvisorConfig struct {
	// Targets is "editorial" or "derived".
	Targets string `yaml:"targets,omitempty"`
	// Custom replaces the editorial table when set. Values are loosely typed
	// so that hand-written YAML like `N: "90"` still decodes.
	Custom map[string]any `yaml:"custom,omitempty"`
}

// PublishConfig holds the Azure Blob Storage destination.
type PublishConfig struct {
	AccountURL string `yaml:"account_url,omitempty"`
	Container  string `yaml:"container,omitempty"`
	Prefix     string `yaml:"prefix,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .cropwise.yaml.
type ProjectConfig struct {
	// Dir is the directory the file was found in; empty when only defaults
	// apply. Relative paths in the file are resolved against it.
	Dir string `yaml:"-"`

	Paths    PathsConfig    `yaml:"paths,omitempty"`
	Training TrainingConfig `yaml:"training,omitempty"`
	Advisor  AdvisorConfig  `yaml:"advisor,omitempty"`
	Publish  PublishConfig  `yaml:"publish,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Dataset: DefaultDatasetPath,
			Models:  DefaultModelsDir,
		},
		Training: TrainingConfig{
			Trees:           DefaultTrees,
			MaxDepth:        DefaultMaxDepth,
			MinSamplesSplit: DefaultMinSamplesSplit,
			MinSamplesLeaf:  DefaultMinSamplesLeaf,
			MaxFeatures:     DefaultMaxFeatures,
			TestSize:        DefaultTestSize,
			Seed:            int64Ptr(DefaultSeed),
			Workers:         DefaultWorkers,
		},
		Advisor: AdvisorConfig{
			Targets: DefaultTargets,
		},
		Publish: PublishConfig{
			Container: DefaultPublishContainer,
		},
	}
}

// Load finds .cropwise.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, path, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	mergeConfig(cfg, &fileCfg)
	cfg.Dir = filepath.Dir(path)
	cfg.Paths.Dataset = resolvePath(cfg.Paths.Dataset, cfg.Dir)
	cfg.Paths.Models = resolvePath(cfg.Paths.Models, cfg.Dir)
	return cfg, nil
}

// findConfigFile walks up from dir looking for .cropwise.yaml (max 10 levels)
// and returns its contents and path. Returns os.ErrNotExist if no config file
// is found.
func findConfigFile(dir string) ([]byte, string, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for range 10 {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, "", os.ErrNotExist
}

// resolvePath returns absolute paths unchanged and joins relative ones onto
// baseDir.
func resolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Paths
	if src.Paths.Dataset != "" {
		dst.Paths.Dataset = src.Paths.Dataset
	}
	if src.Paths.Models != "" {
		dst.Paths.Models = src.Paths.Models
	}

	// Training
	if src.Training.Trees != 0 {
		dst.Training.Trees = src.Training.Trees
	}
	if src.Training.MaxDepth != 0 {
		dst.Training.MaxDepth = src.Training.MaxDepth
	}
	if src.Training.MinSamplesSplit != 0 {
		dst.Training.MinSamplesSplit = src.Training.MinSamplesSplit
	}
	if src.Training.MinSamplesLeaf != 0 {
		dst.Training.MinSamplesLeaf = src.Training.MinSamplesLeaf
	}
	if src.Training.MaxFeatures != 0 {
		dst.Training.MaxFeatures = src.Training.MaxFeatures
	}
	if src.Training.TestSize != 0 {
		dst.Training.TestSize = src.Training.TestSize
	}
	if src.Training.Seed != nil {
		dst.Training.Seed = src.Training.Seed
	}
	if src.Training.Workers != 0 {
		dst.Training.Workers = src.Training.Workers
	}

	// Advisor
	if src.Advisor.Targets != "" {
		dst.Advisor.Targets = src.Advisor.Targets
	}
	if src.Advisor.Custom != nil {
		dst.Advisor.Custom = src.Advisor.Custom
	}

	// Publish
	if src.Publish.AccountURL != "" {
		dst.Publish.AccountURL = src.Publish.AccountURL
	}
	if src.Publish.Container != "" {
		dst.Publish.Container = src.Publish.Container
	}
	if src.Publish.Prefix != "" {
		dst.Publish.Prefix = src.Publish.Prefix
	}
}

// SeedValue returns the configured seed, or DefaultSeed when unset.
func (t TrainingConfig) SeedValue() int64 {
	if t.Seed == nil {
		return DefaultSeed
	}
	return *t.Seed
}

func int64Ptr(v int64) *int64 {
	return &v
}
