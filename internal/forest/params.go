package forest

import (
	"fmt"
	"math"

	"github.com/spboyer/cropwise/internal/features"
)

// Default hyperparameters.
const (
	DefaultTrees           = 300
	DefaultMaxDepth        = 0 // unlimited
	DefaultMinSamplesSplit = 2
	DefaultMinSamplesLeaf  = 1
	DefaultSeed            = 42
)

// Params controls how a forest is grown.
type Params struct {
	Trees           int   `json:"trees" yaml:"trees"`
	MaxDepth        int   `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	// MaxFeatures is the number of features tried per split; 0 means
	// floor(sqrt(features.Count)).
	MaxFeatures int   `json:"max_features" yaml:"max_features"`
	Seed        int64 `json:"seed" yaml:"seed"`
	// Workers bounds parallel tree fitting. It does not affect results and is
	// not persisted.
	Workers int `json:"-" yaml:"-"`
}

// DefaultParams returns the hyperparameters used when none are configured.
func DefaultParams() Params {
	return Params{
		Trees:           DefaultTrees,
		MaxDepth:        DefaultMaxDepth,
		MinSamplesSplit: DefaultMinSamplesSplit,
		MinSamplesLeaf:  DefaultMinSamplesLeaf,
		Seed:            DefaultSeed,
		Workers:         1,
	}
}

// Validate rejects hyperparameters that cannot grow a forest.
func (p Params) Validate() error {
	switch {
	case p.Trees < 1:
		return fmt.Errorf("trees must be >= 1, got %d", p.Trees)
	case p.MaxDepth < 0:
		return fmt.Errorf("max depth must be >= 0, got %d", p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return fmt.Errorf("min samples split must be >= 2, got %d", p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return fmt.Errorf("min samples leaf must be >= 1, got %d", p.MinSamplesLeaf)
	case p.MaxFeatures < 0 || p.MaxFeatures > features.Count:
		return fmt.Errorf("max features must be within [0, %d], got %d", features.Count, p.MaxFeatures)
	case p.Seed < 0:
		return fmt.Errorf("seed must be >= 0, got %d", p.Seed)
	}
	return nil
}

func (p Params) featuresPerSplit() int {
	if p.MaxFeatures > 0 {
		return p.MaxFeatures
	}
	return max(1, int(math.Sqrt(float64(features.Count))))
}

// treeSeed derives an independent seed per tree so results do not depend on
// the order in which workers finish.
func (p Params) treeSeed(i int) int64 {
	return p.Seed*1_000_003 + int64(i)*7_919 + 1
}
