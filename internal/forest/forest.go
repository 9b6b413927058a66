// Package forest implements the crop classifier: a random forest of CART
// trees grown on bootstrap samples with per-split feature subsampling.
//
// A Forest is immutable once Fit returns and may be shared by any number of
// concurrent readers.
package forest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/spboyer/cropwise/internal/dataset"
	"github.com/spboyer/cropwise/internal/features"
)

// Forest is a trained classifier.
type Forest struct {
	classes []string
	params  Params
	trees   []tree
}

// FitOption customizes Fit without affecting the fitted model.
type FitOption func(*fitOptions)

type fitOptions struct {
	progress func(done, total int)
}

// WithProgress calls fn after each tree is grown. fn may be called from
// several goroutines at once.
func WithProgress(fn func(done, total int)) FitOption {
	return func(o *fitOptions) { o.progress = fn }
}

// Fit grows a forest on samples. Labels become the sorted class list.
// Results depend only on samples and p (not on p.Workers).
func Fit(ctx context.Context, samples []dataset.Sample, p Params, opts ...FitOption) (*Forest, error) {
	var o fitOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("forest: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("forest: %w", dataset.ErrEmptyDataset)
	}

	classes := dataset.Labels(samples)
	classIndex := make(map[string]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
	}

	x := make([][features.Count]float64, len(samples))
	y := make([]int, len(samples))
	for i, s := range samples {
		x[i] = s.Features.Values()
		y[i] = classIndex[s.Label]
	}

	slog.Debug("Growing forest", "trees", p.Trees, "samples", len(samples), "classes", len(classes), "workers", p.Workers)

	trees := make([]tree, p.Trees)
	var grown atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.Workers))
	for i := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trees[i] = growTree(x, y, len(classes), p, p.treeSeed(i))
			if n := grown.Add(1); o.progress != nil {
				o.progress(int(n), p.Trees)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forest: fit: %w", err)
	}

	p.Workers = 0
	return &Forest{classes: classes, params: p, trees: trees}, nil
}

// Classes returns the labels the forest can predict, in sorted order.
func (f *Forest) Classes() []string {
	out := make([]string, len(f.classes))
	copy(out, f.classes)
	return out
}

// Params returns the hyperparameters the forest was grown with.
func (f *Forest) Params() Params {
	return f.params
}

// NumTrees returns the ensemble size.
func (f *Forest) NumTrees() int {
	return len(f.trees)
}

// MaxDepth returns the depth of the deepest tree.
func (f *Forest) MaxDepth() int {
	d := 0
	for i := range f.trees {
		d = max(d, f.trees[i].depth())
	}
	return d
}

// Distribution returns class probabilities aligned with Classes(), averaged
// over every tree's leaf distribution.
func (f *Forest) Distribution(v features.Vector) ([]float64, error) {
	if err := v.CheckFinite(); err != nil {
		return nil, err
	}
	if len(f.trees) == 0 {
		return nil, errors.New("forest: no trees")
	}

	x := v.Values()
	dist := make([]float64, len(f.classes))
	for i := range f.trees {
		for k, p := range f.trees[i].distribution(&x) {
			dist[k] += p
		}
	}

	total := 0.0
	for _, p := range dist {
		total += p
	}
	for k := range dist {
		dist[k] /= total
	}
	return dist, nil
}

// PredictProba maps every class to its probability. Values are in [0, 1] and
// sum to 1.
func (f *Forest) PredictProba(v features.Vector) (map[string]float64, error) {
	dist, err := f.Distribution(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(dist))
	for k, p := range dist {
		out[f.classes[k]] = p
	}
	return out, nil
}

// Predict returns the most probable class. Ties go to the class that sorts
// first.
func (f *Forest) Predict(v features.Vector) (string, error) {
	dist, err := f.Distribution(v)
	if err != nil {
		return "", err
	}
	return f.classes[Argmax(dist)], nil
}

// Argmax returns the index of the largest value, preferring the lowest index
// on ties.
func Argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

type forestJSON struct {
	Classes []string `json:"classes"`
	Params  Params   `json:"params"`
	Trees   []tree   `json:"trees"`
}

// MarshalJSON encodes the full model.
func (f *Forest) MarshalJSON() ([]byte, error) {
	return json.Marshal(forestJSON{Classes: f.classes, Params: f.params, Trees: f.trees})
}

// UnmarshalJSON decodes a model and checks that every tree is well formed.
func (f *Forest) UnmarshalJSON(data []byte) error {
	var raw forestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Classes) == 0 {
		return errors.New("forest: no classes")
	}
	if !sort.StringsAreSorted(raw.Classes) {
		return errors.New("forest: classes are not sorted")
	}
	if len(raw.Trees) == 0 {
		return errors.New("forest: no trees")
	}
	for ti, t := range raw.Trees {
		if err := t.check(len(raw.Classes)); err != nil {
			return fmt.Errorf("forest: tree %d: %w", ti, err)
		}
	}
	*f = Forest{classes: raw.Classes, params: raw.Params, trees: raw.Trees}
	return nil
}

// leafTolerance bounds how far a stored leaf distribution may drift from 1.
const leafTolerance = 1e-6

// check validates child links and leaf distributions so prediction cannot
// panic, loop or yield NaN on a corrupt artifact. Children must point forward.
func (t *tree) check(nClasses int) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature == leaf {
			if len(n.Dist) != nClasses {
				return fmt.Errorf("node %d: leaf has %d probabilities, want %d", i, len(n.Dist), nClasses)
			}
			sum := 0.0
			for _, p := range n.Dist {
				if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
					return fmt.Errorf("node %d: leaf probability %g is not a non-negative number", i, p)
				}
				sum += p
			}
			if math.Abs(sum-1) > leafTolerance {
				return fmt.Errorf("node %d: leaf probabilities sum to %g, want 1", i, sum)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= features.Count {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}
