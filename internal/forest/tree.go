package forest

import (
	"math/rand"
	"sort"

	"github.com/spboyer/cropwise/internal/features"
	"github.com/spboyer/cropwise/internal/statistics"
)

const leaf = -1

// node is one entry of a flattened tree. Leaves have Feature == leaf and carry
// a class distribution; internal nodes route x[Feature] <= Threshold left.
type node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Dist      []float64 `json:"d,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

// distribution walks x down to a leaf.
func (t *tree) distribution(x *[features.Count]float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature == leaf {
			return n.Dist
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *tree) depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// builder grows one CART tree on a bootstrap sample using Gini impurity.
type builder struct {
	x        [][features.Count]float64
	y        []int
	nClasses int
	params   Params
	rng      *rand.Rand
	nodes    []node
}

func growTree(x [][features.Count]float64, y []int, nClasses int, p Params, seed int64) tree {
	b := &builder{
		x:        x,
		y:        y,
		nClasses: nClasses,
		params:   p,
		rng:      statistics.NewRand(seed),
	}
	sample := statistics.BootstrapIndices(len(x), b.rng)
	b.build(sample, 0)
	return tree{Nodes: b.nodes}
}

func (b *builder) counts(idx []int) []int {
	c := make([]int, b.nClasses)
	for _, i := range idx {
		c[b.y[i]]++
	}
	return c
}

func (b *builder) leafNode(counts []int, n int) node {
	dist := make([]float64, b.nClasses)
	for k, c := range counts {
		dist[k] = float64(c) / float64(n)
	}
	return node{Feature: leaf, Dist: dist}
}

// build appends the subtree for idx and returns its node index.
func (b *builder) build(idx []int, depth int) int {
	self := len(b.nodes)
	counts := b.counts(idx)
	b.nodes = append(b.nodes, node{})

	if b.stop(idx, counts, depth) {
		b.nodes[self] = b.leafNode(counts, len(idx))
		return self
	}

	feature, threshold, ok := b.bestSplit(idx, counts)
	if !ok {
		b.nodes[self] = b.leafNode(counts, len(idx))
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self] = node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return self
}

func (b *builder) stop(idx []int, counts []int, depth int) bool {
	if len(idx) < b.params.MinSamplesSplit || len(idx) < 2*b.params.MinSamplesLeaf {
		return true
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return true
	}
	for _, c := range counts {
		if c == len(idx) {
			return true // pure
		}
	}
	return false
}

// bestSplit evaluates a random subset of features and returns the split with
// the lowest weighted Gini impurity. If none of the sampled features can split
// the node, the remaining features are tried as well.
func (b *builder) bestSplit(idx []int, counts []int) (int, float64, bool) {
	order := b.rng.Perm(features.Count)
	want := b.params.featuresPerSplit()

	bestFeature, bestThreshold := -1, 0.0
	bestScore := 0.0
	sorted := make([]int, len(idx))
	left := make([]int, b.nClasses)
	right := make([]int, b.nClasses)

	for tried, f := range order {
		if tried >= want && bestFeature >= 0 {
			break
		}

		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.x[sorted[a]][f] < b.x[sorted[c]][f] })

		clear(left)
		copy(right, counts)
		n := len(sorted)
		minLeaf := b.params.MinSamplesLeaf

		for pos := 0; pos < n-1; pos++ {
			k := b.y[sorted[pos]]
			left[k]++
			right[k]--

			nl := pos + 1
			nr := n - nl
			lo, hi := b.x[sorted[pos]][f], b.x[sorted[pos+1]][f]
			if lo == hi || nl < minLeaf || nr < minLeaf {
				continue
			}

			score := weightedGini(left, nl) + weightedGini(right, nr)
			if bestFeature < 0 || score < bestScore {
				bestFeature = f
				bestScore = score
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold == hi {
					// midpoint rounded up to hi; keep hi on the right side
					bestThreshold = lo
				}
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

// weightedGini returns n * gini(counts), i.e. n - sum(c^2)/n.
func weightedGini(counts []int, n int) float64 {
	sumSq := 0.0
	for _, c := range counts {
		sumSq += float64(c) * float64(c)
	}
	return float64(n) - sumSq/float64(n)
}
