// Package statistics holds the sampling routines used by training: stratified
// splits, bootstrap resampling and bootstrap confidence intervals.
package statistics

import (
	"fmt"
	"math"
	"sort"
)

// Split holds row indices for the two partitions, each in ascending order.
type Split struct {
	Train []int
	Test  []int
}

// StratifiedSplit partitions row indices so that every label keeps roughly the
// same share in both partitions. Each label must have at least 2 rows; each
// then contributes at least one row to train and one to test.
func StratifiedSplit(labels []string, testSize float64, seed int64) (Split, error) {
	if testSize <= 0 || testSize >= 1 {
		return Split{}, fmt.Errorf("test size must be within (0, 1), got %g", testSize)
	}

	groups := make(map[string][]int)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}
	names := make([]string, 0, len(groups))
	for l := range groups {
		names = append(names, l)
	}
	sort.Strings(names)

	rng := NewRand(seed)
	var split Split
	for _, l := range names {
		idx := groups[l]
		if len(idx) < 2 {
			return Split{}, fmt.Errorf("label %q has %d rows; at least 2 are needed to stratify", l, len(idx))
		}
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })

		nTest := int(math.Round(testSize * float64(len(idx))))
		nTest = max(1, min(nTest, len(idx)-1))

		split.Test = append(split.Test, idx[:nTest]...)
		split.Train = append(split.Train, idx[nTest:]...)
	}

	sort.Ints(split.Train)
	sort.Ints(split.Test)
	return split, nil
}
