package training

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spboyer/cropwise/internal/forest"
)

// profiles hold rough per-crop centers in feature order
// N, P, K, temperature, humidity, ph, rainfall.
var profiles = []struct {
	label  string
	center [7]float64
}{
	{"chickpea", [7]float64{40, 68, 80, 18, 17, 7.3, 80}},
	{"coffee", [7]float64{101, 29, 30, 25, 59, 6.8, 158}},
	{"rice", [7]float64{80, 48, 40, 23, 82, 6.4, 236}},
}

var spreads = [7]float64{10, 8, 5, 3, 4, 0.4, 20}

func datasetCSV(perClass int, seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	b.WriteString("N,P,K,temperature,humidity,ph,rainfall,label\n")
	for _, p := range profiles {
		for range perClass {
			for i, c := range p.center {
				v := math.Max(0, c+(rng.Float64()*2-1)*spreads[i])
				if i < 3 {
					v = math.Round(v)
				}
				fmt.Fprintf(&b, "%g,", v)
			}
			b.WriteString(p.label + "\n")
		}
	}
	return b.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func testParams() forest.Params {
	p := forest.DefaultParams()
	p.Trees = 20
	p.Workers = 4
	return p
}

// listDir returns the names in dir, or nil if it does not exist.
func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
