package main

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// cropCenters are rough per-crop means in N, P, K, temperature, humidity,
// ph, rainfall order.
var cropCenters = []struct {
	label  string
	center [7]float64
}{
	{"chickpea", [7]float64{40, 68, 80, 18, 17, 7.3, 80}},
	{"coffee", [7]float64{101, 29, 30, 25, 59, 6.8, 158}},
	{"rice", [7]float64{80, 48, 40, 23, 82, 6.4, 236}},
}

func cropCSV(perClass int) string {
	spreads := [7]float64{10, 8, 5, 3, 4, 0.4, 20}
	rng := rand.New(rand.NewSource(11))
	var b strings.Builder
	b.WriteString("N,P,K,temperature,humidity,ph,rainfall,label\n")
	for _, c := range cropCenters {
		for range perClass {
			for i, v := range c.center {
				fmt.Fprintf(&b, "%.2f,", math.Max(0, v+(rng.Float64()*2-1)*spreads[i]))
			}
			b.WriteString(c.label + "\n")
		}
	}
	return b.String()
}

// setupProject creates a project directory with a dataset at the default
// location and a small forest configured, and makes it the working directory.
func setupProject(t *testing.T, extraConfig string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	writeTestFile(t, filepath.Join(dir, "data", "crop_recommendation.csv"), cropCSV(20))
	writeTestFile(t, filepath.Join(dir, ".cropwise.yaml"), "training:\n  trees: 15\n  workers: 2\n"+extraConfig)
	t.Chdir(dir)
	return dir
}

// trainProject sets up a project and trains it.
func trainProject(t *testing.T, extraConfig string) string {
	t.Helper()
	dir := setupProject(t, extraConfig)
	_, _, err := runCLI(t, "train")
	require.NoError(t, err)
	return dir
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// riceArgs is a reading close to the rice center.
var riceArgs = []string{
	"--nitrogen", "80", "--phosphorus", "48", "--potassium", "40",
	"--temperature", "23", "--humidity", "82", "--ph", "6.4", "--rainfall", "236",
}
