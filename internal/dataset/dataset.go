// Package dataset loads labeled crop observations and enforces the training
// schema.
package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spboyer/cropwise/internal/features"
)

var (
	// ErrSchema is returned when a required column is absent, a cell
	// cannot be parsed, or a row is out of range.
	ErrSchema = errors.New("dataset schema error")

	// ErrEmptyDataset is returned when there are no rows, or when a label has
	// too few rows to appear on both sides of a stratified split.
	ErrEmptyDataset = errors.New("dataset is empty")
)

// MinPerClass is the smallest class size a stratified split can handle.
const MinPerClass = 2

// RequiredColumns lists the feature columns followed by the label column.
func RequiredColumns() []string {
	cols := make([]string, 0, features.Count+1)
	cols = append(cols, features.Names[:]...)
	return append(cols, features.Label)
}

// Sample is one labeled observation.
type Sample struct {
	Features features.Vector
	Label    string
}

// Dataset is a parsed, schema-checked collection of samples.
type Dataset struct {
	Source  string
	Samples []Sample
	// Digest is the hex sha256 of the raw (decompressed) file contents.
	Digest string
}

// Load reads path, checks the schema, and parses every row.
func Load(path string) (*Dataset, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	table, err := ParseCSV(path, data)
	if err != nil {
		return nil, err
	}
	samples, err := FromTable(table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	sum := sha256.Sum256(data)
	return &Dataset{
		Source:  path,
		Samples: samples,
		Digest:  hex.EncodeToString(sum[:]),
	}, nil
}

// FromTable converts raw CSV rows into samples. Column order is irrelevant;
// extra columns are ignored. Rows outside the agronomic ranges of
// features.Vector.Validate are rejected, so derived nutrient means stay
// non-negative.
func FromTable(t *Table) ([]Sample, error) {
	var missing []string
	for _, col := range RequiredColumns() {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns %s (found %s)",
			ErrSchema, strings.Join(missing, ", "), strings.Join(t.Headers, ", "))
	}

	samples := make([]Sample, 0, len(t.Rows))
	for i, row := range t.Rows {
		vec, err := features.FromStrings(row)
		if err != nil {
			// +2: one for the header, one for 1-based numbering
			return nil, fmt.Errorf("%w: row %d: %v", ErrSchema, i+2, err)
		}
		if err := vec.Validate(); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrSchema, i+2, err)
		}
		label := strings.TrimSpace(row[features.Label])
		if label == "" {
			return nil, fmt.Errorf("%w: row %d: empty label", ErrSchema, i+2)
		}
		samples = append(samples, Sample{Features: vec, Label: label})
	}
	return samples, nil
}

// Labels returns the distinct labels in sorted order.
func Labels(samples []Sample) []string {
	counts := ClassCounts(samples)
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// ClassCounts returns the number of samples per label.
func ClassCounts(samples []Sample) map[string]int {
	counts := make(map[string]int)
	for _, s := range samples {
		counts[s.Label]++
	}
	return counts
}

// CheckStratifiable returns ErrEmptyDataset when there are no samples or any
// label has fewer than MinPerClass samples.
func CheckStratifiable(samples []Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("%w: no data rows", ErrEmptyDataset)
	}
	counts := ClassCounts(samples)
	var small []string
	for _, l := range Labels(samples) {
		if counts[l] < MinPerClass {
			small = append(small, fmt.Sprintf("%s (%d)", l, counts[l]))
		}
	}
	if len(small) > 0 {
		return fmt.Errorf("%w: labels with fewer than %d rows: %s",
			ErrEmptyDataset, MinPerClass, strings.Join(small, ", "))
	}
	return nil
}
