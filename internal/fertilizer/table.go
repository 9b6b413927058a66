// Package fertilizer holds per-crop nutrient targets and the advisor that
// turns a soil reading into fertilizer recommendations.
package fertilizer

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/spboyer/cropwise/internal/dataset"
	"github.com/spboyer/cropwise/internal/metrics"
	"github.com/spboyer/cropwise/internal/validation"
)

// Target is the desired N, P and K level for a crop.
type Target struct {
	N float64 `yaml:"N" json:"N" mapstructure:"N"`
	P float64 `yaml:"P" json:"P" mapstructure:"P"`
	K float64 `yaml:"K" json:"K" mapstructure:"K"`
}

// Table maps crop label to its nutrient target.
type Table map[string]Target

// Source names where a table came from.
type Source string

const (
	// SourceEditorial is the fixed, hand-maintained table.
	SourceEditorial Source = "editorial"
	// SourceDerived is the per-crop dataset average written by training.
	SourceDerived Source = "derived"
)

// ParseSource validates a table source name.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceEditorial, SourceDerived:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown targets source %q: must be %s or %s", s, SourceEditorial, SourceDerived)
}

// EditorialTable returns a fresh copy of the hand-maintained targets.
func EditorialTable() Table {
	return Table{
		"rice":      {N: 90, P: 40, K: 40},
		"wheat":     {N: 80, P: 35, K: 35},
		"maize":     {N: 85, P: 40, K: 40},
		"mango":     {N: 50, P: 30, K: 30},
		"cotton":    {N: 75, P: 30, K: 35},
		"sugarcane": {N: 120, P: 50, K: 60},
	}
}

// Crops returns the table's crop names in sorted order.
func (t Table) Crops() []string {
	crops := make([]string, 0, len(t))
	for c := range t {
		crops = append(crops, c)
	}
	sort.Strings(crops)
	return crops
}

// Lookup returns the target for crop.
func (t Table) Lookup(crop string) (Target, bool) {
	target, ok := t[crop]
	return target, ok
}

// Derive computes each label's mean N, P and K over samples, rounded to two
// decimal places.
func Derive(samples []dataset.Sample) Table {
	type acc struct{ n, p, k []float64 }
	groups := make(map[string]*acc)
	for _, s := range samples {
		g, ok := groups[s.Label]
		if !ok {
			g = &acc{}
			groups[s.Label] = g
		}
		g.n = append(g.n, s.Features.N)
		g.p = append(g.p, s.Features.P)
		g.k = append(g.k, s.Features.K)
	}

	table := make(Table, len(groups))
	for label, g := range groups {
		table[label] = Target{
			N: metrics.Round(metrics.Mean(g.n), 2),
			P: metrics.Round(metrics.Mean(g.p), 2),
			K: metrics.Round(metrics.Mean(g.k), 2),
		}
	}
	return table
}

// Encode renders the table as a YAML mapping sorted by crop.
func (t Table) Encode() ([]byte, error) {
	data, err := yaml.Marshal(map[string]Target(t))
	if err != nil {
		return nil, fmt.Errorf("encoding targets: %w", err)
	}
	return data, nil
}

// LoadTable reads a targets file, validates it against the targets schema,
// and decodes it.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading targets: %w", err)
	}
	return ParseTable(data)
}

// ParseTable validates and decodes targets YAML.
func ParseTable(data []byte) (Table, error) {
	if errs := validation.ValidateTargetsBytes(data); len(errs) > 0 {
		return nil, &validation.Error{Subject: "targets", Problems: errs}
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing targets: %w", err)
	}
	return FromMap(raw)
}

// FromMap decodes a loosely typed mapping (from YAML config or JSON) into a
// Table. Integer and float values are both accepted.
func FromMap(raw map[string]any) (Table, error) {
	table := make(Table, len(raw))
	for crop, v := range raw {
		var target Target
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &target,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(v); err != nil {
			return nil, fmt.Errorf("crop %q: %w", crop, err)
		}
		if target.N < 0 || target.P < 0 || target.K < 0 {
			return nil, fmt.Errorf("crop %q: targets must be non-negative", crop)
		}
		table[crop] = target
	}
	return table, nil
}
