// Package wizard collects a feature vector through an interactive form.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/spboyer/cropwise/internal/features"
)

// Field describes one form input.
type Field struct {
	Name        string
	Title       string
	Description string
	Placeholder string
}

// Fields lists the form inputs in features.Names order.
var Fields = []Field{
	{features.Nitrogen, "Nitrogen (N)", "Ratio of nitrogen content in the soil", "90"},
	{features.Phosphorus, "Phosphorus (P)", "Ratio of phosphorus content in the soil", "42"},
	{features.Potassium, "Potassium (K)", "Ratio of potassium content in the soil", "43"},
	{features.Temperature, "Temperature", "Average temperature in degrees Celsius", "20.8"},
	{features.Humidity, "Humidity", "Relative humidity in percent", "82"},
	{features.PH, "Soil pH", "pH value of the soil", "6.5"},
	{features.Rainfall, "Rainfall", "Rainfall in mm", "202.9"},
}

// RunFeatureWizard runs an interactive huh form asking for every feature.
// Values present in initial pre-populate their inputs.
func RunFeatureWizard(in io.Reader, out io.Writer, initial map[string]float64) (features.Vector, error) {
	values := prefill(initial)

	inputs := make([]huh.Field, len(Fields))
	for i, f := range Fields {
		inputs[i] = huh.NewInput().
			Title(f.Title).
			Description(f.Description).
			Placeholder(f.Placeholder).
			Value(values[f.Name]).
			Validate(validateNumber)
	}

	form := huh.NewForm(huh.NewGroup(inputs...)).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return features.Vector{}, fmt.Errorf("wizard failed: %w", err)
	}
	return collect(values)
}

// prefill allocates one string per field, seeded from initial.
func prefill(initial map[string]float64) map[string]*string {
	values := make(map[string]*string, len(Fields))
	for _, f := range Fields {
		s := ""
		if v, ok := initial[f.Name]; ok {
			s = strconv.FormatFloat(v, 'f', -1, 64)
		}
		values[f.Name] = &s
	}
	return values
}

func collect(values map[string]*string) (features.Vector, error) {
	raw := make(map[string]string, len(values))
	for name, v := range values {
		raw[name] = *v
	}
	return features.FromStrings(raw)
}

func validateNumber(s string) error {
	_, err := features.ParseValue(s)
	return err
}
