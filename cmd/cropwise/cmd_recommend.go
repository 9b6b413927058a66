package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/spboyer/cropwise/internal/features"
	"github.com/spboyer/cropwise/internal/fertilizer"
	"github.com/spboyer/cropwise/internal/recommend"
	"github.com/spboyer/cropwise/internal/wizard"
)

// featureFlags maps each feature to its command-line flag, in features.Names
// order.
var featureFlags = []struct {
	feature string
	flag    string
	usage   string
}{
	{features.Nitrogen, "nitrogen", "Nitrogen content ratio (N)"},
	{features.Phosphorus, "phosphorus", "Phosphorus content ratio (P)"},
	{features.Potassium, "potassium", "Potassium content ratio (K)"},
	{features.Temperature, "temperature", "Temperature in degrees Celsius"},
	{features.Humidity, "humidity", "Relative humidity in percent"},
	{features.PH, "ph", "Soil pH"},
	{features.Rainfall, "rainfall", "Rainfall in mm"},
}

type recommendOptions struct {
	values      map[string]*float64
	interactive bool
	models      string
	targets     string
	top         int
	format      string
}

func newRecommendCommand() *cobra.Command {
	opts := &recommendOptions{values: make(map[string]*float64, len(featureFlags))}
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend a crop and fertilizer adjustment for a soil reading",
		Long: `Recommend a crop for the given soil and weather values, rank every crop the
model knows by confidence, and compare the soil's N, P and K with the
recommended crop's targets.

Pass all seven values as flags, or use --interactive to enter them in a form.
Values outside sane ranges (negative amounts, humidity above 100, pH above 14)
produce a warning but are still classified.`,
		Example: `  cropwise recommend --nitrogen 90 --phosphorus 42 --potassium 43 \
    --temperature 20.8 --humidity 82 --ph 6.5 --rainfall 202.9
  cropwise recommend --interactive --targets derived`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecommend(cmd, opts)
		},
	}

	f := cmd.Flags()
	for _, ff := range featureFlags {
		opts.values[ff.feature] = f.Float64(ff.flag, 0, ff.usage)
	}
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "Enter values in an interactive form")
	f.StringVar(&opts.models, "models", "", "Artifact directory (default: paths.models)")
	f.StringVar(&opts.targets, "targets", "", "Nutrient targets: editorial or derived (default: advisor.targets)")
	f.IntVar(&opts.top, "top", 0, "Show only the N most likely crops (0 for all)")
	f.StringVarP(&opts.format, "format", "f", "table", "Output format: table or json")

	return cmd
}

func runRecommend(cmd *cobra.Command, opts *recommendOptions) error {
	if opts.format != "table" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", opts.format)
	}
	if opts.top < 0 {
		return fmt.Errorf("--top must be >= 0, got %d", opts.top)
	}

	given, missing := flagValues(cmd, opts)
	if !opts.interactive && len(missing) > 0 {
		return fmt.Errorf("%w: missing %s (or use --interactive)",
			features.ErrInvalidInput, strings.Join(missing, ", "))
	}

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	source, err := targetsSource(flags, opts.targets, cfg)
	if err != nil {
		return err
	}
	engine, _, err := loadEngine(stringFlag(flags, "models", opts.models, cfg.Paths.Models), source, cfg)
	if err != nil {
		return err
	}

	v, err := readVector(cmd, opts, given)
	if err != nil {
		return err
	}

	var warnings []string
	if err := v.Validate(); err != nil {
		warnings = strings.Split(err.Error(), "\n")
		for _, w := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  %s\n", w) //nolint:errcheck
		}
	}

	rec, err := engine.Recommend(v)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return printRecommendJSON(cmd.OutOrStdout(), rec, opts.top, warnings)
	}
	printRecommendTable(cmd.OutOrStdout(), rec, opts.top)
	return nil
}

// flagValues collects the feature flags that were set and names the ones
// that were not.
func flagValues(cmd *cobra.Command, opts *recommendOptions) (map[string]float64, []string) {
	flags := cmd.Flags()
	given := make(map[string]float64, len(featureFlags))
	var missing []string
	for _, ff := range featureFlags {
		if flags.Changed(ff.flag) {
			given[ff.feature] = *opts.values[ff.feature]
		} else {
			missing = append(missing, "--"+ff.flag)
		}
	}
	return given, missing
}

// readVector builds the input from flags, or from the form when interactive.
// Flags given alongside --interactive pre-populate the form.
func readVector(cmd *cobra.Command, opts *recommendOptions, given map[string]float64) (features.Vector, error) {
	if opts.interactive {
		return wizard.RunFeatureWizard(cmd.InOrStdin(), cmd.OutOrStdout(), given)
	}
	values := make([]float64, 0, len(featureFlags))
	for _, ff := range featureFlags {
		values = append(values, given[ff.feature])
	}
	return features.FromValues(values)
}

type recommendJSON struct {
	Input      features.Vector       `json:"input"`
	Crop       string                `json:"crop"`
	Confidence float64               `json:"confidence"`
	Ranked     []recommend.CropScore `json:"ranked"`
	Fertilizer fertilizerJSON        `json:"fertilizer"`
	Warnings   []string              `json:"warnings,omitempty"`
}

type fertilizerJSON struct {
	Targets  fertilizer.Source    `json:"targets"`
	Status   fertilizer.Status    `json:"status"`
	Deficits []fertilizer.Deficit `json:"deficits,omitempty"`
	Messages []string             `json:"messages"`
}

func printRecommendJSON(w io.Writer, rec *recommend.Recommendation, top int, warnings []string) error {
	out := recommendJSON{
		Input:      rec.Input,
		Crop:       rec.Crop,
		Confidence: rec.Confidence,
		Ranked:     rec.Top(top),
		Fertilizer: fertilizerJSON{
			Targets:  rec.Targets,
			Status:   rec.Fertilizer.Status,
			Deficits: rec.Fertilizer.Deficits,
			Messages: rec.Fertilizer.Lines(),
		},
		Warnings: warnings,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal recommendation: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printRecommendTable(w io.Writer, rec *recommend.Recommendation, top int) {
	var b strings.Builder
	fmt.Fprintf(&b, "🌱 Recommended crop: %s (%.1f%% confidence)\n\n", rec.Crop, rec.Confidence*100)

	ranked := rec.Top(top)
	width := len("Crop")
	for _, s := range ranked {
		width = max(width, runewidth.StringWidth(s.Crop))
	}
	fmt.Fprintf(&b, "  %-4s  %s  %10s\n", "#", padRight("Crop", width), "Confidence")
	fmt.Fprintf(&b, "  %s\n", strings.Repeat("-", 4+2+width+2+10))
	for _, s := range ranked {
		fmt.Fprintf(&b, "  %-4d  %s  %9.1f%%\n", s.Rank, padRight(s.Crop, width), s.Probability*100)
	}
	if len(ranked) < len(rec.Ranked) {
		fmt.Fprintf(&b, "  ... %d more\n", len(rec.Ranked)-len(ranked))
	}

	fmt.Fprintf(&b, "\n🧪 Fertilizer advice for %s (%s targets):\n", rec.Crop, rec.Targets)
	for _, line := range rec.Fertilizer.Lines() {
		fmt.Fprintf(&b, "  - %s\n", line)
	}
	fmt.Fprint(w, b.String()) //nolint:errcheck
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
