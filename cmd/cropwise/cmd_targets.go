package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/spboyer/cropwise/internal/fertilizer"
)

type targetsOptions struct {
	targets string
	models  string
	format  string
}

func newTargetsCommand() *cobra.Command {
	opts := &targetsOptions{}
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Show the per-crop N, P, K targets used for fertilizer advice",
		Long: `Show a nutrient target table.

"editorial" is the fixed table shipped with cropwise (or advisor.custom from
.cropwise.yaml). "derived" is the per-crop dataset average written by the last
training run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTargets(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.targets, "targets", "", "Table to show: editorial or derived (default: advisor.targets)")
	cmd.Flags().StringVar(&opts.models, "models", "", "Artifact directory holding derived targets (default: paths.models)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format: table, yaml or json")

	return cmd
}

func runTargets(cmd *cobra.Command, opts *targetsOptions) error {
	switch opts.format {
	case "table", "yaml", "json":
	default:
		return fmt.Errorf("unsupported format %q: must be table, yaml or json", opts.format)
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
	table, err := targetsTable(source, cfg, stringFlag(flags, "models", opts.models, cfg.Paths.Models))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch opts.format {
	case "yaml":
		data, err := table.Encode()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "json":
		data, err := json.MarshalIndent(table, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal targets: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	printTargetsTable(w, table, source)
	return nil
}

func printTargetsTable(w io.Writer, table fertilizer.Table, source fertilizer.Source) {
	crops := table.Crops()
	width := len("Crop")
	for _, c := range crops {
		width = max(width, runewidth.StringWidth(c))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Nutrient targets (%s, %d crops)\n\n", source, len(crops))
	fmt.Fprintf(&b, "  %s  %8s  %8s  %8s\n", padRight("Crop", width), "N", "P", "K")
	fmt.Fprintf(&b, "  %s\n", strings.Repeat("-", width+3*10))
	for _, c := range crops {
		t := table[c]
		fmt.Fprintf(&b, "  %s  %8.2f  %8.2f  %8.2f\n", padRight(c, width), t.N, t.P, t.K)
	}
	fmt.Fprint(w, b.String()) //nolint:errcheck
}
