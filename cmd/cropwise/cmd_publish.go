package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spboyer/cropwise/internal/publish"
	"github.com/spboyer/cropwise/internal/training"
)

// artifactPublisher is satisfied by *publish.Publisher.
type artifactPublisher interface {
	Publish(ctx context.Context, paths training.Paths) ([]publish.Uploaded, error)
}

// newPublisher is replaced in tests.
var newPublisher = func(opts publish.Options) (artifactPublisher, error) {
	return publish.New(opts)
}

type publishOptions struct {
	models     string
	accountURL string
	container  string
	prefix     string
	format     string
}

func newPublishCommand() *cobra.Command {
	opts := &publishOptions{}
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload trained artifacts to Azure Blob Storage",
		Long: `Upload crop_model.bin, crop_targets.yaml and training_report.txt to an Azure
Blob Storage container. The artifacts are checked first; nothing is uploaded
if any of them is missing or does not load.

Authentication uses DefaultAzureCredential (environment, managed identity,
Azure CLI, ...).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPublish(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.models, "models", "", "Artifact directory (default: paths.models)")
	f.StringVar(&opts.accountURL, "account-url", "", "Blob service URL (default: publish.account_url)")
	f.StringVar(&opts.container, "container", "", "Container name (default: publish.container)")
	f.StringVar(&opts.prefix, "prefix", "", "Blob name prefix (default: publish.prefix)")
	f.StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")

	return cmd
}

func runPublish(cmd *cobra.Command, opts *publishOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q: must be text or json", opts.format)
	}

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	p, err := newPublisher(publish.Options{
		AccountURL: stringFlag(flags, "account-url", opts.accountURL, cfg.Publish.AccountURL),
		Container:  stringFlag(flags, "container", opts.container, cfg.Publish.Container),
		Prefix:     stringFlag(flags, "prefix", opts.prefix, cfg.Publish.Prefix),
	})
	if err != nil {
		return err
	}

	paths := training.ArtifactPaths(stringFlag(flags, "models", opts.models, cfg.Paths.Models))
	uploaded, err := p.Publish(cmd.Context(), paths)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if opts.format == "json" {
		data, err := json.MarshalIndent(uploaded, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal upload result: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	for _, u := range uploaded {
		fmt.Fprintf(w, "☁️  %s -> %s (%d bytes)\n", u.File, u.Blob, u.Size) //nolint:errcheck
	}
	return nil
}
