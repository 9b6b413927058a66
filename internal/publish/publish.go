// Package publish uploads trained artifacts to Azure Blob Storage.
package publish

//go:generate go tool mockgen -source=uploader.go -destination=mock_uploader_test.go -package=publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/spboyer/cropwise/internal/artifact"
	"github.com/spboyer/cropwise/internal/training"
	"github.com/spboyer/cropwise/internal/validation"
)

// Options locates the destination container.
type Options struct {
	// AccountURL is the blob service endpoint, e.g.
	// https://<account>.blob.core.windows.net
	AccountURL string
	Container  string
	// Prefix is prepended to every blob name.
	Prefix string
}

func (o Options) validate() error {
	if o.AccountURL == "" {
		return errors.New("publish: account URL is required")
	}
	if o.Container == "" {
		return errors.New("publish: container is required")
	}
	return nil
}

// Uploaded describes one blob written by Publish.
type Uploaded struct {
	File string `json:"file"`
	Blob string `json:"blob"`
	Size int    `json:"size"`
}

// Publisher uploads artifact sets.
type Publisher struct {
	client    blobUploader
	container string
	prefix    string
}

// New creates a Publisher authenticated with DefaultAzureCredential.
func New(opts Options) (*Publisher, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("publish: obtaining Azure credential: %w", err)
	}
	return NewWithCredential(opts, cred)
}

// NewWithCredential creates a Publisher using cred.
func NewWithCredential(opts Options, cred azcore.TokenCredential) (*Publisher, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	client, err := azblob.NewClient(opts.AccountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("publish: creating blob client: %w", err)
	}
	return newPublisher(client, opts.Container, opts.Prefix), nil
}

func newPublisher(client blobUploader, container, prefix string) *Publisher {
	return &Publisher{client: client, container: container, prefix: prefix}
}

type upload struct {
	file        string
	contentType string
	data        []byte
}

// Publish checks that the artifact set loads cleanly, then uploads the model,
// targets, and report. Nothing is uploaded if any artifact is missing or
// invalid. Blobs carry the training fingerprint as metadata.
func (p *Publisher) Publish(ctx context.Context, paths training.Paths) ([]Uploaded, error) {
	model, err := artifact.Load(paths.Model)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	if err := validation.ValidateTargets(paths.Targets); err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	uploads := []upload{
		{file: paths.Model, contentType: "application/zstd"},
		{file: paths.Targets, contentType: "application/yaml"},
		{file: paths.Report, contentType: "text/plain; charset=utf-8"},
	}
	for i := range uploads {
		data, err := os.ReadFile(uploads[i].file)
		if err != nil {
			return nil, fmt.Errorf("publish: reading %s: %w", uploads[i].file, err)
		}
		uploads[i].data = data
	}

	if err := p.ensureContainer(ctx); err != nil {
		return nil, err
	}

	metadata := map[string]*string{
		"fingerprint": to.Ptr(model.Metadata.Fingerprint),
		"trained_at":  to.Ptr(model.Metadata.TrainedAt.UTC().Format("2006-01-02T15:04:05Z")),
	}
	out := make([]Uploaded, 0, len(uploads))
	for _, u := range uploads {
		name := p.blobName(u.file)
		slog.Debug("Uploading artifact", "file", u.file, "blob", name, "bytes", len(u.data))
		_, err := p.client.UploadBuffer(ctx, p.container, name, u.data, &azblob.UploadBufferOptions{
			HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(u.contentType)},
			Metadata:    metadata,
		})
		if err != nil {
			return out, fmt.Errorf("publish: uploading %s: %w", name, err)
		}
		out = append(out, Uploaded{File: u.file, Blob: name, Size: len(u.data)})
	}
	return out, nil
}

func (p *Publisher) ensureContainer(ctx context.Context) error {
	_, err := p.client.CreateContainer(ctx, p.container, nil)
	if err == nil || bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil
	}
	return fmt.Errorf("publish: creating container %s: %w", p.container, err)
}

// blobName maps a local file to its blob name. Blob names always use forward
// slashes.
func (p *Publisher) blobName(file string) string {
	base := filepath.Base(file)
	if p.prefix == "" {
		return base
	}
	return path.Join(p.prefix, base)
}
