// Package artifact persists a trained forest together with the metadata
// needed to check that it still matches the feature schema.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/spboyer/cropwise/internal/features"
	"github.com/spboyer/cropwise/internal/forest"
)

// FormatVersion is bumped whenever the envelope layout changes.
const FormatVersion = 1

// ErrIncompatible is returned for artifacts written by a different format
// version or for a different feature schema.
var ErrIncompatible = errors.New("incompatible model artifact")

// Metadata describes how a model was produced.
type Metadata struct {
	FormatVersion int           `json:"format_version"`
	Features      []string      `json:"features"`
	Classes       []string      `json:"classes"`
	Params        forest.Params `json:"params"`
	// Fingerprint identifies the dataset and settings the model was trained on.
	Fingerprint string    `json:"fingerprint"`
	TrainedAt   time.Time `json:"trained_at"`
	Accuracy    float64   `json:"accuracy"`
	TrainRows   int       `json:"train_rows"`
	TestRows    int       `json:"test_rows"`
}

// Model is a loaded artifact.
type Model struct {
	Metadata Metadata       `json:"metadata"`
	Forest   *forest.Forest `json:"forest"`
}

// New wraps a freshly trained forest; Features, Classes, Params and
// FormatVersion are filled from the forest and schema.
func New(f *forest.Forest, meta Metadata) *Model {
	meta.FormatVersion = FormatVersion
	meta.Features = features.Names[:]
	meta.Classes = f.Classes()
	meta.Params = f.Params()
	return &Model{Metadata: meta, Forest: f}
}

// Encode serializes m as zstd-compressed JSON.
func Encode(m *Model) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("artifact: encoding model: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	defer enc.Close() //nolint:errcheck
	return enc.EncodeAll(raw, nil), nil
}

// Decode parses data produced by Encode and checks compatibility.
func Decode(data []byte) (*Model, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("artifact: decompressing model: %w", err)
	}

	// Check the envelope before decoding the (large) forest.
	var head struct {
		Metadata Metadata `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("artifact: decoding metadata: %w", err)
	}
	if err := checkCompatible(head.Metadata); err != nil {
		return nil, err
	}

	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("artifact: decoding model: %w", err)
	}
	if m.Forest == nil {
		return nil, fmt.Errorf("artifact: %w: no forest", ErrIncompatible)
	}
	if !slices.Equal(m.Forest.Classes(), m.Metadata.Classes) {
		return nil, fmt.Errorf("artifact: %w: metadata classes do not match the forest", ErrIncompatible)
	}
	return &m, nil
}

func checkCompatible(meta Metadata) error {
	if meta.FormatVersion != FormatVersion {
		return fmt.Errorf("artifact: %w: format version %d, expected %d", ErrIncompatible, meta.FormatVersion, FormatVersion)
	}
	if !slices.Equal(meta.Features, features.Names[:]) {
		return fmt.Errorf("artifact: %w: features %v, expected %v", ErrIncompatible, meta.Features, features.Names)
	}
	return nil
}

// Load reads and decodes the artifact at path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: reading %s: %w", path, err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
