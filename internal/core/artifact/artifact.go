// Package artifact loads persisted classifiers into opaque scoring handles
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"exoseek/internal/core/features"
)

// Model is a loaded binary classifier
// implementations are immutable after load and safe for concurrent use
type Model interface {
	// PredictProba returns P(positive class) for one positional row
	PredictProba(xs []features.Value) (float64, error)
	// NumFeatures is the row width the model expects, 0 when unknown
	NumFeatures() int
	// Features returns the column names embedded in the artifact, nil when it carries none
	Features() []features.Name
	// Kind names the backend, e.g. forest or onnx
	Kind() string
}

var (
	// ErrNotFound means no artifact exists at the configured path
	ErrNotFound = errors.New("artifact: not found")
	// ErrFormat means the file exists but could not be decoded into a model
	ErrFormat = errors.New("artifact: bad format")
	// ErrShape means a row did not match the model's expected width
	ErrShape = errors.New("artifact: row shape mismatch")
)

// Options tunes backend specific loading
type Options struct {
	// ORTLibraryPath points at the onnxruntime shared library, empty uses the loader default
	ORTLibraryPath string
	// ONNXInput is the graph input name, empty means the first declared input
	ONNXInput string
	// ONNXProbOutput is the probability output name
	ONNXProbOutput string
}

// Load decodes the artifact at path choosing the backend by file extension
func Load(path string, opt Options) (Model, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	switch ext := extOf(path); ext {
	case ".json", ".json.gz":
		return loadForestFile(path)
	case ".onnx":
		return loadONNX(path, opt)
	default:
		return nil, fmt.Errorf("%w: unsupported extension %q", ErrFormat, ext)
	}
}

// extOf returns the lowercased extension and keeps the compound .json.gz intact
func extOf(path string) string {
	base := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(base, ".json.gz") {
		return ".json.gz"
	}
	return filepath.Ext(base)
}
