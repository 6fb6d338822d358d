package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"exoseek/internal/core/features"
)

var (
	// ErrMetadataMissing means no metadata file exists at the configured path
	ErrMetadataMissing = errors.New("registry: metadata missing")
	// ErrMetadataMalformed means metadata exists but has no usable features_used list
	ErrMetadataMalformed = errors.New("registry: metadata malformed")
)

// Metadata is the training report written next to the artifact
// only features_used is required; the rest is informational
type Metadata struct {
	Model             string          `json:"model,omitempty"`
	FeaturesUsed      []features.Name `json:"features_used"`
	TrainingThreshold *float64        `json:"threshold,omitempty"`
	AUC               *float64        `json:"auc,omitempty"`
	NTrain            *int            `json:"n_train,omitempty"`
	NTest             *int            `json:"n_test,omitempty"`
	ConfusionMatrix   [][]int         `json:"confusion_matrix,omitempty"`
	Report            json.RawMessage `json:"classification_report,omitempty"`
}

// ParseMetadata decodes b and validates features_used
// informational fields with an unexpected type are dropped rather than failing the whole file
func ParseMetadata(b []byte) (Metadata, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrMetadataMalformed, err)
	}

	fu, ok := raw["features_used"]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: features_used absent", ErrMetadataMalformed)
	}
	var names []string
	if err := json.Unmarshal(fu, &names); err != nil {
		return Metadata{}, fmt.Errorf("%w: features_used is not a list of strings", ErrMetadataMalformed)
	}
	if len(names) == 0 {
		return Metadata{}, fmt.Errorf("%w: features_used is empty", ErrMetadataMalformed)
	}
	for i, n := range names {
		if n == "" {
			return Metadata{}, fmt.Errorf("%w: features_used[%d] is empty", ErrMetadataMalformed, i)
		}
	}

	md := Metadata{}
	md.FeaturesUsed, _ = features.ParseList(names)
	optional(raw, "model", &md.Model)
	optional(raw, "threshold", &md.TrainingThreshold)
	optional(raw, "auc", &md.AUC)
	optional(raw, "n_train", &md.NTrain)
	optional(raw, "n_test", &md.NTest)
	optional(raw, "confusion_matrix", &md.ConfusionMatrix)
	if r, ok := raw["classification_report"]; ok && json.Valid(r) {
		md.Report = r
	}
	return md, nil
}

func optional[T any](raw map[string]json.RawMessage, key string, dst *T) {
	b, ok := raw[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(b, &v); err == nil {
		*dst = v
	}
}
