// Package domain holds DTOs and ports for TOI scoring
package domain

import (
	"time"

	"exoseek/internal/core/features"
)

// ModelName is reported in every payload
const ModelName = "toi"

// PredictInput is the query for one candidate
// pointers distinguish absent from zero; snr may be omitted
type PredictInput struct {
	PeriodDays *float64 `json:"period_days" validate:"required,finite" example:"10"`
	DurationHr *float64 `json:"duration_hr" validate:"required,finite" example:"2"`
	DepthPct   *float64 `json:"depth_pct"   validate:"required,finite" example:"0.5"`
	SNR        *float64 `json:"snr,omitempty" validate:"omitempty,finite" example:"0"`
}

// Raw converts the input into catalog inputs, snr defaults to 0
func (in PredictInput) Raw() features.RawInput {
	r := features.RawInput{}
	if in.PeriodDays != nil {
		r.PeriodDays = *in.PeriodDays
	}
	if in.DurationHr != nil {
		r.DurationHr = *in.DurationHr
	}
	if in.DepthPct != nil {
		r.DepthPct = *in.DepthPct
	}
	if in.SNR != nil {
		r.SNR = *in.SNR
	}
	return r
}

// Status is the root liveness payload
type Status struct {
	Message      string   `json:"message"       example:"OK"`
	Model        string   `json:"model"         example:"toi"`
	ModelLoaded  bool     `json:"model_loaded"  example:"true"`
	FeaturesUsed []string `json:"features_used" example:"period_days,duration_hr,depth_pct,snr,dur_frac"`
}

// ReloadResult reports the state after a reload
type ReloadResult struct {
	Reloaded     bool     `json:"reloaded"      example:"true"`
	ModelLoaded  bool     `json:"model_loaded"  example:"true"`
	FeaturesUsed []string `json:"features_used" example:"period_days,duration_hr,depth_pct,snr,dur_frac"`
}

// Prediction is a scored candidate
type Prediction struct {
	Model        string   `json:"model"         example:"toi"`
	Prediction   string   `json:"prediction"    example:"Likely Planet"`
	Probability  float64  `json:"probability"   example:"0.734"`
	UsedFeatures []string `json:"used_features" example:"period_days,duration_hr,depth_pct,snr,dur_frac"`
}

// PredictionDetail is the versioned API shape with provenance
type PredictionDetail struct {
	Prediction
	ID         string  `json:"id"         example:"0f8fad5b-d9cb-469f-a165-70867728950e"`
	Generation uint64  `json:"generation" example:"3"`
	Threshold  float64 `json:"threshold"  example:"0.5"`
}

// ErrorBody is the legacy error payload
type ErrorBody struct {
	Error        string   `json:"error"                   example:"TOI model not loaded"`
	UsedFeatures []string `json:"used_features,omitempty" example:"period_days,duration_hr"`
}

// ModelInfo describes the active snapshot
type ModelInfo struct {
	Model             string     `json:"model"                        example:"toi"`
	Loaded            bool       `json:"loaded"                       example:"true"`
	Kind              string     `json:"kind,omitempty"               example:"forest"`
	Generation        uint64     `json:"generation"                   example:"2"`
	FeaturesUsed      []string   `json:"features_used"`
	FeatureSource     string     `json:"feature_source"               example:"metadata"`
	UnknownFeatures   []string   `json:"unknown_features,omitempty"`
	ArtifactPath      string     `json:"artifact_path"                example:"models/rf_toi.json"`
	MetadataPath      string     `json:"metadata_path"                example:"artifacts/metrics_toi.json"`
	LoadedAt          *time.Time `json:"loaded_at,omitempty"` // nil before the first load
	ServingThreshold  float64    `json:"serving_threshold"            example:"0.5"`
	TrainingThreshold *float64   `json:"training_threshold,omitempty" example:"0.5"`
	AUC               *float64   `json:"auc,omitempty"                example:"0.91"`
	NTrain            *int       `json:"n_train,omitempty"            example:"4000"`
	NTest             *int       `json:"n_test,omitempty"             example:"1000"`
	ArtifactError     string     `json:"artifact_error,omitempty"`
	MetadataError     string     `json:"metadata_error,omitempty"`
}

// RecentInput pages recent audited predictions
type RecentInput struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=500" example:"50"`
}
