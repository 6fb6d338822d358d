package module

import (
	"time"

	"exoseek/internal/core/scorer"
	"exoseek/internal/platform/config"
)

// Options controls where the model lives and how predictions are audited
type Options struct {
	ModelPath    string
	MetadataPath string
	Threshold    float64 // serving cutoff, strict greater than

	Watch         bool          // reload on file changes
	WatchDebounce time.Duration // coalesce bursts of writes
	RetireAfter   time.Duration // grace before a replaced artifact is closed

	AuditBuffer     int
	AuditBatch      int
	AuditFlushEvery time.Duration
	AutoMigrate     bool // create audit tables on Start

	// onnx backend
	ORTLibraryPath string
	ONNXInput      string
	ONNXProbOutput string
}

// FromConfig reads CORE_TOI_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	tc := cfg.Prefix("CORE_TOI_")
	return Options{
		ModelPath:       tc.MayString("MODEL_PATH", "models/rf_toi.json"),
		MetadataPath:    tc.MayString("METADATA_PATH", "artifacts/metrics_toi.json"),
		Threshold:       tc.MayFloat64("THRESHOLD", scorer.DecisionThreshold),
		Watch:           tc.MayBool("WATCH", false),
		WatchDebounce:   tc.MayDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
		RetireAfter:     tc.MayDuration("RETIRE_AFTER", 30*time.Second),
		AuditBuffer:     tc.MayInt("AUDIT_BUFFER", 1024),
		AuditBatch:      tc.MayInt("AUDIT_BATCH", 128),
		AuditFlushEvery: tc.MayDuration("AUDIT_FLUSH_EVERY", time.Second),
		AutoMigrate:     tc.MayBool("AUTO_MIGRATE", true),
		ORTLibraryPath:  tc.MayString("ORT_LIBRARY_PATH", ""),
		ONNXInput:       tc.MayString("ONNX_INPUT", ""),
		ONNXProbOutput:  tc.MayString("ONNX_PROB_OUTPUT", "probabilities"),
	}
}

// merge applies non-zero overrides on top of o
func (o Options) merge(ov Options) Options {
	if ov.ModelPath != "" {
		o.ModelPath = ov.ModelPath
	}
	if ov.MetadataPath != "" {
		o.MetadataPath = ov.MetadataPath
	}
	if ov.Threshold != 0 {
		o.Threshold = ov.Threshold
	}
	if ov.Watch {
		o.Watch = true
	}
	if ov.WatchDebounce != 0 {
		o.WatchDebounce = ov.WatchDebounce
	}
	if ov.RetireAfter != 0 {
		o.RetireAfter = ov.RetireAfter
	}
	if ov.AuditBuffer != 0 {
		o.AuditBuffer = ov.AuditBuffer
	}
	if ov.AuditBatch != 0 {
		o.AuditBatch = ov.AuditBatch
	}
	if ov.AuditFlushEvery != 0 {
		o.AuditFlushEvery = ov.AuditFlushEvery
	}
	if ov.ORTLibraryPath != "" {
		o.ORTLibraryPath = ov.ORTLibraryPath
	}
	if ov.ONNXInput != "" {
		o.ONNXInput = ov.ONNXInput
	}
	if ov.ONNXProbOutput != "" {
		o.ONNXProbOutput = ov.ONNXProbOutput
	}
	return o
}
