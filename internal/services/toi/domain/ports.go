package domain

import (
	"context"

	"exoseek/internal/core/features"
)

// ServicePort is consumed by handlers, the CLI and other modules
type ServicePort interface {
	Status(ctx context.Context) Status
	Reload(ctx context.Context) (ReloadResult, error)
	Predict(ctx context.Context, in features.RawInput) (PredictionDetail, error)
	Model(ctx context.Context) ModelInfo
	Recent(ctx context.Context, in RecentInput) ([]RecentRow, error)
}

// AuditPort accepts records without blocking the caller
type AuditPort interface {
	RecordPrediction(ctx context.Context, rec PredictionRecord)
	RecordLoad(ctx context.Context, ev LoadEvent)
}

// AuditSink persists batches of records
type AuditSink interface {
	WritePredictions(ctx context.Context, xs []PredictionRecord) error
	WriteLoads(ctx context.Context, xs []LoadEvent) error
}

// RecentReader lists audited predictions, newest first
type RecentReader interface {
	RecentPredictions(ctx context.Context, limit int) ([]PredictionRecord, error)
}
