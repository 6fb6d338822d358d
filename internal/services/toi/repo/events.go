package repo

import (
	"context"

	"exoseek/internal/platform/store"
	"exoseek/internal/services/toi/domain"
)

// ClickHouse tables for the prediction event stream
const (
	PredictionEventsTable = "toi_prediction_events"
	LoadEventsTable       = "toi_model_load_events"
)

// CHSchema creates the clickhouse event tables; one statement per entry
var CHSchema = []string{
	`CREATE TABLE IF NOT EXISTS toi_prediction_events (
		id          String,
		created_at  DateTime64(3, 'UTC'),
		generation  UInt64,
		request_id  String,
		period_days Float64,
		duration_hr Float64,
		depth_pct   Float64,
		snr         Float64,
		features    Array(String),
		probability Nullable(Float64),
		label       LowCardinality(String),
		error       String
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(created_at)
	ORDER BY (created_at, id)`,
	`CREATE TABLE IF NOT EXISTS toi_model_load_events (
		generation     UInt64,
		loaded_at      DateTime64(3, 'UTC'),
		loaded         Bool,
		kind           LowCardinality(String),
		feature_source LowCardinality(String),
		features       Array(String),
		artifact_path  String,
		error          String
	) ENGINE = MergeTree
	ORDER BY (loaded_at, generation)`,
}

// Events writes audit records to clickhouse; it implements domain.AuditSink
type Events struct {
	ch store.Clickhouse
}

// NewEvents wraps a clickhouse seam
func NewEvents(ch store.Clickhouse) *Events { return &Events{ch: ch} }

// EnsureSchema creates the event tables
func (e *Events) EnsureSchema(ctx context.Context) error {
	for _, ddl := range CHSchema {
		if err := e.ch.Exec(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// WritePredictions implements domain.AuditSink
func (e *Events) WritePredictions(ctx context.Context, xs []domain.PredictionRecord) error {
	if len(xs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(xs))
	for _, r := range xs {
		rows = append(rows, []any{
			r.ID, r.CreatedAt, r.Generation, r.RequestID,
			r.PeriodDays, r.DurationHr, r.DepthPct, r.SNR,
			nonNil(r.Features), r.Probability, r.Label, r.Error,
		})
	}
	return e.ch.Insert(ctx, PredictionEventsTable, rows)
}

// WriteLoads implements domain.AuditSink
func (e *Events) WriteLoads(ctx context.Context, xs []domain.LoadEvent) error {
	if len(xs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(xs))
	for _, ev := range xs {
		rows = append(rows, []any{
			ev.Generation, ev.LoadedAt, ev.Loaded, ev.Kind,
			ev.FeatureSource, nonNil(ev.Features), ev.ArtifactPath, ev.Error,
		})
	}
	return e.ch.Insert(ctx, LoadEventsTable, rows)
}
