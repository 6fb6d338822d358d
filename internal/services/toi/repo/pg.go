// Package repo persists TOI prediction and model load audit records
package repo

import (
	"context"
	"fmt"
	"strings"

	"exoseek/internal/modkit/repokit"
	"exoseek/internal/platform/store"
	"exoseek/internal/services/toi/domain"
)

// Schema creates the postgres audit tables; safe to run repeatedly
const Schema = `
CREATE TABLE IF NOT EXISTS toi_predictions (
	id            uuid PRIMARY KEY,
	created_at    timestamptz NOT NULL,
	generation    bigint NOT NULL,
	request_id    text NOT NULL DEFAULT '',
	period_days   double precision NOT NULL,
	duration_hr   double precision NOT NULL,
	depth_pct     double precision NOT NULL,
	snr           double precision NOT NULL,
	features      text[] NOT NULL,
	probability   double precision,
	label         text NOT NULL DEFAULT '',
	error         text NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS toi_predictions_created_at_idx ON toi_predictions (created_at DESC);

CREATE TABLE IF NOT EXISTS toi_model_loads (
	generation     bigint NOT NULL,
	loaded_at      timestamptz NOT NULL,
	loaded         boolean NOT NULL,
	kind           text NOT NULL DEFAULT '',
	feature_source text NOT NULL,
	features       text[] NOT NULL,
	artifact_path  text NOT NULL,
	error          text NOT NULL DEFAULT '',
	PRIMARY KEY (loaded_at, generation)
);
`

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage is the audit sink plus the recent predictions reader
type Storage interface {
	domain.AuditSink
	domain.RecentReader
	EnsureSchema(ctx context.Context) error
}

// EnsureSchema implements Storage
func (s *pg) EnsureSchema(ctx context.Context) error {
	_, err := s.q.Exec(ctx, Schema)
	return err
}

// WritePredictions implements domain.AuditSink
func (s *pg) WritePredictions(ctx context.Context, xs []domain.PredictionRecord) error {
	if len(xs) == 0 {
		return nil
	}

	const cols = 12
	var sb strings.Builder
	sb.WriteString(`INSERT INTO toi_predictions
		(id, created_at, generation, request_id, period_days, duration_hr, depth_pct, snr,
		features, probability, label, error) VALUES `)

	args := make([]any, 0, len(xs)*cols)
	for i, r := range xs {
		if i > 0 {
			sb.WriteByte(',')
		}
		base := i*cols + 1
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base, base+1, base+2, base+3, base+4, base+5,
			base+6, base+7, base+8, base+9, base+10, base+11)

		args = append(args,
			r.ID, r.CreatedAt, int64(r.Generation), r.RequestID,
			r.PeriodDays, r.DurationHr, r.DepthPct, r.SNR,
			nonNil(r.Features), r.Probability, r.Label, r.Error,
		)
	}
	// ids are minted per call, a retried batch must not duplicate rows
	sb.WriteString(` ON CONFLICT (id) DO NOTHING`)
	_, err := s.q.Exec(ctx, sb.String(), args...)
	return err
}

// WriteLoads implements domain.AuditSink
func (s *pg) WriteLoads(ctx context.Context, xs []domain.LoadEvent) error {
	if len(xs) == 0 {
		return nil
	}

	const cols = 8
	var sb strings.Builder
	sb.WriteString(`INSERT INTO toi_model_loads
		(generation, loaded_at, loaded, kind, feature_source, features, artifact_path, error) VALUES `)

	args := make([]any, 0, len(xs)*cols)
	for i, e := range xs {
		if i > 0 {
			sb.WriteByte(',')
		}
		base := i*cols + 1
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base, base+1, base+2, base+3, base+4, base+5, base+6, base+7)

		args = append(args,
			int64(e.Generation), e.LoadedAt, e.Loaded, e.Kind,
			e.FeatureSource, nonNil(e.Features), e.ArtifactPath, e.Error,
		)
	}
	sb.WriteString(` ON CONFLICT (loaded_at, generation) DO NOTHING`)
	_, err := s.q.Exec(ctx, sb.String(), args...)
	return err
}

// RecentPredictions implements domain.RecentReader
func (s *pg) RecentPredictions(ctx context.Context, limit int) ([]domain.PredictionRecord, error) {
	const sql = `
SELECT id::text, created_at, generation, request_id, period_days, duration_hr, depth_pct, snr,
	features, probability, label, error
FROM toi_predictions
ORDER BY created_at DESC, id
LIMIT $1
`
	out, err := store.Many(ctx, s.q, scanPrediction, sql, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.PredictionRecord{}
	}
	return out, nil
}

func scanPrediction(row store.Row) (domain.PredictionRecord, error) {
	var (
		r   domain.PredictionRecord
		gen int64
	)
	err := row.Scan(
		&r.ID, &r.CreatedAt, &gen, &r.RequestID,
		&r.PeriodDays, &r.DurationHr, &r.DepthPct, &r.SNR,
		&r.Features, &r.Probability, &r.Label, &r.Error,
	)
	r.Generation = uint64(gen)
	return r, err
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
