// Package service implements TOI status, reload and scoring use cases
package service

import (
	"context"
	"errors"
	"time"

	"exoseek/internal/core/features"
	"exoseek/internal/core/registry"
	"exoseek/internal/core/row"
	"exoseek/internal/core/scorer"
	perr "exoseek/internal/platform/errors"
	"exoseek/internal/platform/logger"
	"exoseek/internal/platform/metrics"
	lumnet "exoseek/internal/platform/net"
	ptime "exoseek/internal/platform/time"
	"exoseek/internal/services/toi/domain"

	"github.com/google/uuid"
)

// DefaultRecentLimit is used when a recent query omits a limit
const DefaultRecentLimit = 50

// Models is the registry surface the service needs
type Models interface {
	Current() *registry.Snapshot
	Reload(ctx context.Context) (*registry.Snapshot, error)
}

// Svc implements domain.ServicePort
type Svc struct {
	models Models
	sc     scorer.Scorer
	audit  domain.AuditPort
	recent domain.RecentReader

	// seams
	now   func() time.Time
	newID func() string
}

// New constructs the TOI service; audit and recent may be nil
func New(models Models, sc scorer.Scorer, audit domain.AuditPort, recent domain.RecentReader) *Svc {
	if models == nil {
		panic("toi service: nil Models")
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &Svc{
		models: models,
		sc:     sc,
		audit:  audit,
		recent: recent,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Status reports liveness and the active feature list
func (s *Svc) Status(_ context.Context) domain.Status {
	snap := s.models.Current()
	return domain.Status{
		Message:      "OK",
		Model:        domain.ModelName,
		ModelLoaded:  snap.Loaded(),
		FeaturesUsed: snap.FeatureStrings(),
	}
}

// Reload re-reads the artifact and metadata
// a failed artifact load is reported through model_loaded, not as an error
func (s *Svc) Reload(ctx context.Context) (domain.ReloadResult, error) {
	snap, err := s.models.Reload(ctx)
	if cerr := ctx.Err(); cerr != nil {
		return domain.ReloadResult{}, perr.Wrap(cerr, perr.ErrorCodeUnavailable, "reload canceled")
	}
	if err != nil {
		logger.C(ctx).Warn().Err(err).Uint64("generation", snap.Generation).Msg("reload published an unloaded model")
	}
	return domain.ReloadResult{
		Reloaded:     true,
		ModelLoaded:  snap.Loaded(),
		FeaturesUsed: snap.FeatureStrings(),
	}, nil
}

// Predict scores one candidate against the active snapshot
// the returned detail always carries the feature list that was attempted
func (s *Svc) Predict(ctx context.Context, in features.RawInput) (domain.PredictionDetail, error) {
	start := time.Now()
	snap := s.models.Current()
	vec := row.Build(in, snap.Features)

	out := domain.PredictionDetail{
		Prediction: domain.Prediction{
			Model:        domain.ModelName,
			UsedFeatures: snap.FeatureStrings(),
		},
		ID:         s.newID(),
		Generation: snap.Generation,
		Threshold:  s.sc.Cutoff(),
	}

	res, err := s.sc.Score(snap.Artifact, vec)

	rec := domain.PredictionRecord{
		ID:         out.ID,
		CreatedAt:  s.now().UTC(),
		Generation: snap.Generation,
		RequestID:  lumnet.RequestID(ctx),
		PeriodDays: in.PeriodDays,
		DurationHr: in.DurationHr,
		DepthPct:   in.DepthPct,
		SNR:        in.SNR,
		Features:   out.UsedFeatures,
	}

	var ie *scorer.InferenceError
	switch {
	case errors.Is(err, scorer.ErrNoModel):
		rec.Error = err.Error()
		s.finish(ctx, rec, "unloaded", start)
		return out, perr.Wrapf(err, perr.ErrorCodeUnavailable,
			"TOI model not loaded. Train it and place %s.", snap.ArtifactPath)

	case errors.As(err, &ie):
		rec.Error = ie.Error()
		s.finish(ctx, rec, "inference_error", start)
		logger.C(ctx).Error().Err(ie.Err).
			Strs("features", out.UsedFeatures).
			Uint64("generation", snap.Generation).
			Msg("inference failed")
		return out, perr.Wrapf(ie, perr.ErrorCodeInference, "Inference failed: %v", ie.Err)

	case err != nil:
		rec.Error = err.Error()
		s.finish(ctx, rec, "error", start)
		return out, perr.Wrap(err, perr.ErrorCodeUnknown, "scoring failed")
	}

	out.Prediction.Prediction = res.Label
	out.Probability = res.Probability

	p := res.Probability
	rec.Probability = &p
	rec.Label = res.Label
	s.finish(ctx, rec, "ok", start)
	return out, nil
}

func (s *Svc) finish(ctx context.Context, rec domain.PredictionRecord, result string, start time.Time) {
	metrics.Incr("predict.count", "result:"+result)
	metrics.Since("predict.latency", start)
	s.audit.RecordPrediction(ctx, rec)
}

// Model describes the active snapshot
func (s *Svc) Model(_ context.Context) domain.ModelInfo {
	snap := s.models.Current()
	info := domain.ModelInfo{
		Model:             domain.ModelName,
		Loaded:            snap.Loaded(),
		Generation:        snap.Generation,
		FeaturesUsed:      snap.FeatureStrings(),
		FeatureSource:     string(snap.FeatureSource),
		UnknownFeatures:   features.Strings(snap.Unknown),
		ArtifactPath:      snap.ArtifactPath,
		MetadataPath:      snap.MetadataPath,
		LoadedAt:          ptime.Ptr(snap.LoadedAt),
		ServingThreshold:  s.sc.Cutoff(),
		TrainingThreshold: snap.Metadata.TrainingThreshold,
		AUC:               snap.Metadata.AUC,
		NTrain:            snap.Metadata.NTrain,
		NTest:             snap.Metadata.NTest,
	}
	if snap.Artifact != nil {
		info.Kind = snap.Artifact.Kind()
	}
	if snap.ArtifactErr != nil {
		info.ArtifactError = snap.ArtifactErr.Error()
	}
	if snap.MetadataErr != nil {
		info.MetadataError = snap.MetadataErr.Error()
	}
	return info
}

// Recent lists audited predictions, newest first
func (s *Svc) Recent(ctx context.Context, in domain.RecentInput) ([]domain.RecentRow, error) {
	if s.recent == nil {
		return nil, perr.Unavailablef("prediction audit is not enabled")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	recs, err := s.recent.RecentPredictions(ctx, limit)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "list predictions")
	}
	out := make([]domain.RecentRow, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.RecentRow{
			ID:          r.ID,
			CreatedAt:   r.CreatedAt,
			Generation:  r.Generation,
			PeriodDays:  r.PeriodDays,
			DurationHr:  r.DurationHr,
			DepthPct:    r.DepthPct,
			SNR:         r.SNR,
			Features:    r.Features,
			Probability: r.Probability,
			Label:       r.Label,
			Error:       r.Error,
		})
	}
	return out, nil
}

// LoadEventOf converts a published snapshot into an audit event
func LoadEventOf(snap *registry.Snapshot) domain.LoadEvent {
	ev := domain.LoadEvent{
		Generation:    snap.Generation,
		LoadedAt:      snap.LoadedAt,
		Loaded:        snap.Loaded(),
		FeatureSource: string(snap.FeatureSource),
		Features:      snap.FeatureStrings(),
		ArtifactPath:  snap.ArtifactPath,
	}
	if snap.Artifact != nil {
		ev.Kind = snap.Artifact.Kind()
	}
	if snap.ArtifactErr != nil {
		ev.Error = snap.ArtifactErr.Error()
	}
	return ev
}

type noopAudit struct{}

func (noopAudit) RecordPrediction(context.Context, domain.PredictionRecord) {}
func (noopAudit) RecordLoad(context.Context, domain.LoadEvent)              {}
