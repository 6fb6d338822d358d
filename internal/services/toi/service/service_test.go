package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"exoseek/internal/core/features"
	"exoseek/internal/core/registry"
	"exoseek/internal/core/scorer"
	perr "exoseek/internal/platform/errors"
	"exoseek/internal/services/toi/domain"
)

type stubModel struct {
	p    float64
	err  error
	seen []features.Value
}

func (m *stubModel) PredictProba(x []features.Value) (float64, error) {
	m.seen = append([]features.Value(nil), x...)
	return m.p, m.err
}
func (m *stubModel) NumFeatures() int          { return 5 }
func (m *stubModel) Features() []features.Name { return nil }
func (m *stubModel) Kind() string              { return "stub" }

type fakeModels struct {
	snap      *registry.Snapshot
	reloadErr error
	reloads   int
}

func (f *fakeModels) Current() *registry.Snapshot { return f.snap }

func (f *fakeModels) Reload(ctx context.Context) (*registry.Snapshot, error) {
	f.reloads++
	if err := ctx.Err(); err != nil {
		return f.snap, err
	}
	return f.snap, f.reloadErr
}

type recAudit struct {
	mu    sync.Mutex
	preds []domain.PredictionRecord
	loads []domain.LoadEvent
}

func (r *recAudit) RecordPrediction(_ context.Context, rec domain.PredictionRecord) {
	r.mu.Lock()
	r.preds = append(r.preds, rec)
	r.mu.Unlock()
}

func (r *recAudit) RecordLoad(_ context.Context, ev domain.LoadEvent) {
	r.mu.Lock()
	r.loads = append(r.loads, ev)
	r.mu.Unlock()
}

type fakeRecent struct {
	limit int
	recs  []domain.PredictionRecord
	err   error
}

func (f *fakeRecent) RecentPredictions(_ context.Context, limit int) ([]domain.PredictionRecord, error) {
	f.limit = limit
	return f.recs, f.err
}

func loadedSnap(m *stubModel) *registry.Snapshot {
	return &registry.Snapshot{
		Generation:    3,
		Artifact:      m,
		Features:      features.DefaultList(),
		FeatureSource: registry.SourceMetadata,
		ArtifactPath:  "models/rf_toi.json",
		MetadataPath:  "artifacts/metrics_toi.json",
		LoadedAt:      time.Unix(1700000000, 0).UTC(),
	}
}

func unloadedSnap() *registry.Snapshot {
	return &registry.Snapshot{
		Generation:    1,
		Features:      features.DefaultList(),
		FeatureSource: registry.SourceFallback,
		ArtifactPath:  "models/rf_toi.json",
		ArtifactErr:   registry.ErrArtifactMissing,
	}
}

func newSvc(models Models, audit domain.AuditPort, recent domain.RecentReader) *Svc {
	s := New(models, scorer.New(scorer.DecisionThreshold), audit, recent)
	s.newID = func() string { return "id-1" }
	s.now = func() time.Time { return time.Unix(1700000100, 0) }
	return s
}

func TestPredict_Success(t *testing.T) {
	t.Parallel()

	m := &stubModel{p: 0.7346}
	audit := &recAudit{}
	s := newSvc(&fakeModels{snap: loadedSnap(m)}, audit, nil)

	out, err := s.Predict(context.Background(), features.RawInput{PeriodDays: 10, DurationHr: 2, DepthPct: 0.5})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if out.Model != "toi" || out.Prediction.Prediction != scorer.LabelPlanet || out.Probability != 0.735 {
		t.Fatalf("unexpected prediction %+v", out)
	}
	if out.ID != "id-1" || out.Generation != 3 || out.Threshold != 0.5 {
		t.Fatalf("unexpected provenance %+v", out)
	}
	want := []string{"period_days", "duration_hr", "depth_pct", "snr", "dur_frac"}
	if len(out.UsedFeatures) != len(want) {
		t.Fatalf("used features %v", out.UsedFeatures)
	}
	for i := range want {
		if out.UsedFeatures[i] != want[i] {
			t.Fatalf("used features %v", out.UsedFeatures)
		}
	}

	// vector reached the model in list order with snr defaulted
	if len(m.seen) != 5 || m.seen[0].Float != 10 || m.seen[3].Float != 0 || !m.seen[3].Valid {
		t.Fatalf("model saw %+v", m.seen)
	}

	if len(audit.preds) != 1 {
		t.Fatalf("expected one audit record, got %d", len(audit.preds))
	}
	rec := audit.preds[0]
	if rec.Probability == nil || *rec.Probability != 0.735 || rec.Label != scorer.LabelPlanet || rec.Error != "" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Generation != 3 || rec.PeriodDays != 10 || rec.ID != "id-1" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestPredict_ExactThresholdIsFalsePositive(t *testing.T) {
	t.Parallel()

	s := newSvc(&fakeModels{snap: loadedSnap(&stubModel{p: 0.5})}, nil, nil)
	out, err := s.Predict(context.Background(), features.RawInput{PeriodDays: 1, DurationHr: 1, DepthPct: 1})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if out.Prediction.Prediction != scorer.LabelFalsePositive {
		t.Fatalf("p=0.5 should be %q, got %q", scorer.LabelFalsePositive, out.Prediction.Prediction)
	}
}

func TestPredict_Unloaded(t *testing.T) {
	t.Parallel()

	audit := &recAudit{}
	s := newSvc(&fakeModels{snap: unloadedSnap()}, audit, nil)

	out, err := s.Predict(context.Background(), features.RawInput{PeriodDays: 10, DurationHr: 2, DepthPct: 0.5})
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if !errors.Is(err, scorer.ErrNoModel) {
		t.Fatalf("expected ErrNoModel in chain")
	}
	if msg := perr.WireFrom(err).Message; msg != "TOI model not loaded. Train it and place models/rf_toi.json." {
		t.Fatalf("unexpected message %q", msg)
	}
	if len(out.UsedFeatures) != 5 {
		t.Fatalf("attempted feature list should be reported, got %v", out.UsedFeatures)
	}
	if len(audit.preds) != 1 || audit.preds[0].Error == "" || audit.preds[0].Probability != nil {
		t.Fatalf("unloaded call should be audited as an error: %+v", audit.preds)
	}
}

func TestPredict_InferenceFailure(t *testing.T) {
	t.Parallel()

	s := newSvc(&fakeModels{snap: loadedSnap(&stubModel{err: errors.New("boom")})}, nil, nil)

	out, err := s.Predict(context.Background(), features.RawInput{PeriodDays: 10, DurationHr: 2, DepthPct: 0.5})
	if !perr.IsCode(err, perr.ErrorCodeInference) {
		t.Fatalf("expected inference code, got %v", err)
	}
	var ie *scorer.InferenceError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InferenceError in chain")
	}
	if msg := perr.WireFrom(err).Message; msg != "Inference failed: boom" {
		t.Fatalf("unexpected message %q", msg)
	}
	if len(out.UsedFeatures) != 5 {
		t.Fatalf("used features missing on failure")
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	s := newSvc(&fakeModels{snap: loadedSnap(&stubModel{})}, nil, nil)
	st := s.Status(context.Background())
	if st.Message != "OK" || st.Model != "toi" || !st.ModelLoaded || len(st.FeaturesUsed) != 5 {
		t.Fatalf("unexpected status %+v", st)
	}

	s = newSvc(&fakeModels{snap: unloadedSnap()}, nil, nil)
	if s.Status(context.Background()).ModelLoaded {
		t.Fatalf("unloaded snapshot reported as loaded")
	}
}

func TestReload_AlwaysReportsReloaded(t *testing.T) {
	t.Parallel()

	fm := &fakeModels{snap: unloadedSnap(), reloadErr: registry.ErrArtifactMissing}
	s := newSvc(fm, nil, nil)

	res, err := s.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !res.Reloaded || res.ModelLoaded || len(res.FeaturesUsed) != 5 {
		t.Fatalf("unexpected reload result %+v", res)
	}
	if fm.reloads != 1 {
		t.Fatalf("expected one reload, got %d", fm.reloads)
	}
}

func TestReload_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newSvc(&fakeModels{snap: unloadedSnap()}, nil, nil)
	if _, err := s.Reload(ctx); !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("expected unavailable on canceled ctx, got %v", err)
	}
}

func TestModelInfo(t *testing.T) {
	t.Parallel()

	snap := loadedSnap(&stubModel{})
	thr, auc := 0.5, 0.91
	snap.Metadata = registry.Metadata{TrainingThreshold: &thr, AUC: &auc}
	snap.Unknown = []features.Name{"mag_t"}

	info := newSvc(&fakeModels{snap: snap}, nil, nil).Model(context.Background())
	if !info.Loaded || info.Kind != "stub" || info.Generation != 3 || info.FeatureSource != "metadata" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.ServingThreshold != 0.5 || info.TrainingThreshold == nil || *info.AUC != 0.91 {
		t.Fatalf("unexpected thresholds %+v", info)
	}
	if info.LoadedAt == nil || !info.LoadedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("loaded_at %v", info.LoadedAt)
	}
	if len(info.UnknownFeatures) != 1 || info.UnknownFeatures[0] != "mag_t" {
		t.Fatalf("unknown features %v", info.UnknownFeatures)
	}

	info = newSvc(&fakeModels{snap: unloadedSnap()}, nil, nil).Model(context.Background())
	if info.Loaded || info.Kind != "" || info.ArtifactError == "" {
		t.Fatalf("unexpected unloaded info %+v", info)
	}
}

func TestRecent(t *testing.T) {
	t.Parallel()

	if _, err := newSvc(&fakeModels{snap: unloadedSnap()}, nil, nil).Recent(context.Background(), domain.RecentInput{}); !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("expected unavailable without reader, got %v", err)
	}

	p := 0.2
	fr := &fakeRecent{recs: []domain.PredictionRecord{{ID: "a", Probability: &p, Label: scorer.LabelFalsePositive}}}
	rows, err := newSvc(&fakeModels{snap: unloadedSnap()}, nil, fr).Recent(context.Background(), domain.RecentInput{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if fr.limit != DefaultRecentLimit {
		t.Fatalf("default limit not applied, got %d", fr.limit)
	}
	if len(rows) != 1 || rows[0].ID != "a" || *rows[0].Probability != 0.2 {
		t.Fatalf("unexpected rows %+v", rows)
	}

	fr.err = errors.New("db down")
	if _, err := newSvc(&fakeModels{snap: unloadedSnap()}, nil, fr).Recent(context.Background(), domain.RecentInput{Limit: 5}); !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("expected db error, got %v", err)
	}
	if fr.limit != 5 {
		t.Fatalf("explicit limit not passed, got %d", fr.limit)
	}
}

func TestLoadEventOf(t *testing.T) {
	t.Parallel()

	ev := LoadEventOf(loadedSnap(&stubModel{}))
	if !ev.Loaded || ev.Kind != "stub" || ev.Generation != 3 || ev.Error != "" || len(ev.Features) != 5 {
		t.Fatalf("unexpected event %+v", ev)
	}
	ev = LoadEventOf(unloadedSnap())
	if ev.Loaded || ev.Error == "" || ev.FeatureSource != "fallback" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestNew_PanicsWithoutModels(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	New(nil, scorer.Scorer{}, nil, nil)
}
