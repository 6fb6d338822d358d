package registry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"exoseek/internal/core/artifact"
	"exoseek/internal/core/features"
)

// leafForest is a one-leaf forest over names that always predicts 0.75
func leafForest(names []string) artifact.ForestDoc {
	stats := make([]*float64, len(names))
	for i := range stats {
		z := 0.0
		stats[i] = &z
	}
	return artifact.ForestDoc{
		Format:        artifact.ForestFormat,
		Version:       1,
		Features:      names,
		Imputer:       artifact.ImputerDoc{Strategy: "median", Statistics: stats},
		NClasses:      2,
		PositiveClass: 1,
		Trees: []artifact.TreeDoc{{
			ChildrenLeft:  []int{-1},
			ChildrenRight: []int{-1},
			Feature:       []int{-2},
			Threshold:     []float64{-2},
			Value:         [][]float64{{1, 3}},
		}},
	}
}

func writeFile(t *testing.T, path string, v any) {
	t.Helper()
	var b []byte
	switch x := v.(type) {
	case string:
		b = []byte(x)
	default:
		var err error
		if b, err = json.Marshal(v); err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatal(err)
	}
}

func paths(t *testing.T) (art, meta string) {
	t.Helper()
	root := t.TempDir()
	return filepath.Join(root, "models", "rf_toi.json"), filepath.Join(root, "artifacts", "metrics_toi.json")
}

var defaultNames = features.Strings(features.DefaultList())

func TestNew_StartsUnloaded(t *testing.T) {
	t.Parallel()

	art, meta := paths(t)
	r := New(Options{ArtifactPath: art, MetadataPath: meta})
	s := r.Current()
	if s.Loaded() || s.Generation != 0 {
		t.Fatalf("fresh registry should be unloaded at gen 0: %+v", s)
	}
	if !features.Equal(s.Features, features.DefaultList()) || s.FeatureSource != SourceFallback {
		t.Fatalf("fresh registry features got %v %s", s.Features, s.FeatureSource)
	}
}

func TestLoad_NoMetadataFallsBack(t *testing.T) {
	t.Parallel()

	art, meta := paths(t)
	writeFile(t, art, leafForest(defaultNames))

	r := New(Options{ArtifactPath: art, MetadataPath: meta})
	s, err := r.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Loaded() {
		t.Fatalf("artifact should be loaded")
	}
	if !features.Equal(s.Features, features.DefaultList()) || s.FeatureSource != SourceFallback {
		t.Fatalf("features got %v source %s", s.Features, s.FeatureSource)
	}
	if !errors.Is(s.MetadataErr, ErrMetadataMissing) {
		t.Fatalf("metadata err got %v", s.MetadataErr)
	}
	// metadata directory is created even though the file is absent
	if fi, err := os.Stat(filepath.Dir(meta)); err != nil || !fi.IsDir() {
		t.Fatalf("metadata dir not created: %v", err)
	}
}

func TestLoad_MalformedMetadataFallsBack(t *testing.T) {
	t.Parallel()

	bodies := []string{
		`{not json`,
		`{"auc": 0.9}`,
		`{"features_used": "period_days"}`,
		`{"features_used": []}`,
		`{"features_used": [1, 2]}`,
		`{"features_used": ["snr", ""]}`,
		`[]`,
	}
	for _, body := range bodies {
		art, meta := paths(t)
		writeFile(t, art, leafForest(defaultNames))
		writeFile(t, meta, body)

		r := New(Options{ArtifactPath: art, MetadataPath: meta})
		s, _ := r.Load(context.Background())
		if s.FeatureSource != SourceFallback || !features.Equal(s.Features, features.DefaultList()) {
			t.Fatalf("body %s: features got %v source %s", body, s.Features, s.FeatureSource)
		}
		if !errors.Is(s.MetadataErr, ErrMetadataMalformed) {
			t.Fatalf("body %s: metadata err got %v", body, s.MetadataErr)
		}
	}
}

func TestLoad_MetadataList(t *testing.T) {
	t.Parallel()

	art, meta := paths(t)
	names := []string{"period_days", "duration_hr", "depth_pct", "snr", "st_tmag", "dur_frac"}
	writeFile(t, art, leafForest(names))
	writeFile(t, meta, map[string]any{
		"model":            "toi",
		"features_used":    names,
		"threshold":        0.5,
		"auc":              0.91,
		"n_train":          4000,
		"n_test":           1000,
		"confusion_matrix": [][]int{{400, 100}, {50, 450}},
		"classification_report": map[string]any{
			"accuracy": 0.85,
		},
	})

	r := New(Options{ArtifactPath: art, MetadataPath: meta, ServingThreshold: 0.5})
	s, err := r.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.FeatureSource != SourceMetadata || len(s.Features) != 6 || s.Features[4] != features.StTmag {
		t.Fatalf("features got %v", s.Features)
	}
	md := s.Metadata
	if md.Model != "toi" || *md.AUC != 0.91 || *md.NTrain != 4000 || *md.NTest != 1000 || *md.TrainingThreshold != 0.5 {
		t.Fatalf("metadata got %+v", md)
	}
	if len(md.ConfusionMatrix) != 2 || len(md.Report) == 0 {
		t.Fatalf("report fields got %+v", md)
	}
	if s.Generation != 1 {
		t.Fatalf("generation got %d", s.Generation)
	}
}

func TestLoad_UnknownNamesKept(t *testing.T) {
	t.Parallel()

	art, meta := paths(t)
	names := []string{"period_days", "koi_score"}
	writeFile(t, art, leafForest(names))
	writeFile(t, meta, map[string]any{"features_used": names})

	r := New(Options{ArtifactPath: art, MetadataPath: meta})
	s, _ := r.Load(context.Background())
	if len(s.Features) != 2 || s.Features[1] != "koi_score" {
		t.Fatalf("unknown name should be kept in position: %v", s.Features)
	}
	if len(s.Unknown) != 1 || s.Unknown[0] != "koi_score" {
		t.Fatalf("unknown got %v", s.Unknown)
	}
}

func TestLoad_MissingArtifactIsUnloaded(t *testing.T) {
	t.Parallel()

	art, meta := paths(t)
	writeFile(t, meta, map[string]any{"features_used": []string{"snr", "dur_frac"}})

	r := New(Options{ArtifactPath: art, MetadataPath: meta})
	s, err := r.Load(context.Background())
	if !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("expected ErrArtifactMissing, got %v", err)
	}
	if s.Loaded() || r.CurrentArtifact() != nil {
		t.Fatalf("snapshot should be unloaded")
	}
	// the would-be list is still reported
	if !features.Equal(r.CurrentFeatureList(), []features.Name{features.SNR, features.DurFrac}) {
		t.Fatalf("features got %v", r.CurrentFeatureList())
	}
	if fi, err := os.Stat(filepath.Dir(art)); err != nil || !fi.IsDir() {
		t.Fatalf("model dir not created: %v", err)
	}
}

func TestReload_CorruptArtifactNeverKeepsOld(t *testing.T) {
	t.Parallel()

	art, meta := paths(t)
	writeFile(t, art, leafForest(defaultNames))
	r := New(Options{ArtifactPath: art, MetadataPath: meta})
	if _, err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	writeFile(t, art, "{garbage")
	writeFile(t, meta, map[string]any{"features_used": []string{"snr"}})
	s, err := r.Reload(context.Background())
	if !errors.Is(err, artifact.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
	// old artifact must not be paired with the new list
	if s.Loaded() {
		t.Fatalf("corrupt reload should leave the model unloaded")
	}
	if s.Generation != 2 || !features.Equal(s.Features, []features.Name{features.SNR}) {
		t.Fatalf("snapshot got gen %d features %v", s.Generation, s.Features)
	}
}

func TestReload_MismatchIsReportedNotCorrected(t *testing.T) {
	t.Parallel()

	art, meta := paths(t)
	writeFile(t, art, leafForest([]string{"snr", "period_days"}))
	writeFile(t, meta, map[string]any{"features_used": []string{"period_days", "snr"}})

	r := New(Options{ArtifactPath: art, MetadataPath: meta})
	s, err := r.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !features.Equal(s.Features, []features.Name{features.PeriodDays, features.SNR}) {
		t.Fatalf("metadata list must be used as is, got %v", s.Features)
	}
}

type closingModel struct {
	names  []features.Name
	closed atomic.Bool
}

func (m *closingModel) PredictProba(xs []features.Value) (float64, error) { return 0.9, nil }
func (m *closingModel) NumFeatures() int                                  { return len(m.names) }
func (m *closingModel) Features() []features.Name                         { return m.names }
func (m *closingModel) Kind() string                                      { return "closing" }
func (m *closingModel) Close() error                                      { m.closed.Store(true); return nil }

func TestReload_RetiresClosableArtifact(t *testing.T) {
	t.Parallel()

	art, meta := paths(t)
	r := New(Options{ArtifactPath: art, MetadataPath: meta})

	var made []*closingModel
	r.loadArtifact = func(string, artifact.Options) (artifact.Model, error) {
		m := &closingModel{names: features.DefaultList()}
		made = append(made, m)
		return m, nil
	}

	var swaps []uint64
	r.OnSwap(func(s *Snapshot) { swaps = append(swaps, s.Generation) })

	for i := 0; i < 2; i++ {
		if _, err := r.Reload(context.Background()); err != nil {
			t.Fatalf("Reload: %v", err)
		}
	}
	if !made[0].closed.Load() {
		t.Fatalf("replaced artifact should be closed immediately with zero RetireAfter")
	}
	if made[1].closed.Load() {
		t.Fatalf("active artifact must stay open")
	}
	if len(swaps) != 2 || swaps[1] != 2 {
		t.Fatalf("swap hooks got %v", swaps)
	}
	if err := r.Close(); err != nil || !made[1].closed.Load() {
		t.Fatalf("Close should release the active artifact: %v", err)
	}
}

func TestOnSwap_HookMayRegisterAnother(t *testing.T) {
	t.Parallel()

	art, meta := paths(t)
	r := New(Options{ArtifactPath: art, MetadataPath: meta})
	r.loadArtifact = func(string, artifact.Options) (artifact.Model, error) {
		return &closingModel{names: features.DefaultList()}, nil
	}

	var late []uint64
	r.OnSwap(func(*Snapshot) {
		// runs outside the hooks lock; the new hook sees only later swaps
		r.OnSwap(func(s *Snapshot) { late = append(late, s.Generation) })
	})

	for i := 0; i < 2; i++ {
		if _, err := r.Reload(context.Background()); err != nil {
			t.Fatalf("Reload: %v", err)
		}
	}
	if len(late) != 1 || late[0] != 2 {
		t.Fatalf("late hooks got %v, want [2]", late)
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	t.Parallel()

	art, meta := paths(t)
	r := New(Options{ArtifactPath: art, MetadataPath: meta})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := r.Load(ctx)
	if !errors.Is(err, context.Canceled) || s.Generation != 0 {
		t.Fatalf("canceled load got %v gen %d", err, s.Generation)
	}
}

// TestReload_ReadersNeverSeeTornSnapshot swaps between two consistent (artifact, list) pairs
// while readers check that every snapshot they observe is internally consistent
func TestReload_ReadersNeverSeeTornSnapshot(t *testing.T) {
	t.Parallel()

	listA := features.DefaultList()
	listB := []features.Name{features.SNR, features.PeriodDays}

	art, meta := paths(t)
	r := New(Options{ArtifactPath: art, MetadataPath: meta})

	var phase atomic.Int64
	pick := func() []features.Name {
		if phase.Load()%2 == 0 {
			return listA
		}
		return listB
	}
	r.loadArtifact = func(string, artifact.Options) (artifact.Model, error) {
		return &closingModel{names: pick()}, nil
	}
	r.readMeta = func(string) ([]byte, error) {
		return json.Marshal(map[string]any{"features_used": features.Strings(pick())})
	}
	if _, err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	stop := make(chan struct{})
	var bad atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := r.Current()
				if s.Artifact == nil || !features.Equal(s.Artifact.Features(), s.Features) {
					bad.Add(1)
				}
			}
		}()
	}

	for i := 1; i <= 200; i++ {
		phase.Store(int64(i))
		if _, err := r.Reload(context.Background()); err != nil {
			t.Fatalf("Reload: %v", err)
		}
	}
	close(stop)
	wg.Wait()

	if bad.Load() != 0 {
		t.Fatalf("%d torn snapshots observed", bad.Load())
	}
	if g := r.Current().Generation; g != 201 {
		t.Fatalf("generation got %d want 201", g)
	}
}

func TestReload_ConcurrentCallsSerialize(t *testing.T) {
	t.Parallel()

	art, meta := paths(t)
	writeFile(t, art, leafForest(defaultNames))
	r := New(Options{ArtifactPath: art, MetadataPath: meta})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Reload(context.Background())
		}()
	}
	wg.Wait()
	if g := r.Current().Generation; g != 16 {
		t.Fatalf("generation got %d want 16", g)
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	t.Parallel()

	art, meta := paths(t)
	writeFile(t, art, leafForest(defaultNames))
	writeFile(t, meta, map[string]any{"features_used": defaultNames})

	r := New(Options{ArtifactPath: art, MetadataPath: meta})
	if _, err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, 20*time.Millisecond) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// let the watcher register before touching the file
	time.Sleep(100 * time.Millisecond)
	writeFile(t, meta, map[string]any{"features_used": []string{"snr"}})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s := r.Current()
		if s.Generation >= 2 && features.Equal(s.Features, []features.Name{features.SNR}) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("watcher did not reload; current gen %d features %v", r.Current().Generation, r.Current().Features)
}
