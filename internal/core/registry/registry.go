// Package registry owns the active model snapshot and swaps it atomically on reload
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"exoseek/internal/core/artifact"
	"exoseek/internal/core/features"
	"exoseek/internal/platform/logger"
	"exoseek/internal/platform/metrics"
)

// ErrArtifactMissing means the artifact file is absent; the snapshot is published unloaded
var ErrArtifactMissing = errors.New("registry: artifact missing")

// Source tells where a snapshot's feature list came from
type Source string

// Feature list sources
const (
	SourceMetadata Source = "metadata"
	SourceFallback Source = "fallback"
)

// Snapshot is one immutable (artifact, feature list, metadata) unit
// readers take it once per request and use it for both row building and inference
type Snapshot struct {
	Generation    uint64
	Artifact      artifact.Model // nil when unloaded
	Features      []features.Name
	FeatureSource Source
	Unknown       []features.Name
	Metadata      Metadata
	ArtifactPath  string
	MetadataPath  string
	LoadedAt      time.Time
	ArtifactErr   error
	MetadataErr   error
}

// Loaded reports whether an artifact is available
func (s *Snapshot) Loaded() bool { return s != nil && s.Artifact != nil }

// FeatureStrings returns the feature list as plain strings
func (s *Snapshot) FeatureStrings() []string { return features.Strings(s.Features) }

// Options configures where artifacts live and how retired ones are released
type Options struct {
	ArtifactPath     string
	MetadataPath     string
	Artifact         artifact.Options
	ServingThreshold float64
	// RetireAfter delays closing a replaced artifact so in-flight requests can finish
	RetireAfter time.Duration
}

// Registry holds the current snapshot
type Registry struct {
	opt Options

	cur atomic.Pointer[Snapshot]
	mu  sync.Mutex // serializes loads; readers never take it
	gen uint64

	hooksMu sync.RWMutex
	hooks   []func(*Snapshot)

	// seams
	loadArtifact func(string, artifact.Options) (artifact.Model, error)
	readMeta     func(string) ([]byte, error)
	retire       func(artifact.Model)
}

// New builds a registry with an unloaded generation 0 snapshot on the default feature list
// call Load to read the artifact
func New(opt Options) *Registry {
	r := &Registry{
		opt:          opt,
		loadArtifact: artifact.Load,
		readMeta:     os.ReadFile,
	}
	r.retire = r.retireAfter
	r.cur.Store(&Snapshot{
		Features:      features.DefaultList(),
		FeatureSource: SourceFallback,
		ArtifactPath:  opt.ArtifactPath,
		MetadataPath:  opt.MetadataPath,
		ArtifactErr:   ErrArtifactMissing,
	})
	return r
}

// Current returns the active snapshot; never nil
func (r *Registry) Current() *Snapshot { return r.cur.Load() }

// CurrentFeatureList returns a copy of the active feature list
func (r *Registry) CurrentFeatureList() []features.Name {
	return append([]features.Name(nil), r.Current().Features...)
}

// CurrentArtifact returns the active artifact or nil
func (r *Registry) CurrentArtifact() artifact.Model { return r.Current().Artifact }

// OnSwap registers fn to run after each publish, on the loading goroutine
func (r *Registry) OnSwap(fn func(*Snapshot)) {
	r.hooksMu.Lock()
	r.hooks = append(r.hooks, fn)
	r.hooksMu.Unlock()
}

// Reload re-resolves artifact and feature list from disk and publishes a new snapshot
func (r *Registry) Reload(ctx context.Context) (*Snapshot, error) { return r.Load(ctx) }

// Load reads artifact and metadata and publishes them as one snapshot
// the returned error describes why the artifact is unavailable; a snapshot is always published
func (r *Registry) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return r.Current(), err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	log := logger.C(ctx).With().Str("component", "registry").Logger()
	start := time.Now()

	r.ensureDirs(&log)

	snap := &Snapshot{
		ArtifactPath: r.opt.ArtifactPath,
		MetadataPath: r.opt.MetadataPath,
	}

	// feature list first so an unloaded snapshot still reports what would be used
	md, mdErr := r.readMetadata()
	if mdErr != nil {
		snap.Features = features.DefaultList()
		snap.FeatureSource = SourceFallback
		snap.MetadataErr = mdErr
		log.Warn().Err(mdErr).Str("path", r.opt.MetadataPath).
			Strs("features", features.Strings(snap.Features)).
			Msg("metadata unusable, falling back to default feature list")
		metrics.Incr("registry.fallback_features")
	} else {
		snap.Metadata = md
		snap.Features = append([]features.Name(nil), md.FeaturesUsed...)
		snap.FeatureSource = SourceMetadata
	}
	for _, n := range snap.Features {
		if !features.Known(n) {
			snap.Unknown = append(snap.Unknown, n)
		}
	}
	if len(snap.Unknown) > 0 {
		log.Warn().Strs("unknown", features.Strings(snap.Unknown)).
			Msg("feature list names columns outside the catalog; they will always be missing")
	}

	art, artErr := r.loadArtifact(r.opt.ArtifactPath, r.opt.Artifact)
	if artErr != nil {
		art = nil
		if errors.Is(artErr, artifact.ErrNotFound) {
			artErr = fmt.Errorf("%w: %s", ErrArtifactMissing, r.opt.ArtifactPath)
			log.Warn().Str("path", r.opt.ArtifactPath).Msg("artifact not found, model unloaded")
		} else {
			log.Error().Err(artErr).Str("path", r.opt.ArtifactPath).Msg("artifact load failed, model unloaded")
		}
		snap.ArtifactErr = artErr
	} else {
		r.checkAgreement(&log, art, snap)
	}
	snap.Artifact = art
	snap.LoadedAt = time.Now().UTC()

	r.gen++
	snap.Generation = r.gen
	prev := r.cur.Swap(snap)

	if prev != nil && prev.Artifact != nil && prev.Artifact != art {
		r.retire(prev.Artifact)
	}

	result := "ok"
	if art == nil {
		result = "unloaded"
	}
	metrics.Incr("registry.load", "result:"+result, "source:"+string(snap.FeatureSource))
	metrics.Gauge("registry.generation", float64(snap.Generation))
	metrics.Since("registry.load_time", start)

	ev := log.Info()
	if art != nil {
		ev = ev.Str("kind", art.Kind())
	}
	ev.Uint64("generation", snap.Generation).
		Bool("loaded", art != nil).
		Str("feature_source", string(snap.FeatureSource)).
		Strs("features", snap.FeatureStrings()).
		Dur("took", time.Since(start)).
		Msg("model snapshot published")

	r.hooksMu.RLock()
	hooks := slices.Clone(r.hooks)
	r.hooksMu.RUnlock()
	for _, h := range hooks {
		h(snap)
	}

	return snap, artErr
}

func (r *Registry) readMetadata() (Metadata, error) {
	b, err := r.readMeta(r.opt.MetadataPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Metadata{}, fmt.Errorf("%w: %s", ErrMetadataMissing, r.opt.MetadataPath)
		}
		return Metadata{}, fmt.Errorf("%w: %v", ErrMetadataMalformed, err)
	}
	return ParseMetadata(b)
}

// checkAgreement reports, without correcting, disagreements between artifact and metadata
func (r *Registry) checkAgreement(log *logger.Logger, art artifact.Model, snap *Snapshot) {
	if embedded := art.Features(); len(embedded) > 0 && !features.Equal(embedded, snap.Features) {
		log.Warn().Strs("artifact", features.Strings(embedded)).Strs("metadata", snap.FeatureStrings()).
			Msg("artifact and metadata disagree on feature list")
		metrics.Incr("registry.feature_mismatch", "kind:names")
	} else if n := art.NumFeatures(); n > 0 && n != len(snap.Features) {
		log.Warn().Int("artifact_width", n).Int("features", len(snap.Features)).
			Msg("artifact width differs from feature list length; predictions will fail")
		metrics.Incr("registry.feature_mismatch", "kind:width")
	}

	if t := snap.Metadata.TrainingThreshold; t != nil && r.opt.ServingThreshold > 0 && *t != r.opt.ServingThreshold {
		log.Warn().Float64("training", *t).Float64("serving", r.opt.ServingThreshold).
			Msg("training threshold differs from serving threshold")
	}
}

func (r *Registry) ensureDirs(log *logger.Logger) {
	for _, p := range []string{r.opt.ArtifactPath, r.opt.MetadataPath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			log.Warn().Err(err).Str("dir", filepath.Dir(p)).Msg("could not create artifact directory")
		}
	}
}

// retireAfter closes a replaced artifact once the drain period has passed
func (r *Registry) retireAfter(m artifact.Model) {
	c, ok := m.(io.Closer)
	if !ok {
		return
	}
	closeIt := func() {
		if err := c.Close(); err != nil {
			logger.Named("registry").Warn().Err(err).Msg("closing retired artifact failed")
		}
	}
	if r.opt.RetireAfter <= 0 {
		closeIt()
		return
	}
	time.AfterFunc(r.opt.RetireAfter, closeIt)
}

// Close releases the active artifact; the registry must not be used afterwards
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.Current().Artifact.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
