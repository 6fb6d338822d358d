// Package module wires TOI scoring into the API using modkit
package module

import (
	"context"
	"errors"
	"sync"

	"exoseek/internal/core/artifact"
	"exoseek/internal/core/registry"
	"exoseek/internal/core/scorer"
	"exoseek/internal/modkit"
	"exoseek/internal/modkit/httpkit"
	"exoseek/internal/modkit/repokit"
	"exoseek/internal/platform/logger"

	"exoseek/internal/services/toi/domain"
	toihttp "exoseek/internal/services/toi/http"
	"exoseek/internal/services/toi/repo"
	"exoseek/internal/services/toi/service"
)

// Module implements the toi API module
type Module struct {
	b    modkit.Built
	deps modkit.Deps

	opts    Options
	reg     *registry.Registry
	svc     *service.Svc
	auditor *service.Auditor // nil when no audit store is enabled
	pg      repo.Storage
	events  *repo.Events

	wg sync.WaitGroup
}

// Ports exposes the scoring service and the registry to other modules and cmd mains
type Ports struct {
	Service  domain.ServicePort
	Registry *registry.Registry
}

// New constructs the toi module; non-zero overrides win over CORE_TOI_* config
func New(deps modkit.Deps, overrides Options, opts ...modkit.Option) *Module {
	b := modkit.Build([]modkit.Option{modkit.WithName("toi"), modkit.WithPrefix("/toi")}, opts...)

	o := FromConfig(deps.Cfg).merge(overrides)
	sc := scorer.New(o.Threshold)

	reg := registry.New(registry.Options{
		ArtifactPath: o.ModelPath,
		MetadataPath: o.MetadataPath,
		Artifact: artifact.Options{
			ORTLibraryPath: o.ORTLibraryPath,
			ONNXInput:      o.ONNXInput,
			ONNXProbOutput: o.ONNXProbOutput,
		},
		ServingThreshold: sc.Cutoff(),
		RetireAfter:      o.RetireAfter,
	})

	m := &Module{b: b, deps: deps, opts: o, reg: reg}

	var sinks []domain.AuditSink
	var recent domain.RecentReader
	if deps.PG != nil {
		m.pg = repokit.MustBind(repo.NewPG(), deps.PG)
		sinks = append(sinks, m.pg)
		recent = m.pg
	}
	if deps.CH != nil {
		m.events = repo.NewEvents(deps.CH)
		sinks = append(sinks, m.events)
	}

	var audit domain.AuditPort
	if len(sinks) > 0 {
		m.auditor = service.NewAuditor(service.AuditConfig{
			Buffer:     o.AuditBuffer,
			BatchSize:  o.AuditBatch,
			FlushEvery: o.AuditFlushEvery,
		}, sinks...)
		audit = m.auditor
		reg.OnSwap(func(s *registry.Snapshot) {
			m.auditor.RecordLoad(context.Background(), service.LoadEventOf(s))
		})
	}

	m.svc = service.New(reg, sc, audit, recent)
	return m
}

// Start migrates the audit stores, loads the model and starts the background workers
// a missing artifact is not an error; the service starts unloaded
func (m *Module) Start(ctx context.Context) error {
	log := logger.Named("toi")

	if m.opts.AutoMigrate {
		if m.pg != nil {
			if err := m.pg.EnsureSchema(ctx); err != nil {
				return err
			}
		}
		if m.events != nil {
			if err := m.events.EnsureSchema(ctx); err != nil {
				return err
			}
		}
	}

	if m.auditor != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			_ = m.auditor.Run(ctx)
		}()
	}

	if _, err := m.reg.Load(ctx); err != nil {
		if errors.Is(err, registry.ErrArtifactMissing) {
			log.Warn().Str("path", m.opts.ModelPath).Msg("starting without a model; train it and POST /reload")
		} else {
			log.Error().Err(err).Msg("initial model load failed")
		}
	}

	if m.opts.Watch {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.reg.Watch(ctx, m.opts.WatchDebounce); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("model watcher stopped")
			}
		}()
	}
	return nil
}

// Close waits for the workers started by Start and releases the active artifact
// cancel the Start context first
func (m *Module) Close() error {
	m.wg.Wait()
	return m.reg.Close()
}

// MountLegacy mounts the unversioned endpoints at the router root
func (m *Module) MountLegacy(r httpkit.Router) { toihttp.RegisterLegacy(r, m.svc) }

// MountRoutes mounts the versioned routes under the module prefix
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(rr httpkit.Router) { toihttp.Register(rr, m.svc) })
}

// Name returns the module name
func (m *Module) Name() string { return m.b.Name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.b.Prefix }

// Ports returns the module ports
func (m *Module) Ports() any { return Ports{Service: m.svc, Registry: m.reg} }

// Service returns the scoring service
func (m *Module) Service() *service.Svc { return m.svc }
