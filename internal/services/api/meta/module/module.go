// Package module mounts the meta endpoints
package module

import (
	"time"

	"exoseek/internal/core/version"
	"exoseek/internal/modkit"
	"exoseek/internal/modkit/httpkit"

	metahttp "exoseek/internal/services/api/meta/http"
)

// Ports are collaborators injected with modkit.WithPorts
type Ports struct {
	Model metahttp.ModelReporter
}

// Module serves health, readiness and build info under /meta
type Module struct {
	b    modkit.Built
	deps metahttp.Deps
}

// New builds the meta module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build([]modkit.Option{modkit.WithName("meta"), modkit.WithPrefix("/meta")}, opts...)

	d := metahttp.Deps{
		ServiceName: version.ServiceName,
		StartedAt:   time.Now(),
		PG:          deps.PG,
		CH:          deps.CH,
	}
	if p, ok := b.Ports.(Ports); ok {
		d.Model = p.Model
	}
	return &Module{b: b, deps: d}
}

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(rr httpkit.Router) { metahttp.Register(rr, m.deps) })
}

// Name implements modkit.Module
func (m *Module) Name() string { return m.b.Name }

// Prefix returns the mount path
func (m *Module) Prefix() string { return m.b.Prefix }

// Ports implements modkit.Module; meta offers nothing to other modules
func (m *Module) Ports() any { return nil }
