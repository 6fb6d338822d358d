// Package api provides the HTTP API for the application
package api

import (
	"exoseek/internal/platform/config"
	"exoseek/internal/platform/logger"
	phttp "exoseek/internal/platform/net/http"
	"exoseek/internal/platform/store"

	"exoseek/internal/modkit"
	"exoseek/internal/modkit/httpkit"
	"exoseek/internal/modkit/swaggerkit"

	metamod "exoseek/internal/services/api/meta/module"
	toimod "exoseek/internal/services/toi/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf // root config; modules apply their own prefixes
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
	CORSOrigins    []string

	// TOI overrides non-zero CORE_TOI_* values
	TOI toimod.Options
}

// Mount mounts the API service onto the given router
// the returned toi module must be started by the caller and closed on shutdown
func Mount(r phttp.Router, opt Options) *toimod.Module {
	// shared deps for modules
	deps := modkit.Deps{Cfg: opt.Config}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}
	if opt.Store != nil {
		deps.PG = opt.Store.PG
		deps.CH = opt.Store.CH
	}

	toi := toimod.New(deps, opt.TOI)
	svc := modkit.MustPortsOf[toimod.Ports](toi).Service

	mods := []modkit.Module{
		metamod.New(deps, modkit.WithPorts(metamod.Ports{Model: svc})),
		toi,
	}

	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	// versioned API; each module mounts under its own prefix
	httpkit.MountAPIV1(r, httpkit.CommonStack(opt.CORSOrigins...), func(api httpkit.Router) {
		for _, m := range mods {
			m.MountRoutes(api)
		}
	})

	// unversioned endpoints at the root for existing clients
	r.Group(func(root httpkit.Router) {
		root.Use(httpkit.CommonStack(opt.CORSOrigins...)...)
		toi.MountLegacy(root)
	})

	return toi
}
