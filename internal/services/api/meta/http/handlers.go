// Package http serves liveness, readiness and build information
package http

import (
	"context"
	"net/http"
	"time"

	"exoseek/internal/core/version"
	"exoseek/internal/modkit/httpkit"
	perr "exoseek/internal/platform/errors"
	toidom "exoseek/internal/services/toi/domain"
)

// readyTimeout bounds each dependency ping
const readyTimeout = 2 * time.Second

// Pinger is satisfied by store backends
type Pinger interface {
	Ping(context.Context) error
}

// ModelReporter describes the active model snapshot
type ModelReporter interface {
	Model(context.Context) toidom.ModelInfo
}

// Deps are the handler dependencies; nil backends are reported as skipped
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	PG          any
	CH          any
	Model       ModelReporter
}

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	h := meta{d}
	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/ready", h.ready)
	httpkit.Get(r, "/version", h.version)
	httpkit.Get(r, "/service", h.service)
	httpkit.Get(r, "/model", h.model)
}

type meta struct{ Deps }

// HealthResponse says the process is up
type HealthResponse struct {
	OK      bool   `json:"ok"      example:"true"`
	Service string `json:"service" example:"exoseek-api"`
	Started string `json:"started" example:"2026-10-17T13:00:00Z"`
	Now     string `json:"now"     example:"2026-10-17T13:05:00Z"`
}

// ReadyCheck is one dependency's state: ok, fail, skipped, unknown or unloaded
type ReadyCheck struct {
	Name   string `json:"name"            example:"pg"`
	Status string `json:"status"          example:"ok"`
	Error  string `json:"error,omitempty" example:"dial tcp 127.0.0.1:5432: connect: connection refused"`
}

// ReadyResponse rolls the checks up into ok, degraded or fail
type ReadyResponse struct {
	Status string       `json:"status" example:"ok"`
	Checks []ReadyCheck `json:"checks"`
	Now    string       `json:"now"    example:"2026-10-17T13:05:00Z"`
}

// ServiceResponse reports uptime in seconds
type ServiceResponse struct {
	Name    string `json:"name"    example:"exoseek-api"`
	Started string `json:"started" example:"2026-10-17T13:00:00Z"`
	Uptime  int64  `json:"uptime"  example:"300"`
}

// ModelResponse is the active snapshot plus build info
type ModelResponse struct {
	toidom.ModelInfo
	Build version.BuildInfo `json:"build"`
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// @Summary Liveness
// @Tags Meta
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /meta/health [get]
func (h meta) health(*http.Request) (any, error) {
	return HealthResponse{OK: true, Service: h.ServiceName, Started: stamp(h.StartedAt), Now: stamp(time.Now())}, nil
}

// @Summary Readiness with dependency checks
// @Tags Meta
// @Produce json
// @Success 200 {object} ReadyResponse
// @Router /meta/ready [get]
func (h meta) ready(r *http.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := []ReadyCheck{ping(ctx, "pg", h.PG), ping(ctx, "ch", h.CH)}
	if h.Model != nil {
		c := ReadyCheck{Name: "model", Status: "ok"}
		if mi := h.Model.Model(ctx); !mi.Loaded {
			c.Status, c.Error = "unloaded", mi.ArtifactError
		}
		checks = append(checks, c)
	}
	return ReadyResponse{Status: rollup(checks), Checks: checks, Now: stamp(time.Now())}, nil
}

func ping(ctx context.Context, name string, dep any) ReadyCheck {
	c := ReadyCheck{Name: name, Status: "skipped"}
	if dep == nil {
		return c
	}
	p, ok := dep.(Pinger)
	if !ok {
		c.Status = "unknown"
		return c
	}
	if err := p.Ping(ctx); err != nil {
		c.Status, c.Error = "fail", err.Error()
		return c
	}
	c.Status = "ok"
	return c
}

// rollup: any fail fails; unknown or unloaded degrade; skipped is neutral
func rollup(checks []ReadyCheck) string {
	out := "ok"
	for _, c := range checks {
		switch c.Status {
		case "fail":
			return "fail"
		case "unknown", "unloaded":
			out = "degraded"
		}
	}
	return out
}

// @Summary Build and version info
// @Tags Meta
// @Produce json
// @Success 200 {object} version.BuildInfo
// @Router /meta/version [get]
func (h meta) version(*http.Request) (any, error) { return version.Info(), nil }

// @Summary Service name and uptime
// @Tags Meta
// @Produce json
// @Success 200 {object} ServiceResponse
// @Router /meta/service [get]
func (h meta) service(*http.Request) (any, error) {
	return ServiceResponse{
		Name:    h.ServiceName,
		Started: stamp(h.StartedAt),
		Uptime:  int64(time.Since(h.StartedAt).Seconds()),
	}, nil
}

// @Summary Active model, feature list source and training metadata
// @Tags Meta
// @Produce json
// @Success 200 {object} ModelResponse
// @Failure 503 {object} httpkit.Envelope "model reporting not wired"
// @Router /meta/model [get]
func (h meta) model(r *http.Request) (any, error) {
	if h.Model == nil {
		return nil, perr.Unavailablef("model reporting is not enabled")
	}
	return ModelResponse{ModelInfo: h.Model.Model(r.Context()), Build: version.Info()}, nil
}
