// Package http provides http transport for TOI scoring
package http

import (
	stdhttp "net/http"
	"strconv"
	"strings"

	"exoseek/internal/modkit/httpkit"
	perr "exoseek/internal/platform/errors"
	"exoseek/internal/services/toi/domain"
)

// Register mounts the versioned toi endpoints on the given router
func Register(r httpkit.Router, s domain.ServicePort) {
	h := &handlers{svc: s}

	httpkit.Get(r, "/status", h.status)
	httpkit.Post(r, "/reload", h.reload)
	httpkit.PostJSON[domain.PredictInput](r, "/predict", h.predict)

	// audited predictions, newest first
	httpkit.Get(r, "/predictions", h.recent)
}

type handlers struct{ svc domain.ServicePort }

// swagger:route GET /toi/status TOI toiStatus
// @Summary Model status
// @Tags TOI
// @Produce json
// @Success 200 {object} domain.Status "ok"
// @Router /toi/status [get]
func (h *handlers) status(r *stdhttp.Request) (any, error) {
	return h.svc.Status(r.Context()), nil
}

// swagger:route POST /toi/reload TOI toiReload
// @Summary Reload the model artifact and metadata
// @Tags TOI
// @Produce json
// @Success 200 {object} domain.ReloadResult "ok"
// @Router /toi/reload [post]
func (h *handlers) reload(r *stdhttp.Request) (any, error) {
	return h.svc.Reload(r.Context())
}

// swagger:route POST /toi/predict TOI toiPredict
// @Summary Score a TOI candidate
// @Tags TOI
// @Accept json
// @Produce json
// @Param payload body domain.PredictInput true "Candidate"
// @Success 200 {object} domain.PredictionDetail "ok"
// @Failure 400 {object} httpkit.Envelope "invalid input"
// @Failure 422 {object} httpkit.Envelope "inference failed"
// @Failure 503 {object} httpkit.Envelope "model not loaded"
// @Router /toi/predict [post]
func (h *handlers) predict(r *stdhttp.Request, in domain.PredictInput) (any, error) {
	return h.svc.Predict(r.Context(), in.Raw())
}

// swagger:route GET /toi/predictions TOI toiRecent
// @Summary Recent audited predictions
// @Tags TOI
// @Produce json
// @Param limit query int false "Max rows (1-500)"
// @Success 200 {array} domain.RecentRow "ok"
// @Failure 503 {object} httpkit.Envelope "audit store disabled"
// @Router /toi/predictions [get]
func (h *handlers) recent(r *stdhttp.Request) (any, error) {
	var in domain.RecentInput
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			return nil, perr.Newf(perr.ErrorCodeValidation, "limit must be an integer between 1 and 500")
		}
		in.Limit = n
	}
	return h.svc.Recent(r.Context(), in)
}
