package http

import (
	stdhttp "net/http"
	"strconv"
	"strings"

	"exoseek/internal/modkit/httpkit"
	perr "exoseek/internal/platform/errors"
	"exoseek/internal/platform/net/http/bind"
	"exoseek/internal/services/toi/domain"
)

// RegisterLegacy mounts the unversioned endpoints that existing clients call
// payloads are written bare, without the envelope
func RegisterLegacy(r httpkit.Router, s domain.ServicePort) {
	h := &handlers{svc: s}

	r.Get("/", h.legacyRoot)
	r.Post("/reload", h.legacyReload)
	r.Post("/predict", h.legacyPredict)
}

func (h *handlers) legacyRoot(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	httpkit.Raw(w, stdhttp.StatusOK, h.svc.Status(r.Context()))
}

func (h *handlers) legacyReload(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	out, err := h.svc.Reload(r.Context())
	if err != nil {
		writeLegacyError(w, err, nil)
		return
	}
	httpkit.Raw(w, stdhttp.StatusOK, out)
}

func (h *handlers) legacyPredict(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	in, err := PredictInputFromQuery(r)
	if err != nil {
		writeLegacyError(w, err, nil)
		return
	}
	out, err := h.svc.Predict(r.Context(), in.Raw())
	if err != nil {
		var used []string
		if perr.IsCode(err, perr.ErrorCodeInference) {
			used = out.UsedFeatures
		}
		writeLegacyError(w, err, used)
		return
	}
	httpkit.Raw(w, stdhttp.StatusOK, out.Prediction)
}

// PredictInputFromQuery binds and validates the predict query parameters
func PredictInputFromQuery(r *stdhttp.Request) (domain.PredictInput, error) {
	q := r.URL.Query()

	var in domain.PredictInput
	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"period_days", &in.PeriodDays},
		{"duration_hr", &in.DurationHr},
		{"depth_pct", &in.DepthPct},
		{"snr", &in.SNR},
	} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.PredictInput{}, perr.Newf(perr.ErrorCodeValidation, "%s must be a number", p.name)
		}
		*p.dst = &v
	}

	if err := bind.Validate(in); err != nil {
		return domain.PredictInput{}, err
	}
	return in, nil
}

func writeLegacyError(w stdhttp.ResponseWriter, err error, used []string) {
	httpkit.Raw(w, perr.HTTPStatus(err), domain.ErrorBody{
		Error:        perr.WireFrom(err).Message,
		UsedFeatures: used,
	})
}
