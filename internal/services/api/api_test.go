package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"exoseek/internal/platform/config"
	phttp "exoseek/internal/platform/net/http"
	toimod "exoseek/internal/services/toi/module"

	"github.com/go-chi/chi/v5"
)

func TestMount_LegacyAndVersionedRoutes(t *testing.T) {
	dir := t.TempDir()
	m := chi.NewRouter()
	toi := Mount(phttp.AdaptChi(m), Options{
		Config: config.New(),
		TOI: toimod.Options{
			ModelPath:    filepath.Join(dir, "rf_toi.json"),
			MetadataPath: filepath.Join(dir, "metrics_toi.json"),
		},
	})
	if toi == nil {
		t.Fatalf("Mount returned no toi module")
	}

	get := func(method, path string) (int, map[string]any) {
		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s %s: decode: %v (%s)", method, path, err, rec.Body.String())
		}
		return rec.Code, body
	}

	code, body := get(http.MethodGet, "/")
	if code != http.StatusOK || body["message"] != "OK" || body["model_loaded"] != false {
		t.Fatalf("root: %d %v", code, body)
	}

	code, body = get(http.MethodPost, "/predict?period_days=10&duration_hr=2&depth_pct=0.5")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("predict without model: %d %v", code, body)
	}

	code, body = get(http.MethodGet, "/api/v1/toi/status")
	if code != http.StatusOK || body["data"] == nil {
		t.Fatalf("v1 status: %d %v", code, body)
	}

	code, body = get(http.MethodGet, "/api/v1/meta/model")
	if code != http.StatusOK {
		t.Fatalf("meta model: %d %v", code, body)
	}
	if data := body["data"].(map[string]any); data["model"] != "toi" || data["feature_source"] != "fallback" {
		t.Fatalf("unexpected model info %v", data)
	}
}
