package swaggerkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	phttp "exoseek/internal/platform/net/http"
	"exoseek/internal/platform/testkit"

	"github.com/go-chi/chi/v5"
)

func docs(t *testing.T, enabled bool) *chi.Mux {
	t.Helper()
	m := chi.NewRouter()
	Mount(phttp.AdaptChi(m), enabled)
	return m
}

func TestMount_ServesRebasedSpec(t *testing.T) {
	testkit.Serial(t)
	t.Setenv("CORE_API_DOCS_TITLE_SUFFIX", "(staging)")
	m := docs(t, true)

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	if rr.Code != 200 {
		t.Fatalf("status %d", rr.Code)
	}
	var spec map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &spec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if spec["openapi"] != "3.0.3" || spec["swagger"] != nil {
		t.Fatalf("version not lifted: %v", spec)
	}
	servers := spec["servers"].([]any)
	if servers[0].(map[string]any)["url"] != "/api/v1" {
		t.Fatalf("servers %v", servers)
	}
	if spec["info"].(map[string]any)["title"] != "Exoseek API (staging)" {
		t.Fatalf("title %v", spec["info"])
	}

	rr = httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/docs", nil))
	if rr.Code != http.StatusPermanentRedirect || rr.Header().Get("Location") != "/api/docs/" {
		t.Fatalf("redirect %d %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestMount_BadSpecAndDisabled(t *testing.T) {
	testkit.Serial(t)
	testkit.Swap(t, &docReader, func() string { return "{" })

	rr := httptest.NewRecorder()
	docs(t, true).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("bad spec status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	docs(t, false).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("disabled docs status %d", rr.Code)
	}
}
