package swaggerkit

import (
	"encoding/json"
	"net/http"

	"exoseek/internal/platform/config"
)

// serveDocJSON serves the generated spec rebased onto /api/v1
// CORE_API_DOCS_TITLE_SUFFIX is appended to the title, e.g. to name the environment
func serveDocJSON() http.HandlerFunc {
	suffix := config.New().Prefix("CORE_API_").MayString("DOCS_TITLE_SUFFIX", "")
	return func(w http.ResponseWriter, _ *http.Request) {
		var spec map[string]any
		if err := json.Unmarshal([]byte(docReader()), &spec); err != nil {
			http.Error(w, "spec parse error", http.StatusInternalServerError)
			return
		}
		rebase(spec, "/api/v1", suffix)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(spec)
	}
}

// rebase lifts swagger 2 output to the openapi 3.0 the ui renders and points servers at base
func rebase(spec map[string]any, base, suffix string) {
	if _, ok := spec["swagger"]; ok {
		delete(spec, "swagger")
		delete(spec, "basePath")
	}
	spec["openapi"] = "3.0.3"
	spec["servers"] = []any{map[string]any{"url": base}}

	if info, ok := spec["info"].(map[string]any); ok && suffix != "" {
		if title, ok := info["title"].(string); ok {
			info["title"] = title + " " + suffix
		}
	}
}
