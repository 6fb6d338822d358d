package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	"exoseek/internal/platform/net/middleware"
)

// CommonStack is the middleware every api scope runs behind
// origins limits CORS; none allows any origin
func CommonStack(origins ...string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.RecoverJSON,
		middleware.NoCache(),
		middleware.AccessLog(500 * time.Millisecond),
		middleware.CORS(origins...),
		middleware.Compress(flate.BestSpeed),
		middleware.Heartbeat("/health"),
		middleware.StripSlashes(),
		middleware.Timeout(30 * time.Second),
	}
}
