// Package httpkit is the http surface modules build routes with
// modules import this rather than internal/platform/net/http
package httpkit

import (
	"net/http"

	phttp "exoseek/internal/platform/net/http"
)

type (
	// Envelope is the /api/v1 response body
	Envelope = phttp.Envelope

	// Response is the return-style handler result
	Response = phttp.Response

	// Handler is the platform handler type
	Handler = phttp.Handler

	// Router is the platform router seam
	Router = phttp.Router
)

// Raw writes v as JSON with status and no envelope
func Raw(w http.ResponseWriter, status int, v any) { phttp.JSON(w, status, v) }

// Get mounts a body-less enveloped handler under GET
func Get(r Router, path string, h func(*http.Request) (any, error)) { r.Get(path, phttp.Call(h)) }

// Post mounts a body-less enveloped handler under POST
func Post(r Router, path string, h func(*http.Request) (any, error)) { r.Post(path, phttp.Call(h)) }

// PostJSON mounts a handler that takes a validated T body under POST
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, phttp.JSONHandler(h))
}
