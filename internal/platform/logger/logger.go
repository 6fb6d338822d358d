// Package logger owns the process zerolog logger and request scoped children
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"exoseek/internal/platform/config/raw"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger is zerolog's logger; callers never import zerolog for the type
type Logger = zerolog.Logger

// Options configures the root logger
type Options struct {
	Level   string    // trace..panic, default debug
	Format  string    // console or json
	Service string    // added as service=
	Caller  bool      // add file:line
	Writer  io.Writer // default stdout
}

// FromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_SERVICE and LOG_CALLER
func FromEnv() Options {
	rc := raw.New().Prefix("LOG_")
	return Options{
		Level:   strings.ToLower(rc.Get("LEVEL", "debug")),
		Format:  strings.ToLower(rc.Get("FORMAT", "console")),
		Service: rc.Get("SERVICE", ""),
		Caller:  rc.GetBool("CALLER", false),
	}
}

var root atomic.Pointer[Logger]

// Init builds the root logger from opt and installs it
// later calls replace the root; children already handed out keep their writer
func Init(opt Options) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	w := opt.Writer
	if w == nil {
		w = os.Stdout
	}
	if opt.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.TrimSpace(strings.ToLower(opt.Level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.DebugLevel
	}

	b := zerolog.New(w).Level(lvl).With().Timestamp()
	if opt.Service != "" {
		b = b.Str("service", opt.Service)
	}
	if opt.Caller {
		b = b.Caller()
	}
	l := b.Logger()
	root.Store(&l)
}

// Get returns the root logger, building it from the environment on first use
func Get() *Logger {
	if l := root.Load(); l != nil {
		return l
	}
	Init(FromEnv())
	return root.Load()
}

// Named returns a child tagged component=name
func Named(name string) *Logger {
	if name == "" {
		return Get()
	}
	l := Get().With().Str("component", name).Logger()
	return &l
}

type ctxKey struct{}

// WithRequest stores a request id for C outside of http handlers (audit workers, cli)
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, reqID)
}

// C returns a child carrying request_id from ctx
// the id comes from WithRequest or, failing that, chi's RequestID middleware
func C(ctx context.Context) *Logger {
	id, _ := ctx.Value(ctxKey{}).(string)
	if id == "" {
		id = chimw.GetReqID(ctx)
	}
	if id == "" {
		return Get()
	}
	l := Get().With().Str("request_id", id).Logger()
	return &l
}
