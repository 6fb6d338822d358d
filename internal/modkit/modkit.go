// Package modkit wires api modules: shared deps, build options and route mounting
package modkit

import (
	"net/http"
	"reflect"
	"slices"

	"exoseek/internal/modkit/httpkit"
	"exoseek/internal/modkit/repokit"
	"exoseek/internal/platform/config"
	"exoseek/internal/platform/logger"
	"exoseek/internal/platform/store"
	str "exoseek/internal/platform/strings"
)

// Module is what the api mounts
type Module interface {
	MountRoutes(r httpkit.Router)
	Ports() any
	Name() string
}

// Deps are handed to every module; nil stores mean the backend is disabled
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.Queryer
	CH  store.Clickhouse
}

// Option adjusts a module build
type Option func(*Built)

// Built is the resolved build of one module
type Built struct {
	Name   string
	Prefix string
	Mw     []func(http.Handler) http.Handler
	Ports  any
}

// WithName names the module in logs
func WithName(name string) Option { return func(b *Built) { b.Name = name } }

// WithPrefix mounts the module under prefix
func WithPrefix(prefix string) Option { return func(b *Built) { b.Prefix = prefix } }

// WithMiddlewares runs mw in front of the module's routes only
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(b *Built) { b.Mw = append(b.Mw, mw...) }
}

// WithPorts injects collaborators owned by another module
func WithPorts[T any](p T) Option { return func(b *Built) { b.Ports = p } }

// Build applies defaults then opts; later options win
func Build(defaults []Option, opts ...Option) Built {
	var b Built
	for _, o := range slices.Concat(defaults, opts) {
		o(&b)
	}
	b.Prefix = str.MustPrefix(b.Prefix)
	return b
}

// Mount registers routes under the module prefix behind its middleware
func (b Built) Mount(r httpkit.Router, register func(httpkit.Router)) {
	r.Route(b.Prefix, func(rr httpkit.Router) {
		if len(b.Mw) > 0 {
			rr.Use(b.Mw...)
		}
		register(rr)
	})
}

// PortsOf finds a T in m's ports: the ports value itself or one of its exported fields
func PortsOf[T any](m Module) (T, bool) {
	var zero T
	p := m.Ports()
	if p == nil {
		return zero, false
	}
	if v, ok := p.(T); ok {
		return v, true
	}
	rv := reflect.ValueOf(p)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return zero, false
	}
	for i := range rv.NumField() {
		if f := rv.Field(i); f.CanInterface() {
			if v, ok := f.Interface().(T); ok {
				return v, true
			}
		}
	}
	return zero, false
}

// MustPortsOf is PortsOf that panics when m does not offer a T
func MustPortsOf[T any](m Module) T {
	v, ok := PortsOf[T](m)
	if !ok {
		panic("modkit: module " + m.Name() + " offers no " + reflect.TypeFor[T]().String())
	}
	return v
}
