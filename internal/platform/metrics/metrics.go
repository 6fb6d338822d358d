// Package metrics provides a process wide statsd client with no op defaults
package metrics

import (
	"sync/atomic"
	"time"

	"exoseek/internal/platform/config"
	"exoseek/internal/platform/logger"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Options configures the statsd client
type Options struct {
	Addr       string
	Namespace  string
	Tags       []string
	SampleRate float64
}

// FromConfig reads METRICS_* keys from cfg
func FromConfig(cfg config.Conf) Options {
	mc := cfg.Prefix("METRICS_")
	return Options{
		Addr:       mc.MayString("ADDR", ""),
		Namespace:  mc.MayString("NAMESPACE", "exoseek."),
		Tags:       mc.MayCSV("TAGS", nil),
		SampleRate: mc.MayFloat64("SAMPLE_RATE", 1),
	}
}

type sink struct {
	c    statsd.ClientInterface
	rate float64
}

// safe for concurrent use; swapped whole on Init
var current atomic.Pointer[sink]

func init() {
	current.Store(&sink{c: &statsd.NoOpClient{}, rate: 1})
}

// Init dials the agent when an address is configured
// on failure the no op client stays in place so callers never see nil
func Init(opt Options) error {
	if opt.Addr == "" {
		logger.Named("metrics").Debug().Msg("metrics disabled, no address configured")
		return nil
	}
	rate := opt.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	c, err := statsd.New(opt.Addr,
		statsd.WithNamespace(opt.Namespace),
		statsd.WithTags(opt.Tags),
	)
	if err != nil {
		logger.Named("metrics").Error().Err(err).Str("addr", opt.Addr).Msg("statsd init failed, metrics unavailable")
		return err
	}
	Use(c, rate)
	logger.Named("metrics").Info().Str("addr", opt.Addr).Strs("tags", opt.Tags).Float64("rate", rate).Msg("metrics client initialized")
	return nil
}

// Use installs c as the process client and returns the previous one
func Use(c statsd.ClientInterface, rate float64) statsd.ClientInterface {
	if c == nil {
		c = &statsd.NoOpClient{}
	}
	prev := current.Swap(&sink{c: c, rate: rate})
	return prev.c
}

// Count adds v to a counter
func Count(name string, v int64, tags ...string) {
	s := current.Load()
	if err := s.c.Count(name, v, tags, s.rate); err != nil {
		warn(name, err)
	}
}

// Incr adds one to a counter
func Incr(name string, tags ...string) { Count(name, 1, tags...) }

// Timing records a duration
func Timing(name string, d time.Duration, tags ...string) {
	s := current.Load()
	if err := s.c.Timing(name, d, tags, s.rate); err != nil {
		warn(name, err)
	}
}

// Since records the time elapsed from start
func Since(name string, start time.Time, tags ...string) { Timing(name, time.Since(start), tags...) }

// Gauge records a point in time value
func Gauge(name string, v float64, tags ...string) {
	s := current.Load()
	if err := s.c.Gauge(name, v, tags, s.rate); err != nil {
		warn(name, err)
	}
}

// Close flushes and closes the active client
func Close() error {
	prev := Use(nil, 1)
	return prev.Close()
}

func warn(name string, err error) {
	logger.Named("metrics").Warn().Err(err).Str("metric", name).Msg("statsd write failed")
}
