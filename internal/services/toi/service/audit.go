package service

import (
	"context"
	"sync/atomic"
	"time"

	"exoseek/internal/platform/logger"
	"exoseek/internal/platform/metrics"
	"exoseek/internal/services/toi/domain"
)

// AuditConfig bounds the audit queue
type AuditConfig struct {
	Buffer       int           // queued records per kind before dropping
	BatchSize    int           // records per sink write
	FlushEvery   time.Duration // max time a record waits in a partial batch
	WriteTimeout time.Duration // per sink write, also bounds the shutdown drain
}

func (c AuditConfig) withDefaults() AuditConfig {
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 128
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// Auditor implements domain.AuditPort with a bounded queue drained by Run
// Record calls never block; when the queue is full the record is dropped and counted
type Auditor struct {
	cfg   AuditConfig
	sinks []domain.AuditSink

	preds chan domain.PredictionRecord
	loads chan domain.LoadEvent

	dropped atomic.Uint64
}

// NewAuditor builds an auditor fanning out to sinks
func NewAuditor(cfg AuditConfig, sinks ...domain.AuditSink) *Auditor {
	cfg = cfg.withDefaults()
	return &Auditor{
		cfg:   cfg,
		sinks: sinks,
		preds: make(chan domain.PredictionRecord, cfg.Buffer),
		loads: make(chan domain.LoadEvent, cfg.Buffer),
	}
}

// RecordPrediction queues rec
func (a *Auditor) RecordPrediction(_ context.Context, rec domain.PredictionRecord) {
	select {
	case a.preds <- rec:
	default:
		a.dropped.Add(1)
		metrics.Incr("audit.dropped", "kind:prediction")
	}
}

// RecordLoad queues ev
func (a *Auditor) RecordLoad(_ context.Context, ev domain.LoadEvent) {
	select {
	case a.loads <- ev:
	default:
		a.dropped.Add(1)
		metrics.Incr("audit.dropped", "kind:load")
	}
}

// Dropped returns how many records were discarded because the queue was full
func (a *Auditor) Dropped() uint64 { return a.dropped.Load() }

// Run drains the queue until ctx is done, then flushes what is left
func (a *Auditor) Run(ctx context.Context) error {
	log := logger.Named("toi-audit")
	t := time.NewTicker(a.cfg.FlushEvery)
	defer t.Stop()

	preds := make([]domain.PredictionRecord, 0, a.cfg.BatchSize)
	loads := make([]domain.LoadEvent, 0, a.cfg.BatchSize)

	flush := func(base context.Context) {
		if len(preds) > 0 {
			a.writePredictions(base, log, preds)
			preds = preds[:0]
		}
		if len(loads) > 0 {
			a.writeLoads(base, log, loads)
			loads = loads[:0]
		}
	}

	for {
		select {
		case <-ctx.Done():
			// drain without blocking on the canceled ctx
			dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.WriteTimeout)
		drain:
			for {
				select {
				case r := <-a.preds:
					preds = append(preds, r)
				case ev := <-a.loads:
					loads = append(loads, ev)
				default:
					break drain
				}
			}
			flush(dctx)
			cancel()
			return nil
		case r := <-a.preds:
			preds = append(preds, r)
			if len(preds) >= a.cfg.BatchSize {
				flush(ctx)
			}
		case ev := <-a.loads:
			loads = append(loads, ev)
			if len(loads) >= a.cfg.BatchSize {
				flush(ctx)
			}
		case <-t.C:
			flush(ctx)
		}
	}
}

func (a *Auditor) writePredictions(ctx context.Context, log *logger.Logger, xs []domain.PredictionRecord) {
	for _, s := range a.sinks {
		wctx, cancel := context.WithTimeout(ctx, a.cfg.WriteTimeout)
		err := s.WritePredictions(wctx, xs)
		cancel()
		if err != nil {
			metrics.Incr("audit.write_error", "kind:prediction")
			log.Warn().Err(err).Int("n", len(xs)).Msg("audit write failed")
			continue
		}
		metrics.Count("audit.written", int64(len(xs)), "kind:prediction")
	}
}

func (a *Auditor) writeLoads(ctx context.Context, log *logger.Logger, xs []domain.LoadEvent) {
	for _, s := range a.sinks {
		wctx, cancel := context.WithTimeout(ctx, a.cfg.WriteTimeout)
		err := s.WriteLoads(wctx, xs)
		cancel()
		if err != nil {
			metrics.Incr("audit.write_error", "kind:load")
			log.Warn().Err(err).Int("n", len(xs)).Msg("audit write failed")
			continue
		}
		metrics.Count("audit.written", int64(len(xs)), "kind:load")
	}
}
