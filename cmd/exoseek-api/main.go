// @title         Exoseek API
// @version       0.1.0
// @description   TESS Object of Interest classifier serving core

package main

//go:generate go run github.com/swaggo/swag/v2/cmd/swag init -g main.go -d ./,../../internal -o ../../internal/services/api/docs --parseInternal

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exoseek/internal/core/version"
	"exoseek/internal/modkit/repokit"
	"exoseek/internal/platform/config"
	"exoseek/internal/platform/logger"
	"exoseek/internal/platform/metrics"
	phttp "exoseek/internal/platform/net/http"
	"exoseek/internal/platform/store"

	"exoseek/internal/services/api"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real env wins
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Get().Warn().Err(err).Msg("could not read .env")
	}

	root := config.New()
	apiCfg := root.Prefix("CORE_API_")         // CORE_API_* for HTTP
	pgCfg := root.Prefix("SERVICE_PGSQL_")      // audit store, optional
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_") // event stream, optional

	// bring up logging early
	l := logger.Get()

	if err := metrics.Init(metrics.FromConfig(root)); err != nil {
		l.Warn().Err(err).Msg("continuing without metrics")
	}
	defer func() { _ = metrics.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// open the platform store; both backends are off unless enabled
	sc := store.Config{AppName: version.ServiceName}
	if pgCfg.MayBool("ENABLED", false) {
		sc.PG = store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		}
	}
	if chCfg.MayBool("ENABLED", false) {
		sc.CH = store.CHConfig{
			Enabled:    true,
			URL:        chCfg.MustString("DBURL"),
			ClientRole: "api",
			ClientTag:  version.Info().Version,
		}
	}
	st, err := store.Open(ctx, sc, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	if sc.PG.Enabled || sc.CH.Enabled {
		repokit.MustGuard(ctx, st)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// http server (reads API_PORT, default :4000)
	srv := phttp.NewServer(root)

	// mount our API
	toi := api.Mount(
		srv.Router(),
		api.Options{
			Config:         root,
			Store:          st,
			Logger:         l,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", false),
			CORSOrigins:    apiCfg.MayCSV("CORS_ORIGINS", nil),
		},
	)

	workers, cancelWorkers := context.WithCancel(ctx)
	if err := toi.Start(workers); err != nil {
		cancelWorkers()
		l.Panic().Err(err).Msg("toi module failed to start")
	}

	go func() {
		<-ctx.Done()
		l.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), apiCfg.MayDuration("SHUTDOWN_TIMEOUT", 15*time.Second))
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			l.Error().Err(err).Msg("http shutdown")
		}
	}()

	// run
	runErr := srv.Run(ctx)

	// drain audit queues and release the model after the listener is closed
	cancelWorkers()
	if err := toi.Close(); err != nil {
		l.Error().Err(err).Msg("failed to close toi module")
	}
	if runErr != nil {
		l.Panic().Err(runErr).Msg("http server stopped")
	}
}
