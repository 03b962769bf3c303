package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campaner/gobarber-server/app"
	"github.com/campaner/gobarber-server/config"
	"github.com/campaner/gobarber-server/logger"
	"github.com/campaner/gobarber-server/middleware/monitoring"
	"github.com/campaner/gobarber-server/routes"
)

const serviceName = "gobarber-server"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewLogger("server", logger.Options{})
		log.Error().Err(err).Msg("config error")
		return err
	}

	log := logger.NewLogger("server", logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Environment.IsDevelopment(),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, shutdownTracer, err := monitoring.InitTracer(ctx, monitoring.TracerConfig{
		ServiceName: serviceName,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRate:  cfg.Tracing.SampleRate,
	}, log)
	if err != nil {
		// sem tracing o servidor continua útil
		log.Warn().Err(err).Msg("tracer init failed, tracing disabled")
		tp, shutdownTracer = nil, func(context.Context) error { return nil }
	}

	a, err := app.New(cfg, routes.Table(),
		app.WithLogger(log),
		app.WithTracerProvider(tp),
	)
	if err != nil {
		log.Error().Err(err).Msg("app assembly failed")
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
		}
		if err := a.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("app close")
		}
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("environment", string(cfg.Environment)).
		Msg("server listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
		cancel()
		<-done
		return err
	}
	<-done
	return nil
}
