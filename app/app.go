// Package app monta o servidor: configura cada estágio e os encadeia na
// ordem fixa do pipeline em volta da tabela de rotas.
package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/campaner/gobarber-server/config"
	"github.com/campaner/gobarber-server/logger"
	"github.com/campaner/gobarber-server/middleware/accesslog"
	"github.com/campaner/gobarber-server/middleware/bodyparser"
	"github.com/campaner/gobarber-server/middleware/exception"
	"github.com/campaner/gobarber-server/middleware/monitoring"
	"github.com/campaner/gobarber-server/middleware/ratelimit"
	"github.com/campaner/gobarber-server/middleware/ratelimit/domain"
	"github.com/campaner/gobarber-server/middleware/ratelimit/infra"
	"github.com/campaner/gobarber-server/middleware/security"
	"github.com/campaner/gobarber-server/middleware/static"
	"github.com/campaner/gobarber-server/pipeline"
)

type (
	Routes     = pipeline.Routes
	RoutesFunc = pipeline.RoutesFunc
)

type App struct {
	handler http.Handler
	monitor *monitoring.Monitor
	log     *logger.Logger

	// só existe fora de desenvolvimento e quando o contador não foi injetado
	rdb *redis.Client
	// para o janitor do contador em memória (RATE_LIMIT_STORE=memory)
	stopJanitor context.CancelFunc
}

type options struct {
	log      *logger.Logger
	tp       trace.TracerProvider
	reporter monitoring.Reporter
	counter  domain.Counter
	stats    domain.StatsStore
}

type Option func(*options)

func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// WithReporter substitui o reporter criado a partir de SENTRY_DSN.
func WithReporter(r monitoring.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithCounter substitui o contador Redis do rate limit.
func WithCounter(c domain.Counter) Option {
	return func(o *options) { o.counter = c }
}

func WithStats(s domain.StatsStore) Option {
	return func(o *options) { o.stats = s }
}

// New valida cfg e monta o pipeline. Nenhuma conexão é aberta aqui: o
// cliente Redis conecta sob demanda na primeira requisição.
func New(cfg config.Config, routes Routes, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log
	if log == nil {
		log = logger.Nop()
	}
	dev := cfg.Environment.IsDevelopment()

	a := &App{log: log}

	// 1. reporter de erros
	reporter := o.reporter
	if reporter == nil {
		reporter = newReporter(cfg, log)
	}
	a.monitor = monitoring.New(reporter,
		monitoring.WithTracerProvider(o.tp),
		monitoring.WithLogger(log),
	)

	p := pipeline.New(log)

	// 2. entrada do monitoramento
	p.Use(a.monitor.Enter())

	// 3. headers de segurança e CORS
	p.Use(security.Headers(dev))
	p.Use(security.CORS(cfg.CORSOrigin))

	// 4. corpo JSON
	p.Use(bodyparser.JSON(cfg.BodyLimit))

	// 5. arquivos enviados
	p.Use(static.Mount(static.Prefix, cfg.StaticRoot, log))

	// 6. rate limit, fora de desenvolvimento
	if !dev {
		p.Use(a.rateLimit(cfg, o))
	}

	// 7. rotas
	p.Handle(pipeline.Dispatch(routes))

	// 8. saída do monitoramento
	p.UseError(a.monitor.Exit())

	// 9. resposta de erro
	p.UseError(exception.New(dev, exception.WithLogger(log)).Stage())

	a.handler = accesslog.Middleware(log)(p)

	log.Info().
		Str("environment", string(cfg.Environment)).
		Bool("rate_limit", !dev).
		Str("rate_limit_store", cfg.RateLimit.Store).
		Str("static_root", cfg.StaticRoot).
		Str("cors_origin", cfg.CORSOrigin).
		Msg("pipeline assembled")

	return a, nil
}

func newReporter(cfg config.Config, log *logger.Logger) monitoring.Reporter {
	if cfg.MonitoringDSN == "" {
		log.Info().Msg("SENTRY_DSN not set, error reporting disabled")
		return monitoring.Nop{}
	}
	rep, err := monitoring.NewSentryReporter(sentry.ClientOptions{
		Dsn:              cfg.MonitoringDSN,
		Environment:      string(cfg.Environment),
		AttachStacktrace: true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("error reporter init failed, reporting disabled")
		return monitoring.Nop{}
	}
	return rep
}

func (a *App) rateLimit(cfg config.Config, o options) pipeline.Stage {
	counter, stats := o.counter, o.stats
	if counter == nil && cfg.RateLimit.Store == config.StoreMemory {
		mc := infra.NewMemoryCounter()
		ctx, cancel := context.WithCancel(context.Background())
		mc.StartJanitor(ctx)
		a.stopJanitor = cancel
		counter = mc
		a.log.Warn().Msg("rate limit counters kept in memory, limits are per instance")
	}
	if counter == nil || (stats == nil && cfg.RateLimit.StatsEnabled) {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Addr(),
			Password: cfg.Store.Password,
			DB:       cfg.Store.DB,
		})
	}
	if counter == nil {
		counter = infra.NewRedisCounter(a.rdb)
	}
	if stats == nil && cfg.RateLimit.StatsEnabled {
		stats = infra.NewRedisStatsStore(a.rdb,
			infra.WithStatsTTL(cfg.RateLimit.StatsTTL),
			infra.WithStatsTrackKeys(cfg.RateLimit.StatsTrackKeys),
		)
	}

	return ratelimit.Middleware(ratelimit.Options{
		Counter:             counter,
		Stats:               stats,
		Max:                 cfg.RateLimit.Max,
		Window:              cfg.RateLimit.Window(),
		KeyHeader:           cfg.RateLimit.KeyHeader,
		TrustXForwardedFor:  cfg.RateLimit.TrustXForwardedFor,
		AddRateLimitHeaders: cfg.RateLimit.Headers,
		FailOpen:            cfg.RateLimit.FailOpen,
		Logger:              a.log,
	})
}

func (a *App) Handler() http.Handler { return a.handler }

// Close espera os relatórios pendentes, para o janitor e fecha o cliente
// Redis.
func (a *App) Close(ctx context.Context) error {
	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	var errs []error
	if err := a.monitor.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
