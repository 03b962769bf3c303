// Package config carrega a configuração do servidor a partir do ambiente
// (e de um arquivo .env, quando existir). O valor é resolvido e validado
// uma vez na inicialização e depois só é lido.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// IsDevelopment: qualquer valor diferente de "development" conta como
// produção.
func (e Environment) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(string(e)), string(Development))
}

type Config struct {
	Environment Environment `env:"APP_ENV" envDefault:"production"`
	ListenAddr  string      `env:"LISTEN_ADDR" envDefault:":3333"`
	CORSOrigin  string      `env:"CORS_ORIGIN" envDefault:"http://gobarber.campaner.me"`

	RateLimit RateLimit
	Store     Store

	StaticRoot string `env:"STATIC_ROOT" envDefault:"tmp/uploads"`
	BodyLimit  int64  `env:"BODY_LIMIT_BYTES" envDefault:"102400"`

	MonitoringDSN string `env:"SENTRY_DSN"`
	Tracing       Tracing

	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Onde o rate limit guarda os contadores. StoreMemory vale só para uma
// instância: cada processo conta sozinho.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type RateLimit struct {
	Store              string        `env:"RATE_LIMIT_STORE" envDefault:"redis"`
	WindowMs           int64         `env:"RATE_LIMIT_WINDOW_MS" envDefault:"900000"`
	Max                int           `env:"RATE_LIMIT_MAX" envDefault:"100"`
	KeyHeader          string        `env:"RATE_LIMIT_KEY_HEADER"`
	TrustXForwardedFor bool          `env:"RATE_LIMIT_TRUST_XFF" envDefault:"false"`
	Headers            bool          `env:"RATE_LIMIT_HEADERS" envDefault:"true"`
	FailOpen           bool          `env:"RATE_LIMIT_FAIL_OPEN" envDefault:"false"`
	StatsEnabled       bool          `env:"RATE_LIMIT_STATS_ENABLED" envDefault:"false"`
	StatsTTL           time.Duration `env:"RATE_LIMIT_STATS_TTL" envDefault:"24h"`
	StatsTrackKeys     bool          `env:"RATE_LIMIT_STATS_TRACK_KEYS" envDefault:"false"`
}

func (r RateLimit) Window() time.Duration {
	return time.Duration(r.WindowMs) * time.Millisecond
}

// UsesRedis: contadores no Redis ou estatísticas ligadas.
func (r RateLimit) UsesRedis() bool {
	return r.Store != StoreMemory || r.StatsEnabled
}

// Store é a conexão com o Redis compartilhado do rate limit.
type Store struct {
	Host     string `env:"REDIS_HOST" envDefault:"127.0.0.1"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (s Store) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

type Tracing struct {
	Endpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRate float64 `env:"OTEL_TRACES_SAMPLE_RATE" envDefault:"1.0"`
}

// Load lê os arquivos .env informados (padrão ".env"; arquivo ausente é
// ignorado), depois o ambiente, e valida o resultado. Variáveis já
// definidas no ambiente têm prioridade sobre o .env.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error getting env configs: %w", err)
	}
	return cfg, cfg.Validate()
}

// FromMap monta a configuração só a partir de environ, sem tocar no
// ambiente do processo.
func FromMap(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("error getting env configs: %w", err)
	}
	return cfg, cfg.Validate()
}
