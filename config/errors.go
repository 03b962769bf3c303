package config

import "errors"

var (
	ErrInvalidListenAddr   = errors.New("LISTEN_ADDR is required")
	ErrInvalidCORSOrigin   = errors.New("CORS_ORIGIN must be an absolute origin (scheme://host[:port])")
	ErrInvalidRateLimit    = errors.New("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW_MS must be > 0")
	ErrInvalidStore        = errors.New("REDIS_HOST and REDIS_PORT are required outside development")
	ErrInvalidLimitStore   = errors.New("RATE_LIMIT_STORE must be redis or memory")
	ErrInvalidStaticRoot   = errors.New("STATIC_ROOT is required")
	ErrInvalidBodyLimit    = errors.New("BODY_LIMIT_BYTES must be > 0")
	ErrInvalidSampleRate   = errors.New("OTEL_TRACES_SAMPLE_RATE must be between 0 and 1")
	ErrInvalidShutdownWait = errors.New("SHUTDOWN_TIMEOUT must be > 0")
)
