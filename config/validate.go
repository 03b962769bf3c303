package config

import (
	"errors"
	"net/url"
	"strings"
)

// Validate devolve todos os problemas encontrados juntos (errors.Join).
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, ErrInvalidListenAddr)
	}
	if !validOrigin(c.CORSOrigin) {
		errs = append(errs, ErrInvalidCORSOrigin)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.WindowMs <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	if c.RateLimit.Store != StoreRedis && c.RateLimit.Store != StoreMemory {
		errs = append(errs, ErrInvalidLimitStore)
	}
	// em desenvolvimento o rate limit nem é montado
	if !c.Environment.IsDevelopment() && c.RateLimit.UsesRedis() &&
		(strings.TrimSpace(c.Store.Host) == "" || strings.TrimSpace(c.Store.Port) == "") {
		errs = append(errs, ErrInvalidStore)
	}
	if strings.TrimSpace(c.StaticRoot) == "" {
		errs = append(errs, ErrInvalidStaticRoot)
	}
	if c.BodyLimit <= 0 {
		errs = append(errs, ErrInvalidBodyLimit)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, ErrInvalidShutdownWait)
	}

	return errors.Join(errs...)
}

func validOrigin(origin string) bool {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
