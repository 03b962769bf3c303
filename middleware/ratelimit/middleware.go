package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/campaner/gobarber-server/logger"
	"github.com/campaner/gobarber-server/middleware/ratelimit/application"
	"github.com/campaner/gobarber-server/middleware/ratelimit/domain"
	"github.com/campaner/gobarber-server/pipeline"
)

// TooManyRequestsMessage é o corpo padrão das respostas 429.
const TooManyRequestsMessage = "Too many requests, please try again later."

type KeyFunc func(r *http.Request) string

type Options struct {
	Counter domain.Counter
	Stats   domain.StatsStore

	// Max requisições por Window, por chave. Zero usa os defaults da
	// camada application (100 em 15 minutos).
	Max    int
	Window time.Duration

	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool

	// AddRateLimitHeaders liga X-RateLimit-Limit/Remaining/Reset.
	AddRateLimitHeaders bool

	// FailOpen deixa a requisição passar quando o store falha.
	// Por padrão a falha vira erro do pipeline (500).
	FailOpen bool

	Logger *logger.Logger
	Now    func() time.Time
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware devolve o estágio de rate limit. É o único estágio que pode
// encerrar a requisição sem chamar o próximo (429).
func Middleware(opts Options) pipeline.Stage {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	svc := application.Service{
		Counter: opts.Counter,
		Max:     opts.Max,
		Window:  opts.Window,
		Now:     opts.Now,
	}

	return func(next pipeline.HandlerFunc) pipeline.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) error {
			key := domain.Key(opts.KeyFn(r))

			dec, err := svc.Decide(r.Context(), key)
			if err != nil {
				if opts.FailOpen {
					opts.Logger.Warn().Err(err).Str("key", string(key)).Msg("rate limit store failed, letting request through")
					return next(w, r)
				}
				return pipeline.WithStack(fmt.Errorf("rate limit: %w", err))
			}

			if opts.Stats != nil {
				ev := domain.StatsEvent{
					Key:     key,
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      opts.Now(),
				}
				if serr := opts.Stats.Record(r.Context(), ev); serr != nil {
					opts.Logger.Debug().Err(serr).Msg("rate limit stats")
				}
			}

			if opts.AddRateLimitHeaders && dec.Limit > 0 {
				h := w.Header()
				h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
				h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
				if !dec.ResetAt.IsZero() {
					h.Set("X-RateLimit-Reset", formatUnix(dec.ResetAt))
				}
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				_, werr := pipeline.WriteJSON(w, pipeline.ErrorBody{Error: TooManyRequestsMessage}, http.StatusTooManyRequests)
				if werr != nil {
					opts.Logger.Debug().Err(werr).Msg("write 429")
				}
				return nil
			}

			return next(w, r)
		}
	}
}
