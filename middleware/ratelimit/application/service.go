package application

import (
	"context"
	"time"

	"github.com/campaner/gobarber-server/middleware/ratelimit/domain"
)

const (
	DefaultMax    = 100
	DefaultWindow = 15 * time.Minute
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Erro do Counter volta para o chamador sem decisão: a política de falha
// (fechar ou abrir) é do middleware.
type Service struct {
	Counter domain.Counter
	Max     int
	Window  time.Duration
	Now     func() time.Time
}

func (s Service) Decide(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if s.Counter == nil {
		return domain.Decision{Allowed: true}, nil
	}
	if s.Max <= 0 {
		s.Max = DefaultMax
	}
	if s.Window <= 0 {
		s.Window = DefaultWindow
	}
	if s.Now == nil {
		s.Now = time.Now
	}

	entry, err := s.Counter.Increment(ctx, key, s.Window)
	if err != nil {
		return domain.Decision{}, err
	}

	dec := domain.Decision{
		Allowed:   entry.Count <= int64(s.Max),
		Limit:     s.Max,
		Remaining: remaining(s.Max, entry.Count),
		ResetAt:   entry.ResetAt,
	}
	if dec.Allowed {
		return dec, nil
	}

	dec.RetryAfter = retryAfter(entry.ResetAt, s.Now(), s.Window)
	return dec, nil
}

func remaining(max int, count int64) int {
	left := int64(max) - count
	if left < 0 {
		return 0
	}
	return int(left)
}

// retryAfter arredonda para cima em segundos inteiros (Retry-After não
// aceita fração). Sem reset conhecido, recomenda a janela inteira.
func retryAfter(resetAt, now time.Time, window time.Duration) time.Duration {
	if resetAt.IsZero() {
		return window
	}
	d := resetAt.Sub(now)
	if d <= 0 {
		return time.Second
	}
	secs := (d + time.Second - 1) / time.Second
	return secs * time.Second
}
