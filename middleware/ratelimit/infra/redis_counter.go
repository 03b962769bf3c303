package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campaner/gobarber-server/middleware/ratelimit/domain"
)

// DefaultKeyPrefix mantém as chaves compatíveis com o rate-limit-redis
// usado pela versão anterior do servidor.
const DefaultKeyPrefix = "rl:"

// ErrStoreUnavailable envolve qualquer falha de comunicação com o store.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// INCR e leitura do TTL numa única ida ao Redis. A expiração é definida no
// primeiro incremento da janela, ou quando a chave perdeu o TTL.
var incrementScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if current == 1 or ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisCounter implementa domain.Counter sobre Redis. A conexão é aberta
// pelo go-redis sob demanda: erros de conexão aparecem no primeiro
// Increment, não na construção.
type RedisCounter struct {
	rdb    redis.Scripter
	prefix string
	now    func() time.Time
}

type RedisCounterOption func(*RedisCounter)

func WithKeyPrefix(prefix string) RedisCounterOption {
	return func(c *RedisCounter) { c.prefix = prefix }
}

func WithRedisClock(now func() time.Time) RedisCounterOption {
	return func(c *RedisCounter) { c.now = now }
}

func NewRedisCounter(rdb redis.Scripter, opts ...RedisCounterOption) *RedisCounter {
	c := &RedisCounter{
		rdb:    rdb,
		prefix: DefaultKeyPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Increment implementa domain.Counter.
func (c *RedisCounter) Increment(ctx context.Context, key domain.Key, window time.Duration) (domain.Entry, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1
	}

	vals, err := incrementScript.Run(ctx, c.rdb, []string{c.prefix + string(key)}, ms).Int64Slice()
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if len(vals) != 2 {
		return domain.Entry{}, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, vals)
	}

	return domain.Entry{
		Count:   vals[0],
		ResetAt: c.now().Add(time.Duration(vals[1]) * time.Millisecond),
	}, nil
}
