package infra

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campaner/gobarber-server/middleware/ratelimit/domain"
)

// RedisStatsStore grava contadores de decisões em hashes do Redis:
//
//	<prefix>:total              allowed/denied cumulativos (sem expiração)
//	<prefix>:minute:<yyyymmddhhmm>  allowed/denied por minuto (expira em ttl)
//	<prefix>:route              "<METHOD> <path>:<allowed|denied>"
//	<prefix>:key:<identity>     por cliente, só com trackKeys
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix    string
	ttl       time.Duration
	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "rl:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := outcome(ev.Allowed)

	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

		minuteKey := s.prefix + ":minute:" + at.UTC().Format("200601021504")
		pipe.HIncrBy(ctx, minuteKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, minuteKey, s.ttl)
		}

		if route := routeField(ev.Method, ev.Path); route != "" {
			pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
		}

		if k := strings.TrimSpace(string(ev.Key)); s.trackKeys && k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
		return nil
	})
	return err
}

func outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func routeField(method, path string) string {
	return strings.TrimSpace(strings.TrimSpace(method) + " " + strings.TrimSpace(path))
}
