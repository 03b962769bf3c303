package infra

import (
	"context"
	"sync"
	"time"

	"github.com/campaner/gobarber-server/middleware/ratelimit/domain"
)

// MemoryCounter é uma janela fixa por chave mantida em memória, com limpeza
// periódica das janelas vencidas.
//
// O estado é local ao processo: não serve para limitar várias instâncias.
type MemoryCounter struct {
	mu           sync.Mutex
	entries      map[domain.Key]*memoryEntry
	now          func() time.Time
	cleanupEvery time.Duration
}

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

type MemoryCounterOption func(*MemoryCounter)

func WithClock(now func() time.Time) MemoryCounterOption {
	return func(c *MemoryCounter) { c.now = now }
}

func WithCleanupEvery(d time.Duration) MemoryCounterOption {
	return func(c *MemoryCounter) { c.cleanupEvery = d }
}

func NewMemoryCounter(opts ...MemoryCounterOption) *MemoryCounter {
	c := &MemoryCounter{
		entries:      make(map[domain.Key]*memoryEntry),
		now:          time.Now,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Increment implementa domain.Counter.
func (c *MemoryCounter) Increment(_ context.Context, key domain.Key, window time.Duration) (domain.Entry, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok || !now.Before(ent.resetAt) {
		ent = &memoryEntry{resetAt: now.Add(window)}
		c.entries[key] = ent
	}
	ent.count++

	return domain.Entry{Count: ent.count, ResetAt: ent.resetAt}, nil
}

// Cleanup remove as janelas que já venceram.
func (c *MemoryCounter) Cleanup() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, ent := range c.entries {
		if !now.Before(ent.resetAt) {
			delete(c.entries, k)
		}
	}
}

// Len devolve quantas chaves estão em memória.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartJanitor inicia uma goroutine que limpa janelas vencidas
// periodicamente. Pare cancelando o contexto.
func (c *MemoryCounter) StartJanitor(ctx context.Context) {
	if c.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(c.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Cleanup()
			}
		}
	}()
}
