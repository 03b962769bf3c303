package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotPool_TryAcquire(t *testing.T) {
	p := newSlotPool(2)

	r1, ok := p.TryAcquire()
	require.True(t, ok)
	r2, ok := p.TryAcquire()
	require.True(t, ok)

	_, ok = p.TryAcquire()
	assert.False(t, ok, "pool is full")

	r1()
	r3, ok := p.TryAcquire()
	assert.True(t, ok, "released slot is reusable")

	r2()
	r3()
	assert.Len(t, p.sem, 0)
}
