package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterWindow(t *testing.T) {
	start := time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)
	now := start
	limiter := NewMemoryLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}

	decision, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, time.Minute, decision.RetryAfter)

	other, err := limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")

	now = start.Add(time.Minute)
	decision, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "window reset")
}

func TestMemoryLimiterSweep(t *testing.T) {
	start := time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(5, time.Minute)
	limiter.now = func() time.Time { return start }

	_, _ = limiter.Allow(context.Background(), "a")
	_, _ = limiter.Allow(context.Background(), "b")

	assert.Equal(t, 0, limiter.Sweep(start.Add(30*time.Second)))
	assert.Equal(t, 2, limiter.Sweep(start.Add(time.Minute)))
}

func TestNewFallsBackToMemory(t *testing.T) {
	_, ok := New(nil, 1, time.Minute).(*MemoryLimiter)
	assert.True(t, ok)
}
