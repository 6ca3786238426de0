package idempotency

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore(time.Hour, time.Minute)
	ctx := context.Background()

	state, _, err := store.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, Fresh, state)

	state, _, err = store.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, InFlight, state)

	resp := Response{Status: http.StatusCreated, ContentType: "application/json", Body: []byte(`{"success":true}`)}
	require.NoError(t, store.Complete(ctx, "k1", resp))

	state, replay, err := store.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, Replay, state)
	assert.Equal(t, resp, replay)
}

func TestMemoryStoreAbortAllowsRetry(t *testing.T) {
	store := NewMemoryStore(time.Hour, time.Minute)
	ctx := context.Background()

	_, _, err := store.Begin(ctx, "k1")
	require.NoError(t, err)
	require.NoError(t, store.Abort(ctx, "k1"))

	state, _, err := store.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, Fresh, state)
}

func TestMemoryStoreExpiry(t *testing.T) {
	start := time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)
	now := start
	store := NewMemoryStore(time.Minute, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, _, _ = store.Begin(ctx, "k1")
	require.NoError(t, store.Complete(ctx, "k1", Response{Status: http.StatusCreated}))

	now = start.Add(2 * time.Minute)
	state, _, err := store.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, Fresh, state, "expired entries are forgotten")

	assert.Equal(t, 1, store.Sweep(start.Add(10*time.Minute)))
}

func TestMemoryStoreReservationExpiresBeforeResponses(t *testing.T) {
	start := time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)
	now := start
	store := NewMemoryStore(24*time.Hour, 30*time.Second)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	state, _, err := store.Begin(ctx, "crashed")
	require.NoError(t, err)
	require.Equal(t, Fresh, state)

	now = start.Add(10 * time.Second)
	state, _, err = store.Begin(ctx, "crashed")
	require.NoError(t, err)
	assert.Equal(t, InFlight, state)

	now = start.Add(31 * time.Second)
	state, _, err = store.Begin(ctx, "crashed")
	require.NoError(t, err)
	assert.Equal(t, Fresh, state, "an abandoned reservation frees the key")

	require.NoError(t, store.Complete(ctx, "crashed", Response{Status: http.StatusCreated}))
	now = start.Add(time.Hour)
	state, _, err = store.Begin(ctx, "crashed")
	require.NoError(t, err)
	assert.Equal(t, Replay, state, "completed responses keep the long ttl")
}

func TestPendingTTLDefault(t *testing.T) {
	assert.Equal(t, DefaultPendingTTL, NewMemoryStore(time.Hour, 0).pendingTTL)
	assert.Equal(t, time.Second, NewMemoryStore(time.Hour, time.Second).pendingTTL)
}
