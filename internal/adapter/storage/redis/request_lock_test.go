package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLock_AcquireIsExclusive(t *testing.T) {
	_, client := newTestClient(t)
	first := NewRequestLock(client)
	second := NewRequestLock(client)
	ctx := context.Background()

	ok, err := first.Acquire(ctx, "lock:payout:w1:req-1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx, "lock:payout:w1:req-1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "a held lock cannot be taken by another instance")

	require.NoError(t, first.Release(ctx, "lock:payout:w1:req-1"))

	ok, err = second.Acquire(ctx, "lock:payout:w1:req-1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequestLock_ExpiresAfterTTL(t *testing.T) {
	s, client := newTestClient(t)
	lock := NewRequestLock(client)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	s.FastForward(2 * time.Second)

	ok, err = lock.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequestLock_ReleaseKeepsForeignLock(t *testing.T) {
	s, client := newTestClient(t)
	stale := NewRequestLock(client)
	current := NewRequestLock(client)
	ctx := context.Background()

	ok, err := stale.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	s.FastForward(2 * time.Second)
	ok, err = current.Acquire(ctx, "k", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// The stale holder's release must not drop the new holder's lock.
	require.NoError(t, stale.Release(ctx, "k"))
	assert.True(t, s.Exists("ledger:k"))
}

func TestRequestLock_ReleaseUnheldIsNoop(t *testing.T) {
	_, client := newTestClient(t)
	lock := NewRequestLock(client)
	assert.NoError(t, lock.Release(context.Background(), "never-acquired"))
}
