package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAcquireReleaseRoundTrips(t *testing.T) {
	l := newLimiter(2)
	require.NoError(t, l.acquire(context.Background()))
	require.NoError(t, l.acquire(context.Background()))
	l.release()
	require.NoError(t, l.acquire(context.Background()))
}

func TestLimiterAcquireBlocksAtCapacity(t *testing.T) {
	l := newLimiter(1)
	require.NoError(t, l.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiterZeroCapacityDefaults(t *testing.T) {
	l := newLimiter(0)
	assert.Equal(t, 32, cap(l.slots))
}
