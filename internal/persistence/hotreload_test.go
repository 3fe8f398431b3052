package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arbcore/triarb/internal/config"
)

func TestHotReloadDispatchesToMatchingHandler(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := &config.Config{}
	cfg.Persistence.RedisAddr = mr.Addr()
	cfg.Persistence.PoolsKey = "arbitrage_pools"
	cfg.Persistence.PathsKey = "arbitrage_pool_paths"

	poolsFired := make(chan struct{}, 1)
	pathsFired := make(chan struct{}, 1)
	hr := NewHotReload(cfg, zap.NewNop(),
		func(ctx context.Context) { poolsFired <- struct{}{} },
		func(ctx context.Context) { pathsFired <- struct{}{} },
	)
	defer hr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hr.Run(ctx)

	// Give the subscriber time to register before publishing.
	time.Sleep(50 * time.Millisecond)

	pub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer pub.Close()
	require.NoError(t, pub.Publish(ctx, "arbitrage_pool_paths", "changed").Err())

	select {
	case <-pathsFired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected path reload handler to fire")
	}

	select {
	case <-poolsFired:
		t.Fatal("pools handler should not fire for a paths notification")
	case <-time.After(100 * time.Millisecond):
	}
}
