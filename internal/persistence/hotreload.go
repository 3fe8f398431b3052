package persistence

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arbcore/triarb/internal/config"
)

// ReloadHandler reacts to a change notification by re-reading whatever
// catalog changed and swapping it in; the hot-reload subscriber itself
// carries no opinion about pool or path catalog shape.
type ReloadHandler func(ctx context.Context)

// HotReload watches Redis pub/sub channels for pool and path catalog change
// notifications, so an operator can push an updated catalog without
// restarting the process.
type HotReload struct {
	rdb        *redis.Client
	poolsKey   string
	pathsKey   string
	log        *zap.Logger
	onPools    ReloadHandler
	onPaths    ReloadHandler
}

// NewHotReload constructs a subscriber against cfg.Persistence.RedisAddr,
// using the configured channel names. onPools/onPaths may be nil if the
// caller has nothing to reload for that channel.
func NewHotReload(cfg *config.Config, log *zap.Logger, onPools, onPaths ReloadHandler) *HotReload {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Persistence.RedisAddr})
	return &HotReload{
		rdb:      rdb,
		poolsKey: cfg.Persistence.PoolsKey,
		pathsKey: cfg.Persistence.PathsKey,
		log:      log,
		onPools:  onPools,
		onPaths:  onPaths,
	}
}

// Run subscribes to both channels and dispatches to the configured handlers
// until ctx is cancelled. It never returns an error on a dropped connection;
// go-redis's PubSub reconnects transparently on the next receive.
func (h *HotReload) Run(ctx context.Context) error {
	sub := h.rdb.Subscribe(ctx, h.poolsKey, h.pathsKey)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.dispatch(ctx, msg.Channel)
		}
	}
}

func (h *HotReload) dispatch(ctx context.Context, channel string) {
	switch channel {
	case h.poolsKey:
		if h.onPools != nil {
			h.log.Info("persistence: pool catalog change notification received")
			h.onPools(ctx)
		}
	case h.pathsKey:
		if h.onPaths != nil {
			h.log.Info("persistence: path catalog change notification received")
			h.onPaths(ctx)
		}
	default:
		h.log.Warn("persistence: change notification on unknown channel", zap.String("channel", channel))
	}
}

// Close releases the underlying Redis client.
func (h *HotReload) Close() error { return h.rdb.Close() }
