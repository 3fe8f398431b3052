package poolcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/arbcore/triarb/internal/metrics"
	"github.com/arbcore/triarb/internal/types"
)

// Bootstrap fetches token0/token1/fee/tickSpacing/slot0/liquidity for every
// address in addrs in one multicall batch and seeds the cache. It fetches no
// tick data: each seeded pool starts with an empty tick map, which only
// RefreshTicks fills in.
func (c *Cache) Bootstrap(ctx context.Context, addrs []common.Address) error {
	inits, err := c.mc.FetchInit(ctx, addrs)
	if err != nil {
		return fmt.Errorf("poolcache: bootstrap fetch: %w", err)
	}
	for _, init := range inits {
		if init.Err != nil {
			c.log.Warn("poolcache: bootstrap decode failed", zap.String("pool", init.Address.Hex()), zap.Error(init.Err))
			c.Track(init.Address)
			continue
		}
		c.pools.Store(init.Address, &types.PoolState{
			Address:      init.Address,
			Token0:       init.Token0,
			Token1:       init.Token1,
			Fee:          init.Fee,
			TickSpacing:  init.TickSpacing,
			SqrtPriceX96: init.SqrtPriceX96,
			CurrentTick:  init.CurrentTick,
			Liquidity:    init.Liquidity,
			TickMap:      make(map[int32]types.TickInfo),
			Degraded:     false,
		})
	}
	return nil
}

// RefreshTicks re-fetches the given ticks for pool addr, storing initialized
// ticks and dropping uninitialized ones. The reconciliation pass does not
// call it; it refreshes only slot0 and liquidity.
func (c *Cache) RefreshTicks(ctx context.Context, addr common.Address, ticks []int32) error {
	if len(ticks) == 0 {
		return nil
	}
	states, err := c.mc.FetchTicks(ctx, addr, ticks)
	if err != nil {
		return fmt.Errorf("poolcache: ticks fetch: %w", err)
	}

	v, ok := c.pools.Load(addr)
	if !ok {
		return fmt.Errorf("poolcache: refresh ticks for untracked pool %s", addr)
	}
	cur := v.(*types.PoolState)
	next := cur.Clone()
	for _, ts := range states {
		if !ts.Ok {
			continue
		}
		if !ts.Initialized {
			delete(next.TickMap, ts.Tick)
			continue
		}
		next.TickMap[ts.Tick] = types.TickInfo{LiquidityNet: ts.LiquidityNet, LiquidityGross: ts.LiquidityGross}
	}
	c.pools.Store(addr, next)
	return nil
}

// RunReconciliationLoop periodically re-hydrates slot0/liquidity for every
// tracked pool from chain state, healing any drift a missed or
// out-of-order log left behind. It stops when ctx is cancelled.
func (c *Cache) RunReconciliationLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reconcileOnce(ctx)
		}
	}
}

func (c *Cache) reconcileOnce(ctx context.Context) {
	addrs := c.TrackedAddresses()
	if len(addrs) == 0 {
		return
	}
	states, err := c.mc.FetchPriceState(ctx, addrs)
	if err != nil {
		c.log.Warn("poolcache: reconciliation aggregate failed", zap.Error(err))
		metrics.ReconciliationFailures.Inc()
		return
	}
	for _, s := range states {
		if !s.Ok {
			c.MarkDegraded(s.Address, s.Err)
			continue
		}
		v, ok := c.pools.Load(s.Address)
		if !ok {
			continue
		}
		cur := v.(*types.PoolState)
		next := cur.Clone()
		next.SqrtPriceX96 = s.SqrtPriceX96
		next.CurrentTick = s.CurrentTick
		next.Liquidity = s.Liquidity
		next.Degraded = false
		c.pools.Store(s.Address, next)
	}
	atomic.AddInt64(&c.reconcileGen, 1)
	metrics.PoolCacheReconciliations.Inc()
}
