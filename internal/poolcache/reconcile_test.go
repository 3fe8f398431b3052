package poolcache

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arbcore/triarb/internal/config"
	"github.com/arbcore/triarb/internal/multicall"
	"github.com/arbcore/triarb/internal/types"
)

// fakePoolBatch implements poolBatchFetcher directly with canned typed
// results, so these tests exercise Bootstrap/RefreshTicks/reconcileOnce's
// own folding logic without needing to round-trip ABI-encoded bytes; that
// packing/unpacking is multicall's own responsibility and is covered by
// multicall's tests.
type fakePoolBatch struct {
	inits    []multicall.PoolInit
	initsErr error

	ticks    []multicall.TickState
	ticksErr error

	priceStates []multicall.PriceState
	priceErr    error
}

func (f *fakePoolBatch) FetchInit(ctx context.Context, addrs []common.Address) ([]multicall.PoolInit, error) {
	if f.initsErr != nil {
		return nil, f.initsErr
	}
	return f.inits, nil
}

func (f *fakePoolBatch) FetchTicks(ctx context.Context, addr common.Address, ticks []int32) ([]multicall.TickState, error) {
	if f.ticksErr != nil {
		return nil, f.ticksErr
	}
	return f.ticks, nil
}

func (f *fakePoolBatch) FetchPriceState(ctx context.Context, addrs []common.Address) ([]multicall.PriceState, error) {
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	return f.priceStates, nil
}

func newReconcileTestCache(mc poolBatchFetcher) *Cache {
	return &Cache{cfg: &config.Config{}, mc: mc, log: zap.NewNop()}
}

func TestBootstrapSeedsPoolState(t *testing.T) {
	token0 := common.HexToAddress("0xaaaa000000000000000000000000000000aaaa")
	token1 := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")
	c := newReconcileTestCache(&fakePoolBatch{inits: []multicall.PoolInit{{
		Address:      poolAddr,
		Token0:       token0,
		Token1:       token1,
		Fee:          3000,
		TickSpacing:  60,
		SqrtPriceX96: big.NewInt(1 << 60),
		CurrentTick:  -120,
		Liquidity:    big.NewInt(9_000_000),
	}}})

	require.NoError(t, c.Bootstrap(context.Background(), []common.Address{poolAddr}))

	state := c.Get(poolAddr)
	require.NotNil(t, state)
	assert.Equal(t, token0, state.Token0)
	assert.Equal(t, token1, state.Token1)
	assert.Equal(t, uint32(3000), state.Fee)
	assert.Equal(t, int32(60), state.TickSpacing)
	assert.Equal(t, big.NewInt(1<<60), state.SqrtPriceX96)
	assert.Equal(t, int32(-120), state.CurrentTick)
	assert.Equal(t, big.NewInt(9_000_000), state.Liquidity)
	assert.False(t, state.Degraded)
}

func TestBootstrapTracksDegradedOnCallFailure(t *testing.T) {
	c := newReconcileTestCache(&fakePoolBatch{inits: []multicall.PoolInit{{
		Address: poolAddr,
		Err:     fmt.Errorf("call failed"),
	}}})

	require.NoError(t, c.Bootstrap(context.Background(), []common.Address{poolAddr}))
	state := c.Get(poolAddr)
	require.NotNil(t, state)
	assert.True(t, state.Degraded)
}

func TestBootstrapPropagatesAggregateError(t *testing.T) {
	c := newReconcileTestCache(&fakePoolBatch{initsErr: assertErr("rpc down")})

	err := c.Bootstrap(context.Background(), []common.Address{poolAddr})
	assert.Error(t, err)
}

func TestRefreshTicksUpdatesInitializedAndDropsUninitialized(t *testing.T) {
	c := newReconcileTestCache(&fakePoolBatch{ticks: []multicall.TickState{
		{Tick: 100, Ok: true, Initialized: true, LiquidityGross: big.NewInt(500), LiquidityNet: big.NewInt(-200)},
		{Tick: 200, Ok: true, Initialized: false},
	}})
	c.pools.Store(poolAddr, &types.PoolState{
		Address: poolAddr,
		TickMap: map[int32]types.TickInfo{200: {LiquidityGross: big.NewInt(1)}},
	})

	require.NoError(t, c.RefreshTicks(context.Background(), poolAddr, []int32{100, 200}))

	state := c.Get(poolAddr)
	info, ok := state.TickMap[100]
	require.True(t, ok)
	assert.Equal(t, big.NewInt(500), info.LiquidityGross)
	assert.Equal(t, big.NewInt(-200), info.LiquidityNet)
	_, stillThere := state.TickMap[200]
	assert.False(t, stillThere, "uninitialized tick should be dropped from the map")
}

func TestRefreshTicksSkipsFailedCalls(t *testing.T) {
	c := newReconcileTestCache(&fakePoolBatch{ticks: []multicall.TickState{
		{Tick: 100, Ok: false},
	}})
	c.pools.Store(poolAddr, &types.PoolState{
		Address: poolAddr,
		TickMap: map[int32]types.TickInfo{100: {LiquidityGross: big.NewInt(1)}},
	})

	require.NoError(t, c.RefreshTicks(context.Background(), poolAddr, []int32{100}))

	state := c.Get(poolAddr)
	info, ok := state.TickMap[100]
	require.True(t, ok, "a failed call must leave the cached tick untouched")
	assert.Equal(t, big.NewInt(1), info.LiquidityGross)
}

func TestRefreshTicksNoopOnEmptyInput(t *testing.T) {
	c := newReconcileTestCache(&fakePoolBatch{})
	assert.NoError(t, c.RefreshTicks(context.Background(), poolAddr, nil))
}

func TestRefreshTicksUntrackedPoolErrors(t *testing.T) {
	c := newReconcileTestCache(&fakePoolBatch{ticks: []multicall.TickState{
		{Tick: 1, Ok: true, Initialized: true, LiquidityGross: big.NewInt(0), LiquidityNet: big.NewInt(0)},
	}})
	err := c.RefreshTicks(context.Background(), poolAddr, []int32{1})
	assert.Error(t, err)
}

func TestReconcileOnceRefreshesPriceAndClearsDegraded(t *testing.T) {
	c := newReconcileTestCache(&fakePoolBatch{priceStates: []multicall.PriceState{{
		Address:      poolAddr,
		Ok:           true,
		SqrtPriceX96: big.NewInt(42),
		CurrentTick:  7,
		Liquidity:    big.NewInt(555),
	}}})
	c.pools.Store(poolAddr, &types.PoolState{Address: poolAddr, Degraded: true, TickMap: map[int32]types.TickInfo{}})

	before := c.reconciliationGeneration()
	c.reconcileOnce(context.Background())

	state := c.Get(poolAddr)
	assert.Equal(t, big.NewInt(42), state.SqrtPriceX96)
	assert.Equal(t, int32(7), state.CurrentTick)
	assert.Equal(t, big.NewInt(555), state.Liquidity)
	assert.False(t, state.Degraded)
	assert.Equal(t, before+1, c.reconciliationGeneration())
}

func TestReconcileOnceMarksDegradedOnCallFailure(t *testing.T) {
	c := newReconcileTestCache(&fakePoolBatch{priceStates: []multicall.PriceState{{
		Address: poolAddr,
		Ok:      false,
		Err:     fmt.Errorf("reconciliation call failed"),
	}}})
	c.pools.Store(poolAddr, &types.PoolState{Address: poolAddr, TickMap: map[int32]types.TickInfo{}})

	c.reconcileOnce(context.Background())
	assert.True(t, c.Get(poolAddr).Degraded)
}

func TestReconcileOnceSkipsWhenNothingTracked(t *testing.T) {
	c := newReconcileTestCache(&fakePoolBatch{})
	c.reconcileOnce(context.Background()) // must not panic on an empty cache
}

func TestReconcileOncePropagatesAggregateFailureAsMetricOnly(t *testing.T) {
	c := newReconcileTestCache(&fakePoolBatch{priceErr: assertErr("rpc down")})
	c.pools.Store(poolAddr, &types.PoolState{Address: poolAddr, TickMap: map[int32]types.TickInfo{}})

	assert.NotPanics(t, func() {
		c.reconcileOnce(context.Background())
	})
	assert.False(t, c.Get(poolAddr).Degraded, "an aggregate-level failure logs and returns without touching pool state")
}
