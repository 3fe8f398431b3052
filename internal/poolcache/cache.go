// Package poolcache is the Pool State Cache of spec section 4.1: an
// address-keyed, copy-on-write store of pool snapshots kept current by
// applying Swap/Mint/Burn/Flash/SetFeeProtocol logs, with periodic
// multicall-based reconciliation to heal any state a missed log left
// inconsistent.
package poolcache

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/arbcore/triarb/internal/config"
	"github.com/arbcore/triarb/internal/gateway"
	"github.com/arbcore/triarb/internal/metrics"
	"github.com/arbcore/triarb/internal/multicall"
	"github.com/arbcore/triarb/internal/types"
)

// poolBatchFetcher is the multicall collaborator the cache needs: typed
// slot0/liquidity/ticks batch fetches keyed to this domain, rather than the
// generic Call{Target,CallData}/Result shape multicall.IClient exposes.
// Local interface so tests can inject a fake without matching ABI-encoded
// bytes; satisfied by *multicall.PoolBatchClient.
type poolBatchFetcher interface {
	FetchInit(ctx context.Context, addrs []common.Address) ([]multicall.PoolInit, error)
	FetchTicks(ctx context.Context, addr common.Address, ticks []int32) ([]multicall.TickState, error)
	FetchPriceState(ctx context.Context, addrs []common.Address) ([]multicall.PriceState, error)
}

// Cache holds the current snapshot for every tracked pool. Readers get a
// *types.PoolState pointer that is never mutated in place; updates build a
// new snapshot and swap the map entry, so a reader mid-simulation never
// observes a torn state.
type Cache struct {
	log *zap.Logger
	mc  poolBatchFetcher
	cfg *config.Config

	pools sync.Map // common.Address -> *types.PoolState

	reconcileGen int64
}

// New constructs an empty cache; pools are added via Bootstrap or by the
// first event/reconciliation pass that observes them. mc is the raw
// Multicall2 client; it's wrapped in a typed pool-batch adapter internally
// so the rest of this package never packs/unpacks generic calldata itself.
func New(cfg *config.Config, mc multicall.IClient, log *zap.Logger) *Cache {
	return &Cache{cfg: cfg, mc: multicall.NewPoolBatchClient(mc), log: log}
}

// Get returns the current snapshot for addr, or nil if untracked.
func (c *Cache) Get(addr common.Address) *types.PoolState {
	v, ok := c.pools.Load(addr)
	if !ok {
		return nil
	}
	return v.(*types.PoolState)
}

// Track registers addr as a pool the cache should hold state for, seeding
// an empty degraded record until the first reconciliation fills it in.
func (c *Cache) Track(addr common.Address) {
	if _, exists := c.pools.Load(addr); exists {
		return
	}
	c.pools.Store(addr, &types.PoolState{Address: addr, Degraded: true})
}

// TrackedAddresses returns every pool address the cache currently holds.
func (c *Cache) TrackedAddresses() []common.Address {
	var out []common.Address
	c.pools.Range(func(k, _ interface{}) bool {
		out = append(out, k.(common.Address))
		return true
	})
	return out
}

// eventKey identifies one applied event for dedup purposes.
type eventKey struct {
	block uint64
	index uint
	tx    common.Hash
}

func keyFromLog(l gethtypes.Log) eventKey {
	return eventKey{block: l.BlockNumber, index: l.Index, tx: l.TxHash}
}

// decodeSignedTopic interprets an indexed int24 topic word as the
// two's-complement value the EVM sign-extends it from, so negative ticks
// (roughly half the usable range) decode correctly instead of as huge
// unsigned numbers.
func decodeSignedTopic(h common.Hash) int32 {
	v := new(big.Int).SetBytes(h.Bytes())
	if v.Bit(255) == 1 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return int32(v.Int64())
}

// alreadyApplied reports whether this log's (block, index, tx) tuple is not
// newer than what the current snapshot already reflects, guarding against
// reprocessing the same log twice (e.g. after a gap-fill backfill overlaps
// the live subscription).
func alreadyApplied(p *types.PoolState, k eventKey) bool {
	if p.LastBlock == 0 && p.LastLogIndex == 0 && p.LastTxHash == (common.Hash{}) {
		return false
	}
	if k.block != p.LastBlock {
		return k.block < p.LastBlock
	}
	return k.index <= p.LastLogIndex
}

// ApplyLog dispatches a raw log to the right decoder by topic0 and folds it
// into the pool's snapshot, publishing a new *types.PoolState atomically.
func (c *Cache) ApplyLog(l gethtypes.Log) error {
	if len(l.Topics) == 0 {
		return nil
	}
	switch l.Topics[0] {
	case gateway.TopicSwap:
		return c.applySwap(l)
	case gateway.TopicMint:
		return c.applyMint(l)
	case gateway.TopicBurn:
		return c.applyBurn(l)
	case gateway.TopicFlash, gateway.TopicSetFeeProtocol:
		// Neither changes price/liquidity/ticks; nothing to fold in.
		return nil
	default:
		return nil
	}
}

func (c *Cache) mutate(addr common.Address, k eventKey, fn func(next *types.PoolState)) error {
	v, ok := c.pools.Load(addr)
	if !ok {
		return fmt.Errorf("poolcache: log for untracked pool %s", addr)
	}
	cur := v.(*types.PoolState)
	if alreadyApplied(cur, k) {
		return nil
	}
	next := cur.Clone()
	fn(next)
	next.LastBlock = k.block
	next.LastLogIndex = k.index
	next.LastTxHash = k.tx
	next.Degraded = false
	c.pools.Store(addr, next)
	return nil
}

type swapEventData struct {
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         *big.Int
}

func (c *Cache) applySwap(l gethtypes.Log) error {
	var ev swapEventData
	if err := swapEventABI.UnpackIntoInterface(&ev, "Swap", l.Data); err != nil {
		return fmt.Errorf("poolcache: unpack Swap: %w", err)
	}
	k := keyFromLog(l)
	return c.mutate(l.Address, k, func(next *types.PoolState) {
		next.SqrtPriceX96 = new(big.Int).Set(ev.SqrtPriceX96)
		next.Liquidity = new(big.Int).Set(ev.Liquidity)
		next.CurrentTick = int32(ev.Tick.Int64())
	})
}

// SwapNotional decodes the input token and amount of a Swap log against
// the pool's own token0/token1, for the risk gate's notional floor check.
// amount0/amount1 are signed from the pool's perspective: a positive value
// is the token that flowed in, i.e. the swap's input side.
func (c *Cache) SwapNotional(l gethtypes.Log) (tokenIn common.Address, amountIn *big.Int, err error) {
	if len(l.Topics) == 0 || l.Topics[0] != gateway.TopicSwap {
		return common.Address{}, nil, fmt.Errorf("poolcache: log is not a Swap event")
	}
	var ev swapEventData
	if err := swapEventABI.UnpackIntoInterface(&ev, "Swap", l.Data); err != nil {
		return common.Address{}, nil, fmt.Errorf("poolcache: unpack Swap: %w", err)
	}
	pool := c.Get(l.Address)
	if pool == nil {
		return common.Address{}, nil, fmt.Errorf("poolcache: swap notional for untracked pool %s", l.Address)
	}
	if ev.Amount0.Sign() > 0 {
		return pool.Token0, new(big.Int).Set(ev.Amount0), nil
	}
	return pool.Token1, new(big.Int).Set(ev.Amount1), nil
}

type mintBurnEventData struct {
	Amount  *big.Int
	Amount0 *big.Int
	Amount1 *big.Int
}

func (c *Cache) applyMint(l gethtypes.Log) error {
	if len(l.Topics) < 4 {
		return fmt.Errorf("poolcache: Mint log missing indexed tick topics")
	}
	tickLower := decodeSignedTopic(l.Topics[2])
	tickUpper := decodeSignedTopic(l.Topics[3])
	var ev mintBurnEventData
	if err := mintEventABI.UnpackIntoInterface(&ev, "Mint", l.Data); err != nil {
		return fmt.Errorf("poolcache: unpack Mint: %w", err)
	}
	k := keyFromLog(l)
	return c.mutate(l.Address, k, func(next *types.PoolState) {
		adjustTickLiquidity(next, tickLower, tickUpper, ev.Amount, false)
	})
}

func (c *Cache) applyBurn(l gethtypes.Log) error {
	if len(l.Topics) < 4 {
		return fmt.Errorf("poolcache: Burn log missing indexed tick topics")
	}
	tickLower := decodeSignedTopic(l.Topics[2])
	tickUpper := decodeSignedTopic(l.Topics[3])
	var ev mintBurnEventData
	if err := burnEventABI.UnpackIntoInterface(&ev, "Burn", l.Data); err != nil {
		return fmt.Errorf("poolcache: unpack Burn: %w", err)
	}
	k := keyFromLog(l)
	return c.mutate(l.Address, k, func(next *types.PoolState) {
		adjustTickLiquidity(next, tickLower, tickUpper, ev.Amount, true)
	})
}

// adjustTickLiquidity mirrors UniswapV3Pool._modifyPosition/updateTick:
// gross always grows on mint and shrinks on burn at both boundaries; net
// grows at the lower boundary and shrinks at the upper boundary on mint,
// and the reverse on burn.
func adjustTickLiquidity(p *types.PoolState, tickLower, tickUpper int32, amount *big.Int, burn bool) {
	if p.TickMap == nil {
		p.TickMap = make(map[int32]types.TickInfo)
	}
	sign := int64(1)
	if burn {
		sign = -1
	}
	lower := p.TickMap[tickLower]
	lower.LiquidityGross = addOrZero(lower.LiquidityGross, amount, sign)
	lower.LiquidityNet = addOrZero(lower.LiquidityNet, amount, sign)
	p.TickMap[tickLower] = lower

	upper := p.TickMap[tickUpper]
	upper.LiquidityGross = addOrZero(upper.LiquidityGross, amount, sign)
	upper.LiquidityNet = addOrZero(upper.LiquidityNet, amount, -sign)
	p.TickMap[tickUpper] = upper
}

func addOrZero(cur, delta *big.Int, sign int64) *big.Int {
	if cur == nil {
		cur = new(big.Int)
	}
	scaled := new(big.Int).Mul(delta, big.NewInt(sign))
	return new(big.Int).Add(cur, scaled)
}

var (
	swapEventABI abi.ABI
	mintEventABI abi.ABI
	burnEventABI abi.ABI
)

func init() {
	swapEventABI = mustEventABI(`[{"anonymous":false,"inputs":[
		{"indexed":true,"name":"sender","type":"address"},
		{"indexed":true,"name":"recipient","type":"address"},
		{"indexed":false,"name":"amount0","type":"int256"},
		{"indexed":false,"name":"amount1","type":"int256"},
		{"indexed":false,"name":"sqrtPriceX96","type":"uint160"},
		{"indexed":false,"name":"liquidity","type":"uint128"},
		{"indexed":false,"name":"tick","type":"int24"}],
		"name":"Swap","type":"event"}]`)

	mintEventABI = mustEventABI(`[{"anonymous":false,"inputs":[
		{"indexed":false,"name":"sender","type":"address"},
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":true,"name":"tickLower","type":"int24"},
		{"indexed":true,"name":"tickUpper","type":"int24"},
		{"indexed":false,"name":"amount","type":"uint128"},
		{"indexed":false,"name":"amount0","type":"uint256"},
		{"indexed":false,"name":"amount1","type":"uint256"}],
		"name":"Mint","type":"event"}]`)

	burnEventABI = mustEventABI(`[{"anonymous":false,"inputs":[
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":true,"name":"tickLower","type":"int24"},
		{"indexed":true,"name":"tickUpper","type":"int24"},
		{"indexed":false,"name":"amount","type":"uint128"},
		{"indexed":false,"name":"amount0","type":"uint256"},
		{"indexed":false,"name":"amount1","type":"uint256"}],
		"name":"Burn","type":"event"}]`)
}

func mustEventABI(json string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(json))
	if err != nil {
		panic("poolcache: invalid embedded event ABI: " + err.Error())
	}
	return parsed
}

// MarkDegraded flags addr as stale, forcing the evaluator to skip it until
// reconciliation refreshes the snapshot from chain state.
func (c *Cache) MarkDegraded(addr common.Address, reason error) {
	v, ok := c.pools.Load(addr)
	if !ok {
		return
	}
	cur := v.(*types.PoolState)
	next := cur.Clone()
	next.Degraded = true
	c.pools.Store(addr, next)
	c.log.Warn("poolcache: pool marked degraded", zap.String("pool", addr.Hex()), zap.Error(reason))
	metrics.PoolsDegraded.Inc()
}

// reconciliationGeneration is exposed for tests that want to assert a
// reconcile pass actually ran.
func (c *Cache) reconciliationGeneration() int64 {
	return atomic.LoadInt64(&c.reconcileGen)
}
