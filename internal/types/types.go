// Package types holds the data model shared across the arbitrage core:
// tokens, pools, triangular paths, opportunities and trade attempts.
package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Token is an immutable ERC-20 identity used only for scaling between
// display/USD space and raw integer amounts.
type Token struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// FlashLoanProvider identifies which venue funds the borrowed capital for an
// arbitrage attempt.
type FlashLoanProvider string

const (
	ProviderUniswapV3 FlashLoanProvider = "uniswap_v3"
	ProviderUniswapV4 FlashLoanProvider = "uniswap_v4"
	ProviderAave      FlashLoanProvider = "aave"
	ProviderBalancer  FlashLoanProvider = "balancer"
)

// TickInfo carries the two liquidity deltas recorded at an initialized tick
// boundary of a concentrated-liquidity pool.
type TickInfo struct {
	LiquidityNet   *big.Int
	LiquidityGross *big.Int
}

// PoolState is the immutable, copy-on-write snapshot of a concentrated
// liquidity pool. A new PoolState replaces the previous one atomically in
// the pool cache; existing readers keep the record they already hold.
type PoolState struct {
	Address     common.Address
	Token0      common.Address
	Token1      common.Address
	Fee         uint32 // hundredths of a basis point, e.g. 100 = 0.01%
	TickSpacing int32

	SqrtPriceX96 *big.Int
	CurrentTick  int32
	Liquidity    *big.Int

	// TickMap is keyed by tick index; only initialized ticks are present.
	TickMap map[int32]TickInfo

	// LastBlock/LastLogIndex/LastTxHash identify the most recent event
	// applied to this snapshot, used for event deduplication.
	LastBlock    uint64
	LastLogIndex uint
	LastTxHash   common.Hash

	// Degraded marks a pool whose state may be stale (missed logs, RPC
	// failure) until the next reconciliation pass heals it.
	Degraded bool
}

// Clone returns a deep-enough copy suitable for mutate-then-publish updates;
// the tick map is copied so the previous snapshot remains untouched.
func (p *PoolState) Clone() *PoolState {
	np := *p
	np.TickMap = make(map[int32]TickInfo, len(p.TickMap))
	for k, v := range p.TickMap {
		np.TickMap[k] = v
	}
	if p.SqrtPriceX96 != nil {
		np.SqrtPriceX96 = new(big.Int).Set(p.SqrtPriceX96)
	}
	if p.Liquidity != nil {
		np.Liquidity = new(big.Int).Set(p.Liquidity)
	}
	return &np
}

// HasToken reports whether the pool trades the given token.
func (p *PoolState) HasToken(tok common.Address) bool {
	return p.Token0 == tok || p.Token1 == tok
}

// OtherToken returns the pool's other token given one side of the pair.
func (p *PoolState) OtherToken(tok common.Address) common.Address {
	if p.Token0 == tok {
		return p.Token1
	}
	return p.Token0
}

// TriangularPath is immutable after configuration: a concrete three-hop
// cycle A -> B -> C -> A, each hop pinned to one pool.
type TriangularPath struct {
	PathID      uint64
	TriggerPool common.Address
	TokenA      common.Address
	TokenB      common.Address
	TokenC      common.Address
	Pool1       common.Address // A -> B
	Pool2       common.Address // B -> C
	Pool3       common.Address // C -> A
	Fee1        uint32
	Fee2        uint32
	Fee3        uint32
	Priority    int
	Enabled     bool
}

// Pools returns the three hop pool addresses in traversal order.
func (p TriangularPath) Pools() [3]common.Address {
	return [3]common.Address{p.Pool1, p.Pool2, p.Pool3}
}

// FeeSum returns the sum of the three hop fees, in the same hundredths of a
// basis point unit used by Fee1..Fee3.
func (p TriangularPath) FeeSum() uint32 {
	return p.Fee1 + p.Fee2 + p.Fee3
}

// SubmissionRoute selects how the executor delivers a signed transaction.
type SubmissionRoute string

const (
	RoutePublic  SubmissionRoute = "normal"
	RoutePrivate SubmissionRoute = "flashbots"
	RouteBoth    SubmissionRoute = "both"
)

// Opportunity is a transient record produced by the evaluator and consumed
// at most once by the executor.
type Opportunity struct {
	PathID          uint64
	InputToken      common.Address
	InputAmount     *big.Int
	EstGrossOut     *big.Int
	EstGasWei       *big.Int
	EstNetProfit    *big.Int
	DetectedAtBlock uint64
	QuoteID         string
}

// AttemptState is the executor's per-attempt state machine position.
type AttemptState string

const (
	StateQueued    AttemptState = "Queued"
	StateBuilding  AttemptState = "Building"
	StateSubmitted AttemptState = "Submitted"
	StateIncluded  AttemptState = "Included"
	StateReverted  AttemptState = "Reverted"
	StateDropped   AttemptState = "Dropped"
	StateTimeout   AttemptState = "Timeout"
	StateAbandoned AttemptState = "Abandoned"
)

// AbandonReason records why an attempt never reached submission.
type AbandonReason string

const (
	AbandonNone  AbandonReason = ""
	AbandonStale AbandonReason = "Stale"
)

// HopResult captures one leg of a settled or reverted arbitrage, decoded
// from ArbitrageExecuted or ArbitrageFailed_Detailed.
type HopResult struct {
	Hop       int
	AmountIn  *big.Int
	AmountOut *big.Int
}

// TradeAttempt tracks one execution of an Opportunity end to end.
type TradeAttempt struct {
	AttemptID       string
	OpportunityRef  Opportunity
	SubmissionRoute SubmissionRoute
	TxHashes        []common.Hash
	State           AttemptState
	AbandonReason   AbandonReason
	FinalProfitRaw  *big.Int
	HopTrace        []HopResult
	BlockNumber     uint64
	CreatedAt       time.Time
}
