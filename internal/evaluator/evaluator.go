// Package evaluator implements the two-stage Profit Evaluator of spec
// section 4.4: a cheap local simulation prunes candidates, and only a
// surviving candidate pays for an authoritative on-chain quote before an
// Opportunity is emitted.
package evaluator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arbcore/triarb/internal/config"
	"github.com/arbcore/triarb/internal/flashloan"
	"github.com/arbcore/triarb/internal/metrics"
	"github.com/arbcore/triarb/internal/oppbus"
	"github.com/arbcore/triarb/internal/risk"
	"github.com/arbcore/triarb/internal/sizer"
	"github.com/arbcore/triarb/internal/swapmath"
	"github.com/arbcore/triarb/internal/types"
)

// QuoterClient is the authoritative-quote transport; satisfied by
// gateway.Gateway's Call/CallWithDeadline methods.
type QuoterClient interface {
	CallWithDeadline(ctx context.Context, to common.Address, data []byte, blockTag *big.Int, deadline time.Duration) ([]byte, error)
}

// PoolStateProvider is the read side of the pool cache the evaluator
// needs; satisfied by poolcache.Cache.
type PoolStateProvider interface {
	Get(addr common.Address) *types.PoolState
}

// USDConverter turns a raw token_a amount into USD, e.g. via a price feed
// or an on-chain reference pool; kept abstract since spec.md never
// specifies which.
type USDConverter interface {
	ToUSD(token common.Address, amountRaw *big.Int) (decimal.Decimal, error)
}

// GasEstimator turns a gas estimate into a cost denominated in token_a's
// raw units, so it can be netted against gross output before the USD
// conversion.
type GasEstimator interface {
	GasCostInToken(ctx context.Context, gasEstimate *big.Int, token common.Address) (*big.Int, error)
}

// Evaluator ties the gate, local simulation, sizer and authoritative quote
// together for one trigger event at a time.
type Evaluator struct {
	cfg        *config.Config
	cache      PoolStateProvider
	risk       *risk.Engine
	quoter     QuoterClient
	quoterAddr common.Address
	usd        USDConverter
	gas        GasEstimator
	bus        *oppbus.Bus
	log        *zap.Logger
}

// New constructs an Evaluator.
func New(cfg *config.Config, cache PoolStateProvider, riskEngine *risk.Engine, quoter QuoterClient, usd USDConverter, gas GasEstimator, bus *oppbus.Bus, log *zap.Logger) *Evaluator {
	return &Evaluator{
		cfg:        cfg,
		cache:      cache,
		risk:       riskEngine,
		quoter:     quoter,
		quoterAddr: common.HexToAddress(cfg.Contracts.QuoterV2),
		usd:        usd,
		gas:        gas,
		bus:        bus,
		log:        log,
	}
}

// Evaluate runs the full pipeline for one candidate path, publishing an
// Opportunity to the bus if it clears every stage. It never returns an
// error to the caller; failures are logged and counted, since one bad
// candidate must never stall the scan of the rest. notionalUSD is the USD
// size of the swap that triggered this re-evaluation, or risk.UnknownNotional
// if the trigger wasn't a swap (a Mint/Burn log, say).
func (e *Evaluator) Evaluate(ctx context.Context, path types.TriangularPath, headBlock uint64, notionalUSD decimal.Decimal) {
	pools := []*types.PoolState{
		e.cache.Get(path.Pool1),
		e.cache.Get(path.Pool2),
		e.cache.Get(path.Pool3),
	}
	if err := e.risk.Gate(path, pools, notionalUSD); err != nil {
		metrics.EvaluatorGateRejections.WithLabelValues("gate_failed").Inc()
		e.log.Debug("evaluator: gate rejected candidate", zap.Uint64("path_id", path.PathID), zap.Error(err))
		return
	}

	lo := big.NewInt(1)
	hi := upperBracket(pools[0], path.TokenA)
	if hi.Sign() <= 0 {
		metrics.EvaluatorGateRejections.WithLabelValues("empty_bracket").Inc()
		return
	}

	bestX, bestLocalNet := sizerSearch(lo, hi, func(x *big.Int) *big.Int {
		out, err := simulateFn(pools, path, x)
		if err != nil {
			return big.NewInt(-1)
		}
		return new(big.Int).Sub(out, x)
	})
	if bestLocalNet.Sign() <= 0 {
		metrics.EvaluatorGateRejections.WithLabelValues("unprofitable_locally").Inc()
		return
	}

	quote, err := e.authoritativeQuote(ctx, path, bestX)
	if err != nil {
		metrics.QuoterErrors.Inc()
		e.log.Debug("evaluator: authoritative quote failed", zap.Error(err), zap.Uint64("path_id", path.PathID))
		return
	}

	gasCost, err := e.gas.GasCostInToken(ctx, quote.GasEstimate, path.TokenA)
	if err != nil {
		e.log.Warn("evaluator: gas cost conversion failed", zap.Error(err))
		return
	}

	// The flash pool is the path's first hop (see executor.build), so its
	// own fee is what the settlement contract repays on top of amountIn.
	flashFee := flashLoanFee(pools[0], bestX, types.FlashLoanProvider(e.cfg.Risk.FlashLoanProvider))

	net := new(big.Int).Sub(quote.AmountOut, bestX)
	net.Sub(net, gasCost)
	net.Sub(net, flashFee)
	if net.Sign() <= 0 {
		metrics.EvaluatorGateRejections.WithLabelValues("unprofitable_after_gas").Inc()
		return
	}

	netUSD, err := e.usd.ToUSD(path.TokenA, net)
	if err != nil {
		e.log.Warn("evaluator: usd conversion failed", zap.Error(err))
		return
	}
	if !e.risk.MeetsProfitThreshold(netUSD) {
		metrics.EvaluatorGateRejections.WithLabelValues("below_profit_threshold").Inc()
		return
	}

	opp := types.Opportunity{
		PathID:          path.PathID,
		InputToken:      path.TokenA,
		InputAmount:     bestX,
		EstGrossOut:     quote.AmountOut,
		EstGasWei:       gasCost,
		EstNetProfit:    net,
		DetectedAtBlock: headBlock,
		QuoteID:         fmt.Sprintf("%d-%d", path.PathID, headBlock),
	}
	e.bus.Publish(opp, path.Priority)
}

func sizerSearch(lo, hi *big.Int, obj func(*big.Int) *big.Int) (*big.Int, *big.Int) {
	return searchFn(lo, hi, obj)
}

// searchFn is a package-level indirection point so tests can substitute a
// deterministic search without dragging in the real golden-section search.
var searchFn = sizer.Search

// simulateFn is a package-level indirection point so tests can substitute a
// deterministic local simulation without depending on swapmath's curve math.
var simulateFn = simulateThreeHops

// simulateThreeHops chains SwapCurve.SimulateExactInput across the path's
// three pools, feeding each hop's output as the next hop's input.
func simulateThreeHops(pools []*types.PoolState, path types.TriangularPath, amountIn *big.Int) (*big.Int, error) {
	curve := swapmath.Get(swapmath.FamilyConcentratedLiquidity)
	hopTokenIn := [3]common.Address{path.TokenA, path.TokenB, path.TokenC}
	amount := amountIn
	for i, pool := range pools {
		if pool == nil {
			return nil, fmt.Errorf("missing pool state for hop %d", i+1)
		}
		res, err := curve.SimulateExactInput(pool, hopTokenIn[i], amount)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i+1, err)
		}
		amount = res.AmountOut
	}
	return amount, nil
}

// upperBracket derives a sizing search ceiling from the given pool's active
// liquidity (zero when the pool or its liquidity is unknown), which keeps the
// sizer from wasting iterations on inputs that would exhaust the pool
// outright.
func upperBracket(pool *types.PoolState, tokenA common.Address) *big.Int {
	if pool == nil || pool.Liquidity == nil {
		return big.NewInt(0)
	}
	// A conservative proxy: the active liquidity value itself, which for
	// concentrated pools is on the same order of magnitude as the
	// reserve actually available near the current tick.
	return new(big.Int).Set(pool.Liquidity)
}

// flashLoanFee computes the borrowing cost, in tokenA raw units, the
// settlement contract owes on top of amountIn. Uniswap V3's fee is the flash
// pool's own fee tier (hundredths of a basis point); every other provider
// charges a fixed bps rate off flashloan.FeeBps.
func flashLoanFee(flashPool *types.PoolState, amountIn *big.Int, provider types.FlashLoanProvider) *big.Int {
	bps := flashloan.FeeBps(provider)
	if bps < 0 {
		if flashPool == nil {
			return big.NewInt(0)
		}
		fee := new(big.Int).Mul(amountIn, big.NewInt(int64(flashPool.Fee)))
		return fee.Div(fee, big.NewInt(1_000_000))
	}
	fee := new(big.Int).Mul(amountIn, big.NewInt(int64(bps)))
	return fee.Div(fee, big.NewInt(10_000))
}

func (e *Evaluator) authoritativeQuote(ctx context.Context, path types.TriangularPath, amountIn *big.Int) (QuoteResult, error) {
	start := time.Now()
	data, err := PackQuoteExactInput(path, amountIn)
	if err != nil {
		return QuoteResult{}, err
	}
	raw, err := e.quoter.CallWithDeadline(ctx, e.quoterAddr, data, nil, 3*time.Second)
	metrics.QuoterLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return QuoteResult{}, fmt.Errorf("quoteExactInput call: %w", err)
	}
	return DecodeQuoteExactInput(raw)
}
