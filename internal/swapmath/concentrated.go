package swapmath

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arbcore/triarb/internal/types"
)

// feePipsDenominator matches the fee unit used on Pool.Fee: hundredths of a
// basis point out of 1e6 (e.g. 3000 == 0.3%).
const feePipsDenominator = 1_000_000

// Concentrated implements SwapCurve for Uniswap-V3-style concentrated
// liquidity pools: swap-step integration across sqrtPriceX96/active
// liquidity, partitioning the input at every initialized tick crossed.
type Concentrated struct{}

var _ SwapCurve = Concentrated{}

// SimulateExactInput follows the concentrated-liquidity swap-step integral
// described in spec section 4.3: within a tick range output is computed
// from sqrtPriceX96/liquidity/fee, and crossing an initialized tick
// partitions amountIn at the boundary and updates active liquidity by the
// tick's liquidity_net in the direction of travel. A tie at the exact
// boundary is treated as crossed.
func (Concentrated) SimulateExactInput(pool *types.PoolState, tokenIn common.Address, amountIn *big.Int) (Result, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return Result{}, ErrPoolExhausted
	}
	if pool.SqrtPriceX96 == nil || pool.Liquidity == nil {
		return Result{}, ErrPoolExhausted
	}

	zeroForOne := tokenIn == pool.Token0
	ticks := sortedTicks(pool.TickMap, pool.CurrentTick, zeroForOne)

	sqrtPrice := new(big.Int).Set(pool.SqrtPriceX96)
	liquidity := new(big.Int).Set(pool.Liquidity)
	remaining := new(big.Int).Set(amountIn)
	amountOut := new(big.Int)
	feePaid := new(big.Int)
	crossed := 0

	for remaining.Sign() > 0 {
		var targetSqrt *big.Int
		var boundaryTick int32
		haveBoundary := false
		if len(ticks) > 0 {
			boundaryTick = ticks[0]
			targetSqrt = sqrtRatioAtTick(boundaryTick)
			haveBoundary = true
		}

		if liquidity.Sign() == 0 {
			if !haveBoundary {
				return Result{}, ErrPoolExhausted
			}
			// No liquidity active in this range: jump straight to the
			// next boundary without producing output.
			sqrtPrice = targetSqrt
			crossed++
			liquidity = crossTick(liquidity, pool.TickMap[boundaryTick], zeroForOne)
			ticks = ticks[1:]
			continue
		}

		stepIn, stepOut, stepFee, nextSqrt, reachedTarget := computeSwapStep(sqrtPrice, targetSqrt, liquidity, remaining, pool.Fee, zeroForOne)

		remaining.Sub(remaining, stepIn)
		amountOut.Add(amountOut, stepOut)
		feePaid.Add(feePaid, stepFee)
		sqrtPrice = nextSqrt

		if remaining.Sign() <= 0 {
			// Input exhausted exactly at (or before) the boundary; a
			// boundary hit is still treated as crossed per the tie-break
			// rule.
			if reachedTarget && haveBoundary {
				crossed++
				liquidity = crossTick(liquidity, pool.TickMap[boundaryTick], zeroForOne)
			}
			break
		}

		if !haveBoundary {
			// Ran out of initialized ticks before amountIn was filled.
			return Result{}, ErrPoolExhausted
		}

		crossed++
		liquidity = crossTick(liquidity, pool.TickMap[boundaryTick], zeroForOne)
		ticks = ticks[1:]
	}

	if amountOut.Sign() == 0 {
		return Result{}, ErrPoolExhausted
	}

	return Result{AmountOut: amountOut, CrossedTicks: crossed, FeePaid: feePaid}, nil
}

// sortedTicks returns the initialized tick indices strictly ahead of the
// pool's current tick, ordered in the direction of travel.
func sortedTicks(tickMap map[int32]types.TickInfo, currentTick int32, zeroForOne bool) []int32 {
	out := make([]int32, 0, len(tickMap))
	for t := range tickMap {
		if zeroForOne && t < currentTick {
			out = append(out, t)
		} else if !zeroForOne && t > currentTick {
			out = append(out, t)
		}
	}
	if zeroForOne {
		sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	}
	return out
}

// crossTick applies a tick's liquidity_net to the active liquidity,
// flipping sign depending on direction of travel (net is defined for the
// upward/token1-in direction).
func crossTick(liquidity *big.Int, tick types.TickInfo, zeroForOne bool) *big.Int {
	if tick.LiquidityNet == nil {
		return liquidity
	}
	delta := new(big.Int).Set(tick.LiquidityNet)
	if zeroForOne {
		delta.Neg(delta)
	}
	next := new(big.Int).Add(liquidity, delta)
	if next.Sign() < 0 {
		next.SetInt64(0)
	}
	return next
}

// computeSwapStep integrates one leg of the swap between the current price
// and the next tick boundary (or until amountRemaining is exhausted),
// mirroring Uniswap V3's SwapMath.computeSwapStep. Amounts are computed in
// 256-bit integer arithmetic; feePips is out of feePipsDenominator.
func computeSwapStep(sqrtPrice, sqrtTarget *big.Int, liquidity, amountRemaining *big.Int, feePips uint32, zeroForOne bool) (amtIn, amtOut, fee *big.Int, nextSqrt *big.Int, reachedTarget bool) {
	// amountRemaining net of the fee taken up front (exact-input convention).
	feeFactor := new(big.Int).Sub(big.NewInt(feePipsDenominator), big.NewInt(int64(feePips)))
	amountLessFee := new(big.Int).Mul(amountRemaining, feeFactor)
	amountLessFee.Div(amountLessFee, big.NewInt(feePipsDenominator))

	maxIn := maxAmountToTarget(sqrtPrice, sqrtTarget, liquidity, zeroForOne)

	if sqrtTarget == nil || amountLessFee.Cmp(maxIn) < 0 {
		// Does not reach the boundary: solve for the exact next price.
		nextSqrt = nextSqrtPriceFromInput(sqrtPrice, liquidity, amountLessFee, zeroForOne)
		amtIn = amountLessFee
		reachedTarget = false
	} else {
		nextSqrt = sqrtTarget
		amtIn = maxIn
		reachedTarget = true
	}

	amtOut = amountOutBetween(sqrtPrice, nextSqrt, liquidity, zeroForOne)

	// Fee is charged on the actual input consumed this step, grossed back up.
	fee = new(big.Int).Mul(amtIn, big.NewInt(int64(feePips)))
	fee.Div(fee, feeFactor)
	if fee.Sign() < 0 {
		fee.SetInt64(0)
	}

	totalIn := new(big.Int).Add(amtIn, fee)
	if totalIn.Cmp(amountRemaining) > 0 {
		totalIn.Set(amountRemaining)
	}
	return totalIn, amtOut, fee, nextSqrt, reachedTarget
}

// maxAmountToTarget returns the amount of tokenIn required to move the
// price all the way to sqrtTarget, or a very large sentinel if there is no
// target (no further initialized ticks).
func maxAmountToTarget(sqrtPrice, sqrtTarget *big.Int, liquidity *big.Int, zeroForOne bool) *big.Int {
	if sqrtTarget == nil {
		return new(big.Int).Lsh(big.NewInt(1), 255)
	}
	if zeroForOne {
		return amount0Delta(sqrtTarget, sqrtPrice, liquidity)
	}
	return amount1Delta(sqrtPrice, sqrtTarget, liquidity)
}

func amountOutBetween(sqrtStart, sqrtEnd *big.Int, liquidity *big.Int, zeroForOne bool) *big.Int {
	if zeroForOne {
		return amount1Delta(sqrtEnd, sqrtStart, liquidity)
	}
	return amount0Delta(sqrtStart, sqrtEnd, liquidity)
}

// amount0Delta = liquidity * (1/sqrtLo - 1/sqrtHi) * Q96, sqrtLo <= sqrtHi.
func amount0Delta(sqrtLo, sqrtHi *big.Int, liquidity *big.Int) *big.Int {
	if sqrtLo.Cmp(sqrtHi) > 0 {
		sqrtLo, sqrtHi = sqrtHi, sqrtLo
	}
	numerator := new(big.Int).Mul(liquidity, Q96)
	numerator.Mul(numerator, new(big.Int).Sub(sqrtHi, sqrtLo))
	denom := new(big.Int).Mul(sqrtLo, sqrtHi)
	if denom.Sign() == 0 {
		return new(big.Int)
	}
	return numerator.Div(numerator, denom)
}

// amount1Delta = liquidity * (sqrtHi - sqrtLo) / Q96, sqrtLo <= sqrtHi.
func amount1Delta(sqrtLo, sqrtHi *big.Int, liquidity *big.Int) *big.Int {
	if sqrtLo.Cmp(sqrtHi) > 0 {
		sqrtLo, sqrtHi = sqrtHi, sqrtLo
	}
	out := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtHi, sqrtLo))
	return out.Div(out, Q96)
}

// nextSqrtPriceFromInput solves the constant-product-within-a-tick-range
// equation for the resulting sqrtPrice after adding amountIn of tokenIn.
func nextSqrtPriceFromInput(sqrtPrice, liquidity, amountIn *big.Int, zeroForOne bool) *big.Int {
	if liquidity.Sign() == 0 {
		return sqrtPrice
	}
	if zeroForOne {
		// sqrtP' = L*sqrtP / (L + amountIn*sqrtP/Q96)
		product := new(big.Int).Mul(amountIn, sqrtPrice)
		product.Div(product, Q96)
		denom := new(big.Int).Add(liquidity, product)
		if denom.Sign() == 0 {
			return sqrtPrice
		}
		numerator := new(big.Int).Mul(liquidity, sqrtPrice)
		return numerator.Div(numerator, denom)
	}
	// sqrtP' = sqrtP + amountIn*Q96/L
	delta := new(big.Int).Mul(amountIn, Q96)
	delta.Div(delta, liquidity)
	return new(big.Int).Add(sqrtPrice, delta)
}
