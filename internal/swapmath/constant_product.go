package swapmath

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arbcore/triarb/internal/types"
)

// ConstantProduct implements SwapCurve for V2-style x*y=k pools. It is not
// exercised by the concentrated-liquidity path catalog this core ships
// with, but it proves out the SwapCurve interface's promise (spec 4.3) that
// other curve families can substitute their own simulator without the
// evaluator changing. PoolState.Liquidity is read as the reserve of
// tokenIn's side and PoolState.SqrtPriceX96 as the reserve of the other
// side scaled by Q96, so no separate reserve fields are needed.
type ConstantProduct struct{}

var _ SwapCurve = ConstantProduct{}

func (ConstantProduct) SimulateExactInput(pool *types.PoolState, tokenIn common.Address, amountIn *big.Int) (Result, error) {
	if amountIn == nil || amountIn.Sign() <= 0 || pool.Liquidity == nil || pool.SqrtPriceX96 == nil {
		return Result{}, ErrPoolExhausted
	}

	reserveIn := new(big.Int).Set(pool.Liquidity)
	reserveOut := new(big.Int).Div(pool.SqrtPriceX96, Q96)
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return Result{}, ErrPoolExhausted
	}

	feeFactor := new(big.Int).Sub(big.NewInt(feePipsDenominator), big.NewInt(int64(pool.Fee)))
	amountInWithFee := new(big.Int).Mul(amountIn, feeFactor)

	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(feePipsDenominator))
	denominator.Add(denominator, amountInWithFee)
	if denominator.Sign() == 0 {
		return Result{}, ErrPoolExhausted
	}
	amountOut := numerator.Div(numerator, denominator)
	if amountOut.Sign() <= 0 || amountOut.Cmp(reserveOut) >= 0 {
		return Result{}, ErrPoolExhausted
	}

	fee := new(big.Int).Sub(amountIn, new(big.Int).Div(amountInWithFee, big.NewInt(feePipsDenominator)))
	return Result{AmountOut: amountOut, CrossedTicks: 0, FeePaid: fee}, nil
}
