// Package swapmath implements pure, allocation-light functions that
// simulate swaps against a pool snapshot. It performs no I/O: every
// function here is deterministic given its inputs, which is what lets the
// evaluator use it to prune candidates before paying for an on-chain quote.
package swapmath

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arbcore/triarb/internal/types"
)

// ErrPoolExhausted is returned instead of a wrapped/incorrect amount when a
// swap would consume more liquidity than the pool has across its
// initialized tick range.
var ErrPoolExhausted = errors.New("swapmath: pool exhausted before amount_in was filled")

// Result is the outcome of a successful simulate_exact_input call.
type Result struct {
	AmountOut    *big.Int
	CrossedTicks int
	FeePaid      *big.Int
}

// SwapCurve abstracts a family of AMM math (concentrated liquidity,
// constant product, stable swap, ...) behind one contract so the evaluator
// never needs to know which curve a given pool uses.
type SwapCurve interface {
	// SimulateExactInput computes the output of swapping amountIn of
	// tokenIn through pool, following this curve's math. It returns
	// ErrPoolExhausted (never a partial/garbage amount) if the pool
	// cannot fill amountIn.
	SimulateExactInput(pool *types.PoolState, tokenIn common.Address, amountIn *big.Int) (Result, error)
}

// Family names a swap-curve implementation, used to look one up in the
// registry. PoolState carries no family field; the evaluator simulates every
// pool with FamilyConcentratedLiquidity.
type Family string

const (
	FamilyConcentratedLiquidity Family = "concentrated_liquidity"
	FamilyConstantProduct       Family = "constant_product"
)
