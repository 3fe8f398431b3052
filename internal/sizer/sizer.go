// Package sizer implements the Trade Sizer of spec section 4.5: a
// golden-section search over input amount that maximizes simulated net
// output, bounded by the pool's own liquidity and a caller-supplied upper
// bracket.
package sizer

import (
	"math/big"

	"github.com/arbcore/triarb/internal/metrics"
)

// invPhi and invPhi2 are the standard golden-section search constants.
const (
	invPhi  = 0.6180339887498949
	invPhi2 = 0.3819660112501051
)

// maxIterations bounds the search regardless of bracket width, per spec
// section 4.5's iteration cap.
const maxIterations = 12

// minRelativeWidth stops the search once the bracket has shrunk to this
// fraction of its starting width.
const minRelativeWidth = 0.001

// Objective evaluates net profit (in raw token_a units) for a candidate
// input amount x, returning a very negative sentinel on any failure
// (pool exhaustion, quote error) so the search treats it as unattractive
// rather than aborting.
type Objective func(x *big.Int) *big.Int

// Search finds the input amount in [lo, hi] that maximizes obj, using
// golden-section search since the profit curve is assumed unimodal
// (concave) over the feasible range: profit rises with size while price
// impact is small, then falls once slippage dominates.
func Search(lo, hi *big.Int, obj Objective) (bestX *big.Int, bestProfit *big.Int) {
	if lo.Cmp(hi) >= 0 {
		return new(big.Int).Set(lo), obj(lo)
	}

	loF := new(big.Float).SetInt(lo)
	hiF := new(big.Float).SetInt(hi)
	width := new(big.Float).Sub(hiF, loF)
	startWidth := new(big.Float).Set(width)
	minWidth := new(big.Float).Mul(startWidth, big.NewFloat(minRelativeWidth))

	a, b := new(big.Float).Set(loF), new(big.Float).Set(hiF)
	c := interpolate(a, b, invPhi2)
	d := interpolate(a, b, invPhi)

	fc := obj(floatToInt(c))
	fd := obj(floatToInt(d))

	iterations := 0
	for iterations < maxIterations {
		width = new(big.Float).Sub(b, a)
		if width.Cmp(minWidth) <= 0 {
			break
		}
		if fc.Cmp(fd) >= 0 {
			b = d
			d = c
			fd = fc
			c = interpolate(a, b, invPhi2)
			fc = obj(floatToInt(c))
		} else {
			a = c
			c = d
			fc = fd
			d = interpolate(a, b, invPhi)
			fd = obj(floatToInt(d))
		}
		iterations++
	}
	metrics.SizerIterations.Observe(float64(iterations))

	// Tie-break: prefer the smaller x among near-equal candidates, since a
	// smaller notional is strictly safer (less slippage risk, less capital
	// at risk if a reorg drops the attempt).
	xc, xd := floatToInt(c), floatToInt(d)
	if fc.Cmp(fd) > 0 {
		return xc, fc
	}
	if fd.Cmp(fc) > 0 {
		return xd, fd
	}
	if xc.Cmp(xd) <= 0 {
		return xc, fc
	}
	return xd, fd
}

func interpolate(a, b *big.Float, frac float64) *big.Float {
	width := new(big.Float).Sub(b, a)
	delta := new(big.Float).Mul(width, big.NewFloat(frac))
	return new(big.Float).Add(a, delta)
}

func floatToInt(f *big.Float) *big.Int {
	i, _ := f.Int(nil)
	if i.Sign() < 0 {
		return big.NewInt(0)
	}
	return i
}
