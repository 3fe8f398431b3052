package swapmath

import (
	"math"
	"math/big"
)

// Q96 is the fixed-point denominator for sqrtPriceX96 values (2^96).
var Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// sqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96 as a big.Int.
//
// This is an arithmetic approximation (float64 log/exp carried in big.Float)
// rather than the bit-exact fixed-point ladder Uniswap's TickMath library uses on
// chain. That is fine here: this package only ever backs the local pruning
// simulation of section 4.4, and any candidate it lets through is still
// re-verified against the authoritative on-chain quoter before an
// opportunity is emitted.
func sqrtRatioAtTick(tick int32) *big.Int {
	base := new(big.Float).SetPrec(200).SetFloat64(1.0001)
	// pow(base, tick/2) == sqrt(base^tick)
	exp := new(big.Float).SetPrec(200).Quo(big.NewFloat(float64(tick)), big.NewFloat(2))
	ratio := floatPow(base, exp)
	ratio.Mul(ratio, new(big.Float).SetPrec(200).SetInt(Q96))
	out, _ := ratio.Int(nil)
	return out
}

// floatPow computes base^exp for a real (possibly negative/fractional) exp
// via exp(exp * ln(base)); precision is generous since this only feeds an
// approximate local simulation.
func floatPow(base, exp *big.Float) *big.Float {
	lnBase := bigFloatLn(base)
	prod := new(big.Float).SetPrec(200).Mul(exp, lnBase)
	return bigFloatExp(prod)
}

// bigFloatLn and bigFloatExp delegate to the standard library's float64
// log/exp; sufficient precision for tick-boundary estimation in a local
// pruning simulation that is always checked against an authoritative quote.
func bigFloatLn(x *big.Float) *big.Float {
	f, _ := x.Float64()
	return new(big.Float).SetPrec(200).SetFloat64(math.Log(f))
}

func bigFloatExp(x *big.Float) *big.Float {
	f, _ := x.Float64()
	return new(big.Float).SetPrec(200).SetFloat64(math.Exp(f))
}
