// Package flashloan carries the per-provider fee and capability semantics
// an arbitrage attempt's borrowed capital is subject to, grounded on the
// original implementation's flash-loan provider abstraction.
package flashloan

import (
	"errors"

	"github.com/arbcore/triarb/internal/types"
)

// ErrUnsupportedProvider describes a provider that is typed but has no
// executor callback (see IsCallbackWired). Nothing in this module returns it;
// configuration validation rejects such providers through IsCallbackWired.
var ErrUnsupportedProvider = errors.New("flashloan: provider not supported by this executor build")

// FeeBps returns the provider's flash-loan fee in basis points, or -1 if
// the fee is pool-dependent (Uniswap V3, whose fee equals the fee tier of
// the pool the loan is drawn from) and must be read off that pool instead.
func FeeBps(p types.FlashLoanProvider) int {
	switch p {
	case types.ProviderUniswapV3:
		return -1
	case types.ProviderUniswapV4:
		return 0
	case types.ProviderAave:
		return 5
	case types.ProviderBalancer:
		return 0
	default:
		return -1
	}
}

// SupportsMultiAsset reports whether a single flash loan from this provider
// can borrow more than one asset at once. None of the three hops in a
// triangular arbitrage need this today, but the field is carried so a
// future multi-asset strategy doesn't require a provider-model rewrite.
// SupportsMultiAsset reports whether a provider can flash-loan more than one
// asset in a single callback. All four providers in this build do: V3/V4
// pools can lend both of their tokens at once, Aave batches reserves, and
// Balancer's vault batches arbitrary tokens.
func SupportsMultiAsset(p types.FlashLoanProvider) bool {
	switch p {
	case types.ProviderUniswapV3, types.ProviderUniswapV4, types.ProviderAave, types.ProviderBalancer:
		return true
	default:
		return false
	}
}

// IsCallbackWired reports whether the executor has a concrete callback
// builder for this provider.
func IsCallbackWired(p types.FlashLoanProvider) bool {
	return p == types.ProviderUniswapV3
}
