package sizer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

// parabolic returns a concave profit curve peaking at x=500, used to check
// the search converges near the true optimum.
func parabolic(x *big.Int) *big.Int {
	peak := big.NewInt(500)
	diff := new(big.Int).Sub(x, peak)
	sq := new(big.Int).Mul(diff, diff)
	return new(big.Int).Sub(big.NewInt(1_000_000), sq)
}

func TestSearchFindsPeakOfConcaveObjective(t *testing.T) {
	bestX, bestProfit := Search(big.NewInt(0), big.NewInt(1000), parabolic)
	assert.InDelta(t, 500, bestX.Int64(), 20)
	assert.Greater(t, bestProfit.Int64(), int64(999_000))
}

func TestSearchDegenerateBracketReturnsLo(t *testing.T) {
	x, _ := Search(big.NewInt(10), big.NewInt(10), parabolic)
	assert.Equal(t, int64(10), x.Int64())
}

func TestSearchMonotonicObjectivePicksUpperEnd(t *testing.T) {
	increasing := func(x *big.Int) *big.Int { return new(big.Int).Set(x) }
	bestX, _ := Search(big.NewInt(0), big.NewInt(1000), increasing)
	assert.Greater(t, bestX.Int64(), int64(900))
}
