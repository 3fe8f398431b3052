// Package risk implements the evaluator's gate stage (spec section 4.4
// step 1): the cheap checks that must pass before a candidate path is
// worth simulating at all.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arbcore/triarb/internal/config"
	"github.com/arbcore/triarb/internal/types"
)

// Engine holds the configured thresholds a candidate path is gated on.
type Engine struct {
	cfg *config.Config
}

func NewEngine(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// UnknownNotional is passed by callers that cannot attribute the trigger
// event to a swap (a Mint/Burn re-evaluation, say): any negative value
// skips the notional floor check rather than rejecting on a fabricated
// zero.
var UnknownNotional = decimal.NewFromInt(-1)

// Gate runs the cheap pre-simulation checks in spec order: the triggering
// swap's USD notional against a configured floor, a fee-sum ceiling, and
// the pool's own health flag. It returns a non-nil error naming the first
// failing check, so the caller can attribute a gate rejection to a
// specific reason.
func (e *Engine) Gate(path types.TriangularPath, pools []*types.PoolState, notionalUSD decimal.Decimal) error {
	if notionalUSD.Sign() >= 0 {
		floor := decimal.NewFromFloat(e.cfg.Risk.MinNotionalUSD)
		if notionalUSD.LessThan(floor) {
			return fmt.Errorf("swap notional $%s below floor $%s", notionalUSD.StringFixed(2), floor.StringFixed(2))
		}
	}

	feeSumBps := int(path.FeeSum()) / 100 // Fee1..Fee3 are hundredths of a bps
	if feeSumBps > e.cfg.Risk.MaxFeeSumBps {
		return fmt.Errorf("fee sum %d bps exceeds max %d bps", feeSumBps, e.cfg.Risk.MaxFeeSumBps)
	}
	for _, p := range pools {
		if p == nil {
			return fmt.Errorf("pool state unavailable")
		}
		if p.Degraded {
			return fmt.Errorf("pool %s is degraded", p.Address)
		}
	}
	return nil
}

// MeetsProfitThreshold compares a net-profit-in-USD figure (already
// converted at the evaluator/sizer boundary) against the configured floor.
func (e *Engine) MeetsProfitThreshold(netProfitUSD decimal.Decimal) bool {
	threshold := decimal.NewFromFloat(e.cfg.Risk.MinProfitThresholdUSD)
	return netProfitUSD.GreaterThanOrEqual(threshold)
}
