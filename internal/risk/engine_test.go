package risk

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbcore/triarb/internal/config"
	"github.com/arbcore/triarb/internal/types"
)

func testGateConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Risk.MaxFeeSumBps = 100
	cfg.Risk.MinProfitThresholdUSD = 10
	cfg.Risk.MinNotionalUSD = 100
	return cfg
}

func healthyPool() *types.PoolState {
	return &types.PoolState{Address: common.HexToAddress("0x1111000000000000000000000000000000aaaa")}
}

func testGatePath() types.TriangularPath {
	return types.TriangularPath{Fee1: 3000, Fee2: 3000, Fee3: 3000} // 9000 = 90 bps
}

func TestGatePassesHealthyPoolsUnderFeeCeiling(t *testing.T) {
	e := NewEngine(testGateConfig())
	pools := []*types.PoolState{healthyPool(), healthyPool(), healthyPool()}
	assert.NoError(t, e.Gate(testGatePath(), pools, decimal.NewFromInt(500)))
}

func TestGateRejectsExcessiveFeeSum(t *testing.T) {
	e := NewEngine(testGateConfig())
	path := types.TriangularPath{Fee1: 5000, Fee2: 5000, Fee3: 5000}
	pools := []*types.PoolState{healthyPool(), healthyPool(), healthyPool()}
	assert.Error(t, e.Gate(path, pools, decimal.NewFromInt(500)))
}

func TestGateRejectsNilPool(t *testing.T) {
	e := NewEngine(testGateConfig())
	pools := []*types.PoolState{healthyPool(), nil, healthyPool()}
	assert.Error(t, e.Gate(testGatePath(), pools, decimal.NewFromInt(500)))
}

func TestGateRejectsDegradedPool(t *testing.T) {
	e := NewEngine(testGateConfig())
	degraded := healthyPool()
	degraded.Degraded = true
	pools := []*types.PoolState{healthyPool(), degraded, healthyPool()}
	assert.Error(t, e.Gate(testGatePath(), pools, decimal.NewFromInt(500)))
}

func TestGateRejectsNotionalBelowFloor(t *testing.T) {
	e := NewEngine(testGateConfig())
	pools := []*types.PoolState{healthyPool(), healthyPool(), healthyPool()}
	err := e.Gate(testGatePath(), pools, decimal.NewFromInt(99))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notional")
}

func TestGateAcceptsNotionalAtFloor(t *testing.T) {
	e := NewEngine(testGateConfig())
	pools := []*types.PoolState{healthyPool(), healthyPool(), healthyPool()}
	assert.NoError(t, e.Gate(testGatePath(), pools, decimal.NewFromInt(100)))
}

func TestGateSkipsNotionalCheckWhenUnknown(t *testing.T) {
	e := NewEngine(testGateConfig())
	pools := []*types.PoolState{healthyPool(), healthyPool(), healthyPool()}
	assert.NoError(t, e.Gate(testGatePath(), pools, UnknownNotional))
}

func TestMeetsProfitThreshold(t *testing.T) {
	e := NewEngine(testGateConfig())
	assert.True(t, e.MeetsProfitThreshold(decimal.NewFromInt(10)))
	assert.True(t, e.MeetsProfitThreshold(decimal.NewFromInt(11)))
	assert.False(t, e.MeetsProfitThreshold(decimal.NewFromInt(9)))
}
