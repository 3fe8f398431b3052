package pricing

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbcore/triarb/internal/config"
)

const (
	weth = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	usdc = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

type fakeGasPricer struct{ base, tip *big.Int }

func (f *fakeGasPricer) SuggestFees(ctx context.Context) (*big.Int, *big.Int, error) {
	return f.base, f.tip, nil
}

func newTestTable(t *testing.T, gas GasPricer) *Table {
	t.Helper()
	cfg := &config.Config{}
	cfg.Pricing.NativeToken = weth
	cfg.Pricing.USDPerToken = map[string]float64{
		weth: 2000,
		usdc: 1,
	}
	cfg.Pricing.TokenDecimals = map[string]uint8{
		weth: 18,
		usdc: 6,
	}
	table, err := New(cfg, gas)
	require.NoError(t, err)
	return table
}

func TestToUSDScalesByDecimals(t *testing.T) {
	table := newTestTable(t, &fakeGasPricer{})
	// 1000 USDC raw units at 6 decimals = 0.001 USDC = $0.001.
	usdVal, err := table.ToUSD(common.HexToAddress(usdc), big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, "0.001", usdVal.String())
}

func TestGasCostInTokenConvertsAcrossRates(t *testing.T) {
	gas := &fakeGasPricer{base: big.NewInt(20_000_000_000), tip: big.NewInt(1_000_000_000)} // 21 gwei
	table := newTestTable(t, gas)

	cost, err := table.GasCostInToken(context.Background(), big.NewInt(100_000), common.HexToAddress(usdc))
	require.NoError(t, err)
	// wei cost = 100_000 * 21e9 = 2.1e15 wei = 0.0021 ETH -> $4.20 -> 4_200_000 USDC raw (6 decimals).
	assert.Equal(t, big.NewInt(4_200_000), cost)
}

func TestGasCostInTokenErrorsWithoutRate(t *testing.T) {
	gas := &fakeGasPricer{base: big.NewInt(1), tip: big.NewInt(1)}
	cfg := &config.Config{}
	cfg.Pricing.NativeToken = weth
	cfg.Pricing.USDPerToken = map[string]float64{weth: 2000}
	table, err := New(cfg, gas)
	require.NoError(t, err)

	_, err = table.GasCostInToken(context.Background(), big.NewInt(1), common.HexToAddress(usdc))
	assert.Error(t, err)
}
