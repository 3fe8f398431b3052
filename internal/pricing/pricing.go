// Package pricing converts raw on-chain token amounts to and from USD using
// a static, config-supplied reference table, and estimates gas cost in a
// target token's raw units for netting against swap output. It implements
// evaluator.USDConverter and evaluator.GasEstimator.
package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/arbcore/triarb/internal/config"
)

const defaultDecimals = 18

// GasPricer is the subset of gateway.Gateway pricing needs to convert a gas
// estimate denominated in gas units into wei.
type GasPricer interface {
	SuggestFees(ctx context.Context) (baseFee, tip *big.Int, err error)
}

// Table is a static USD reference price and decimals lookup, keyed by token
// address (parsed from the config's hex keys), loaded once from config.
type Table struct {
	native   common.Address
	usd      map[common.Address]decimal.Decimal
	decimals map[common.Address]uint8
	gas      GasPricer
}

// New builds a Table from cfg.Pricing.
func New(cfg *config.Config, gas GasPricer) (*Table, error) {
	if cfg.Pricing.NativeToken == "" {
		return nil, fmt.Errorf("pricing: native_token is required")
	}
	t := &Table{
		native:   common.HexToAddress(cfg.Pricing.NativeToken),
		usd:      make(map[common.Address]decimal.Decimal, len(cfg.Pricing.USDPerToken)),
		decimals: make(map[common.Address]uint8, len(cfg.Pricing.TokenDecimals)),
		gas:      gas,
	}
	for hexAddr, rate := range cfg.Pricing.USDPerToken {
		t.usd[common.HexToAddress(hexAddr)] = decimal.NewFromFloat(rate)
	}
	for hexAddr, dec := range cfg.Pricing.TokenDecimals {
		t.decimals[common.HexToAddress(hexAddr)] = dec
	}
	if _, ok := t.usd[t.native]; !ok {
		return nil, fmt.Errorf("pricing: no usd_per_token entry for native_token %s", cfg.Pricing.NativeToken)
	}
	return t, nil
}

func (t *Table) decimalsOf(token common.Address) uint8 {
	if d, ok := t.decimals[token]; ok {
		return d
	}
	return defaultDecimals
}

func (t *Table) rateOf(token common.Address) (decimal.Decimal, error) {
	rate, ok := t.usd[token]
	if !ok {
		return decimal.Zero, fmt.Errorf("pricing: no usd rate for token %s", token)
	}
	return rate, nil
}

// ToUSD converts a raw token amount into USD using the token's configured
// decimals and reference rate.
func (t *Table) ToUSD(token common.Address, amountRaw *big.Int) (decimal.Decimal, error) {
	rate, err := t.rateOf(token)
	if err != nil {
		return decimal.Zero, err
	}
	scale := decimal.New(1, int32(t.decimalsOf(token)))
	amount := decimal.NewFromBigInt(amountRaw, 0).Div(scale)
	return amount.Mul(rate), nil
}

// GasCostInToken estimates the wei cost of gasEstimate gas units at the
// current suggested fee, converts it to USD via the native token's rate,
// then back into token's raw units via token's own rate.
func (t *Table) GasCostInToken(ctx context.Context, gasEstimate *big.Int, token common.Address) (*big.Int, error) {
	baseFee, tip, err := t.gas.SuggestFees(ctx)
	if err != nil {
		return nil, fmt.Errorf("pricing: suggest fees: %w", err)
	}
	gasPrice := new(big.Int).Add(baseFee, tip)
	weiCost := new(big.Int).Mul(gasEstimate, gasPrice)

	nativeRate, err := t.rateOf(t.native)
	if err != nil {
		return nil, err
	}
	tokenRate, err := t.rateOf(token)
	if err != nil {
		return nil, err
	}

	nativeScale := decimal.New(1, int32(t.decimalsOf(t.native)))
	costUSD := decimal.NewFromBigInt(weiCost, 0).Div(nativeScale).Mul(nativeRate)
	tokenScale := decimal.New(1, int32(t.decimalsOf(token)))
	tokenAmount := costUSD.Div(tokenRate).Mul(tokenScale)

	return tokenAmount.Round(0).BigInt(), nil
}
