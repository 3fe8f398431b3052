package multicall

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// poolABI covers only the view functions the pool state cache needs to
// (re)hydrate a snapshot: slot0 for price/tick, liquidity for active
// liquidity, ticks for a given tick's net/gross liquidity, and the four
// immutables token0/token1/fee/tickSpacing.
const poolABI = `[
{"inputs":[],"name":"slot0","outputs":[
	{"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
	{"internalType":"int24","name":"tick","type":"int24"},
	{"internalType":"uint16","name":"observationIndex","type":"uint16"},
	{"internalType":"uint16","name":"observationCardinality","type":"uint16"},
	{"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},
	{"internalType":"uint8","name":"feeProtocol","type":"uint8"},
	{"internalType":"bool","name":"unlocked","type":"bool"}],
 "stateMutability":"view","type":"function"},
{"inputs":[],"name":"liquidity","outputs":[{"internalType":"uint128","name":"","type":"uint128"}],
 "stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"int24","name":"tick","type":"int24"}],"name":"ticks","outputs":[
	{"internalType":"uint128","name":"liquidityGross","type":"uint128"},
	{"internalType":"int128","name":"liquidityNet","type":"int128"},
	{"internalType":"uint256","name":"feeGrowthOutside0X128","type":"uint256"},
	{"internalType":"uint256","name":"feeGrowthOutside1X128","type":"uint256"},
	{"internalType":"int56","name":"tickCumulativeOutside","type":"int56"},
	{"internalType":"uint160","name":"secondsPerLiquidityOutsideX128","type":"uint160"},
	{"internalType":"uint32","name":"secondsOutside","type":"uint32"},
	{"internalType":"bool","name":"initialized","type":"bool"}],
 "stateMutability":"view","type":"function"},
{"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],
 "stateMutability":"view","type":"function"},
{"inputs":[],"name":"token1","outputs":[{"internalType":"address","name":"","type":"address"}],
 "stateMutability":"view","type":"function"},
{"inputs":[],"name":"fee","outputs":[{"internalType":"uint24","name":"","type":"uint24"}],
 "stateMutability":"view","type":"function"},
{"inputs":[],"name":"tickSpacing","outputs":[{"internalType":"int24","name":"","type":"int24"}],
 "stateMutability":"view","type":"function"}
]`

var poolContractABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(poolABI))
	if err != nil {
		panic("multicall: invalid embedded pool ABI: " + err.Error())
	}
	poolContractABI = parsed
}

type slot0Result struct {
	SqrtPriceX96               *big.Int
	Tick                       *big.Int
	ObservationIndex           uint16
	ObservationCardinality     uint16
	ObservationCardinalityNext uint16
	FeeProtocol                uint8
	Unlocked                   bool
}

type tickResult struct {
	LiquidityGross *big.Int
	LiquidityNet   *big.Int
	FeeGrowth0     *big.Int
	FeeGrowth1     *big.Int
	TickCumulative *big.Int
	SecondsPerLiq  *big.Int
	SecondsOutside uint32
	Initialized    bool
}

// PoolBatchClient wraps a raw IClient with the typed slot0/liquidity/ticks
// calls a Uniswap-V3-style pool state cache actually makes, so callers pack
// and unpack pool ABI data in exactly one place instead of once per
// reconciliation site.
type PoolBatchClient struct {
	mc IClient
}

// NewPoolBatchClient adapts a generic Multicall2 IClient to the pool-state
// batch shape.
func NewPoolBatchClient(mc IClient) *PoolBatchClient {
	return &PoolBatchClient{mc: mc}
}

// PoolInit is one pool's immutable identity plus its price/liquidity at
// bootstrap time. Err is set (with every other field left zero) when the
// batch call for this address failed or its result couldn't be decoded, so
// one bad pool doesn't fail the whole bootstrap.
type PoolInit struct {
	Address      common.Address
	Token0       common.Address
	Token1       common.Address
	Fee          uint32
	TickSpacing  int32
	SqrtPriceX96 *big.Int
	CurrentTick  int32
	Liquidity    *big.Int
	Err          error
}

// FetchInit batches token0/token1/fee/tickSpacing/slot0/liquidity for every
// address in addrs into one Aggregate call.
func (p *PoolBatchClient) FetchInit(ctx context.Context, addrs []common.Address) ([]PoolInit, error) {
	const stride = 6
	calls := make([]Call, 0, len(addrs)*stride)
	for _, a := range addrs {
		for _, method := range []string{"token0", "token1", "fee", "tickSpacing", "slot0", "liquidity"} {
			data, err := poolContractABI.Pack(method)
			if err != nil {
				return nil, fmt.Errorf("multicall: pack %s: %w", method, err)
			}
			calls = append(calls, Call{Target: a, CallData: data})
		}
	}
	results, err := p.mc.Aggregate(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("multicall: pool init aggregate: %w", err)
	}

	out := make([]PoolInit, len(addrs))
	for i, a := range addrs {
		base := i * stride
		if base+stride > len(results) {
			return nil, fmt.Errorf("multicall: short pool init result for %s", a)
		}
		init, err := decodePoolInit(a, results[base:base+stride])
		if err != nil {
			out[i] = PoolInit{Address: a, Err: err}
			continue
		}
		out[i] = init
	}
	return out, nil
}

func decodePoolInit(addr common.Address, r []Result) (PoolInit, error) {
	for _, res := range r {
		if !res.Success {
			return PoolInit{}, fmt.Errorf("call failed")
		}
	}
	var token0, token1 common.Address
	if err := poolContractABI.UnpackIntoInterface(&token0, "token0", r[0].Data); err != nil {
		return PoolInit{}, err
	}
	if err := poolContractABI.UnpackIntoInterface(&token1, "token1", r[1].Data); err != nil {
		return PoolInit{}, err
	}
	var fee *big.Int
	if err := poolContractABI.UnpackIntoInterface(&fee, "fee", r[2].Data); err != nil {
		return PoolInit{}, err
	}
	var spacing *big.Int
	if err := poolContractABI.UnpackIntoInterface(&spacing, "tickSpacing", r[3].Data); err != nil {
		return PoolInit{}, err
	}
	var s0 slot0Result
	if err := poolContractABI.UnpackIntoInterface(&s0, "slot0", r[4].Data); err != nil {
		return PoolInit{}, err
	}
	var liq *big.Int
	if err := poolContractABI.UnpackIntoInterface(&liq, "liquidity", r[5].Data); err != nil {
		return PoolInit{}, err
	}

	return PoolInit{
		Address:      addr,
		Token0:       token0,
		Token1:       token1,
		Fee:          uint32(fee.Uint64()),
		TickSpacing:  int32(spacing.Int64()),
		SqrtPriceX96: s0.SqrtPriceX96,
		CurrentTick:  int32(s0.Tick.Int64()),
		Liquidity:    liq,
	}, nil
}

// TickState is one tick's net/gross liquidity as of the batch call. Ok is
// false when the underlying call or decode failed; callers should leave
// that tick's cached state untouched rather than treat it as
// uninitialized.
type TickState struct {
	Tick           int32
	Ok             bool
	Initialized    bool
	LiquidityGross *big.Int
	LiquidityNet   *big.Int
}

// FetchTicks batches a ticks() call per entry in ticks for pool addr.
func (p *PoolBatchClient) FetchTicks(ctx context.Context, addr common.Address, ticks []int32) ([]TickState, error) {
	if len(ticks) == 0 {
		return nil, nil
	}
	calls := make([]Call, len(ticks))
	for i, t := range ticks {
		data, err := poolContractABI.Pack("ticks", big.NewInt(int64(t)))
		if err != nil {
			return nil, fmt.Errorf("multicall: pack ticks: %w", err)
		}
		calls[i] = Call{Target: addr, CallData: data}
	}
	results, err := p.mc.Aggregate(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("multicall: ticks aggregate: %w", err)
	}

	out := make([]TickState, len(ticks))
	for i, t := range ticks {
		out[i] = TickState{Tick: t}
		if !results[i].Success {
			continue
		}
		var tr tickResult
		if err := poolContractABI.UnpackIntoInterface(&tr, "ticks", results[i].Data); err != nil {
			continue
		}
		out[i] = TickState{
			Tick:           t,
			Ok:             true,
			Initialized:    tr.Initialized,
			LiquidityGross: tr.LiquidityGross,
			LiquidityNet:   tr.LiquidityNet,
		}
	}
	return out, nil
}

// PriceState is one pool's slot0+liquidity as of a reconciliation pass. Ok
// is false when the underlying call or decode failed, with Err naming why.
type PriceState struct {
	Address      common.Address
	Ok           bool
	Err          error
	SqrtPriceX96 *big.Int
	CurrentTick  int32
	Liquidity    *big.Int
}

// FetchPriceState batches a slot0()+liquidity() pair per address, the
// reconciliation loop's periodic drift-healing read.
func (p *PoolBatchClient) FetchPriceState(ctx context.Context, addrs []common.Address) ([]PriceState, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	calls := make([]Call, 0, len(addrs)*2)
	for _, a := range addrs {
		s0, err := poolContractABI.Pack("slot0")
		if err != nil {
			return nil, fmt.Errorf("multicall: pack slot0: %w", err)
		}
		liq, err := poolContractABI.Pack("liquidity")
		if err != nil {
			return nil, fmt.Errorf("multicall: pack liquidity: %w", err)
		}
		calls = append(calls, Call{Target: a, CallData: s0}, Call{Target: a, CallData: liq})
	}
	results, err := p.mc.Aggregate(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("multicall: price state aggregate: %w", err)
	}

	out := make([]PriceState, len(addrs))
	for i, a := range addrs {
		base := i * 2
		out[i] = PriceState{Address: a}
		if !results[base].Success || !results[base+1].Success {
			out[i].Err = fmt.Errorf("reconciliation call failed")
			continue
		}
		var s0 slot0Result
		if err := poolContractABI.UnpackIntoInterface(&s0, "slot0", results[base].Data); err != nil {
			out[i].Err = err
			continue
		}
		var liq *big.Int
		if err := poolContractABI.UnpackIntoInterface(&liq, "liquidity", results[base+1].Data); err != nil {
			out[i].Err = err
			continue
		}
		out[i] = PriceState{
			Address:      a,
			Ok:           true,
			SqrtPriceX96: s0.SqrtPriceX96,
			CurrentTick:  int32(s0.Tick.Int64()),
			Liquidity:    liq,
		}
	}
	return out, nil
}
