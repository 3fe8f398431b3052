package executor

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/crypto/sha3"
)

// executorABI is the settlement contract's single entry point,
// executeArbitrage(params), and the ArbitrageExecuted event it emits on a
// successful settlement. params is one tuple rather than a flat arg list:
// flashPool names the pool the input amount is borrowed from (a Uniswap V3
// pool doubles as its own flash-loan source), tokenA/B/C and fee1/2/3 let
// the contract re-derive the three hop pools itself instead of being
// handed them, and profitToken/profitConvertFee optionally route settled
// profit through one more swap before it's held.
const executorABI = `[
{"inputs":[
	{"components":[
		{"name":"flashPool","type":"address"},
		{"name":"tokenA","type":"address"},
		{"name":"tokenB","type":"address"},
		{"name":"tokenC","type":"address"},
		{"name":"fee1","type":"uint24"},
		{"name":"fee2","type":"uint24"},
		{"name":"fee3","type":"uint24"},
		{"name":"amountIn","type":"uint256"},
		{"name":"minProfit","type":"uint256"},
		{"name":"profitToken","type":"address"},
		{"name":"profitConvertFee","type":"uint24"}],
	 "name":"params","type":"tuple"}],
 "name":"executeArbitrage","outputs":[{"name":"profit","type":"uint256"}],
 "stateMutability":"nonpayable","type":"function"},
{"anonymous":false,"inputs":[
	{"indexed":true,"name":"tokenA","type":"address"},
	{"indexed":true,"name":"tokenB","type":"address"},
	{"indexed":true,"name":"tokenC","type":"address"},
	{"indexed":false,"name":"amountIn","type":"uint256"},
	{"indexed":false,"name":"amountOut","type":"uint256"},
	{"indexed":false,"name":"profit","type":"uint256"}],
 "name":"ArbitrageExecuted","type":"event"}
]`

var contractABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(executorABI))
	if err != nil {
		panic("executor: invalid embedded ABI: " + err.Error())
	}
	contractABI = parsed
}

// BuildCallParams describes one executeArbitrage call. FlashPool is the pool
// the contract draws its flash loan from; the build path uses the path's
// first hop pool, since that pool already holds tokenA and repaying its own
// fee back into it needs no extra swap. ProfitToken/ProfitConvertFee are
// left zero-valued (no conversion) until a settlement-currency policy is
// added; the contract treats a zero profitToken as "hold in tokenA".
type BuildCallParams struct {
	FlashPool        common.Address
	TokenA           common.Address
	TokenB           common.Address
	TokenC           common.Address
	Fee1             uint32
	Fee2             uint32
	Fee3             uint32
	AmountIn         *big.Int
	MinProfit        *big.Int
	ProfitToken      common.Address
	ProfitConvertFee uint32
}

// executeArbitrageTuple mirrors the params tuple's component order so
// abi.Pack can encode it as a single struct argument.
type executeArbitrageTuple struct {
	FlashPool        common.Address
	TokenA           common.Address
	TokenB           common.Address
	TokenC           common.Address
	Fee1             *big.Int
	Fee2             *big.Int
	Fee3             *big.Int
	AmountIn         *big.Int
	MinProfit        *big.Int
	ProfitToken      common.Address
	ProfitConvertFee *big.Int
}

// PackExecuteArbitrage ABI-encodes the calldata for executeArbitrage.
func PackExecuteArbitrage(p BuildCallParams) ([]byte, error) {
	data, err := contractABI.Pack("executeArbitrage", executeArbitrageTuple{
		FlashPool:        p.FlashPool,
		TokenA:           p.TokenA,
		TokenB:           p.TokenB,
		TokenC:           p.TokenC,
		Fee1:             big.NewInt(int64(p.Fee1)),
		Fee2:             big.NewInt(int64(p.Fee2)),
		Fee3:             big.NewInt(int64(p.Fee3)),
		AmountIn:         p.AmountIn,
		MinProfit:        p.MinProfit,
		ProfitToken:      p.ProfitToken,
		ProfitConvertFee: big.NewInt(int64(p.ProfitConvertFee)),
	})
	if err != nil {
		return nil, fmt.Errorf("executor: pack executeArbitrage: %w", err)
	}
	return data, nil
}

// ExecutedEvent is the decoded ArbitrageExecuted log: the three hop tokens
// come off the indexed topics, the rest off the non-indexed data payload.
type ExecutedEvent struct {
	TokenA    common.Address
	TokenB    common.Address
	TokenC    common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	Profit    *big.Int
}

// DecodeExecuted unpacks an ArbitrageExecuted log.
func DecodeExecuted(l *gethtypes.Log) (ExecutedEvent, error) {
	if len(l.Topics) < 4 {
		return ExecutedEvent{}, fmt.Errorf("executor: ArbitrageExecuted missing indexed topics")
	}
	var ev struct {
		AmountIn  *big.Int
		AmountOut *big.Int
		Profit    *big.Int
	}
	if err := contractABI.UnpackIntoInterface(&ev, "ArbitrageExecuted", l.Data); err != nil {
		return ExecutedEvent{}, fmt.Errorf("executor: unpack ArbitrageExecuted: %w", err)
	}
	return ExecutedEvent{
		TokenA:    common.BytesToAddress(l.Topics[1].Bytes()),
		TokenB:    common.BytesToAddress(l.Topics[2].Bytes()),
		TokenC:    common.BytesToAddress(l.Topics[3].Bytes()),
		AmountIn:  ev.AmountIn,
		AmountOut: ev.AmountOut,
		Profit:    ev.Profit,
	}, nil
}

// ArbitrageExecutedTopic is the keccak256 topic0 for ArbitrageExecuted,
// derived the same way gateway derives pool event topics; kept as a local
// copy rather than importing gateway, since gateway has no business
// knowing about the executor's own contract events.
var ArbitrageExecutedTopic = topicOf("ArbitrageExecuted(address,address,address,uint256,uint256,uint256)")

func topicOf(signature string) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return common.BytesToHash(h.Sum(nil))
}
