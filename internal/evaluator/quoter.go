package evaluator

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/arbcore/triarb/internal/types"
)

// quoterV2ABI covers QuoterV2.quoteExactInput, the multi-hop authoritative
// quote entry point used to re-verify a locally simulated candidate.
const quoterV2ABI = `[
{"inputs":[
	{"name":"path","type":"bytes"},
	{"name":"amountIn","type":"uint256"}],
 "name":"quoteExactInput",
 "outputs":[
	{"name":"amountOut","type":"uint256"},
	{"name":"sqrtPriceX96AfterList","type":"uint160[]"},
	{"name":"initializedTicksCrossedList","type":"uint32[]"},
	{"name":"gasEstimate","type":"uint256"}],
 "stateMutability":"nonpayable","type":"function"}
]`

var quoterABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(quoterV2ABI))
	if err != nil {
		panic("evaluator: invalid embedded quoter ABI: " + err.Error())
	}
	quoterABI = parsed
}

// EncodePath packs the triangular path's three hops into QuoterV2's
// path-encoding convention: token(20 bytes) + fee(3 bytes) repeated, ending
// on the final token.
func EncodePath(path types.TriangularPath) []byte {
	var buf []byte
	buf = append(buf, path.TokenA.Bytes()...)
	buf = append(buf, feeBytes(path.Fee1)...)
	buf = append(buf, path.TokenB.Bytes()...)
	buf = append(buf, feeBytes(path.Fee2)...)
	buf = append(buf, path.TokenC.Bytes()...)
	buf = append(buf, feeBytes(path.Fee3)...)
	buf = append(buf, path.TokenA.Bytes()...)
	return buf
}

func feeBytes(fee uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, fee)
	return b[1:] // uint24: low 3 bytes
}

// PackQuoteExactInput ABI-encodes a quoteExactInput call.
func PackQuoteExactInput(path types.TriangularPath, amountIn *big.Int) ([]byte, error) {
	data, err := quoterABI.Pack("quoteExactInput", EncodePath(path), amountIn)
	if err != nil {
		return nil, fmt.Errorf("evaluator: pack quoteExactInput: %w", err)
	}
	return data, nil
}

// QuoteResult is the decoded return of quoteExactInput.
type QuoteResult struct {
	AmountOut   *big.Int
	GasEstimate *big.Int
}

// DecodeQuoteExactInput unpacks a quoteExactInput return payload.
func DecodeQuoteExactInput(data []byte) (QuoteResult, error) {
	var out struct {
		AmountOut                    *big.Int
		SqrtPriceX96AfterList        []*big.Int
		InitializedTicksCrossedList  []uint32
		GasEstimate                  *big.Int
	}
	if err := quoterABI.UnpackIntoInterface(&out, "quoteExactInput", data); err != nil {
		return QuoteResult{}, fmt.Errorf("evaluator: unpack quoteExactInput: %w", err)
	}
	return QuoteResult{AmountOut: out.AmountOut, GasEstimate: out.GasEstimate}, nil
}
