package executor

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/arbcore/triarb/internal/types"
)

// Standard and custom revert selectors, byte for byte as the original
// executor defines them.
const (
	selectorError                   = "0x08c379a0" // Error(string)
	selectorPanic                   = "0x4e487b71" // Panic(uint256)
	selectorArbitrageFailedDetailed = "0x384fd583" // ArbitrageFailed_Detailed(...)
	selectorProfitBelowMinimum      = "0xcc9c4404" // ProfitBelowMinimum(uint256,uint256,uint256,uint256)
)

// panicReasons is the standard Solidity panic code table.
var panicReasons = map[byte]string{
	0x00: "generic compiler panic",
	0x01: "assertion failed",
	0x11: "arithmetic overflow or underflow",
	0x12: "division or modulo by zero",
	0x21: "invalid enum value",
	0x22: "invalid encoded storage byte array",
	0x31: "pop on empty array",
	0x32: "array index out of bounds",
	0x41: "out of memory",
	0x51: "invalid internal function pointer",
}

var (
	arbitrageFailedArgs, _ = abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "reason", Type: "string"},
		{Name: "pool1", Type: "address"},
		{Name: "pool2", Type: "address"},
		{Name: "pool3", Type: "address"},
		{Name: "amountIn", Type: "uint256"},
		{Name: "amountOut1", Type: "uint256"},
		{Name: "amountOut2", Type: "uint256"},
		{Name: "amountOut3", Type: "uint256"},
		{Name: "minAmountOut", Type: "uint256"},
		{Name: "netProfit", Type: "int256"},
	})
	profitBelowMinArgs, _ = abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "actualProfit", Type: "uint256"},
		{Name: "minProfit", Type: "uint256"},
		{Name: "amountIn", Type: "uint256"},
		{Name: "amountOut", Type: "uint256"},
	})
)

// RevertInfo is the structured, decoded form of a transaction revert
// reason, used to populate a TradeAttempt's HopTrace and log at Warn with
// structured fields instead of a bare error string.
type RevertInfo struct {
	Kind      string // "error_string", "panic", "arbitrage_failed", "profit_below_minimum", "unknown"
	Message   string
	HopTrace  []types.HopResult
	NetProfit *big.Int
}

// DecodeRevert interprets the return data of a reverted call/transaction by
// its 4-byte selector, following the original implementation's decoder
// table exactly since spec.md only names the two custom errors without
// giving field order.
func DecodeRevert(data []byte) RevertInfo {
	if len(data) < 4 {
		return RevertInfo{Kind: "unknown", Message: "revert data too short to carry a selector"}
	}
	selector := fmt.Sprintf("0x%x", data[:4])
	payload := data[4:]

	switch selector {
	case selectorError:
		msg, err := abi.UnpackRevert(data)
		if err != nil {
			return RevertInfo{Kind: "error_string", Message: "Error(string): <undecodable>"}
		}
		return RevertInfo{Kind: "error_string", Message: msg}

	case selectorPanic:
		if len(payload) < 32 {
			return RevertInfo{Kind: "panic", Message: "Panic(uint256): <truncated>"}
		}
		code := payload[31]
		reason, ok := panicReasons[code]
		if !ok {
			reason = "unrecognized panic code"
		}
		return RevertInfo{Kind: "panic", Message: fmt.Sprintf("panic 0x%02x: %s", code, reason)}

	case selectorArbitrageFailedDetailed:
		args := abi.Arguments{{Type: arbitrageFailedArgs}}
		vals, err := args.UnpackValues(payload)
		if err != nil || len(vals) == 0 {
			return RevertInfo{Kind: "arbitrage_failed", Message: "ArbitrageFailed_Detailed: <undecodable>"}
		}
		return decodeArbitrageFailed(vals[0])

	case selectorProfitBelowMinimum:
		args := abi.Arguments{{Type: profitBelowMinArgs}}
		vals, err := args.UnpackValues(payload)
		if err != nil || len(vals) == 0 {
			return RevertInfo{Kind: "profit_below_minimum", Message: "ProfitBelowMinimum: <undecodable>"}
		}
		return decodeProfitBelowMinimum(vals[0])

	default:
		return RevertInfo{Kind: "unknown", Message: fmt.Sprintf("unrecognized revert selector %s", selector)}
	}
}

// convertTuple copies an ABI-decoded tuple value into dst, a pointer to an
// untagged struct with the same field names and types. go-ethereum builds
// tuple values as structs with json tags, so a type assertion to an untagged
// struct never matches; a reflect conversion ignores the tags.
func convertTuple(v interface{}, dst interface{}) bool {
	rv := reflect.ValueOf(v)
	out := reflect.ValueOf(dst).Elem()
	if !rv.IsValid() || !rv.Type().ConvertibleTo(out.Type()) {
		return false
	}
	out.Set(rv.Convert(out.Type()))
	return true
}

func decodeArbitrageFailed(v interface{}) RevertInfo {
	var s struct {
		Reason       string
		Pool1        common.Address
		Pool2        common.Address
		Pool3        common.Address
		AmountIn     *big.Int
		AmountOut1   *big.Int
		AmountOut2   *big.Int
		AmountOut3   *big.Int
		MinAmountOut *big.Int
		NetProfit    *big.Int
	}
	if !convertTuple(v, &s) {
		return RevertInfo{Kind: "arbitrage_failed", Message: "ArbitrageFailed_Detailed: <unexpected tuple shape>"}
	}
	trace := []types.HopResult{
		{Hop: 1, AmountIn: s.AmountIn, AmountOut: s.AmountOut1},
		{Hop: 2, AmountIn: s.AmountOut1, AmountOut: s.AmountOut2},
		{Hop: 3, AmountIn: s.AmountOut2, AmountOut: s.AmountOut3},
	}
	return RevertInfo{
		Kind:      "arbitrage_failed",
		Message:   strings.TrimSpace(s.Reason),
		HopTrace:  trace,
		NetProfit: s.NetProfit,
	}
}

func decodeProfitBelowMinimum(v interface{}) RevertInfo {
	var s struct {
		ActualProfit *big.Int
		MinProfit    *big.Int
		AmountIn     *big.Int
		AmountOut    *big.Int
	}
	if !convertTuple(v, &s) {
		return RevertInfo{Kind: "profit_below_minimum", Message: "ProfitBelowMinimum: <unexpected tuple shape>"}
	}
	return RevertInfo{
		Kind: "profit_below_minimum",
		Message: fmt.Sprintf("profit %s below minimum %s (amountIn=%s amountOut=%s)",
			s.ActualProfit, s.MinProfit, s.AmountIn, s.AmountOut),
		NetProfit: s.ActualProfit,
	}
}
