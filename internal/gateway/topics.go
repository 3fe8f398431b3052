package gateway

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Topic computes the keccak256 event-signature topic for a Solidity event
// signature such as "Swap(address,address,int256,int256,uint160,uint128,int24)",
// the same derivation go-ethereum's abigen output relies on, done directly
// here so pool event topics are never hardcoded as opaque hex constants.
func Topic(signature string) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return common.BytesToHash(h.Sum(nil))
}

// Pool event topics used to subscribe to and classify Uniswap-V3-style
// pool logs.
var (
	TopicSwap           = Topic("Swap(address,address,int256,int256,uint160,uint128,int24)")
	TopicMint           = Topic("Mint(address,address,int24,int24,uint128,uint256,uint256)")
	TopicBurn           = Topic("Burn(address,int24,int24,uint128,uint256,uint256)")
	TopicFlash          = Topic("Flash(address,address,uint256,uint256,uint256,uint256)")
	TopicSetFeeProtocol = Topic("SetFeeProtocol(uint8,uint8,uint8,uint8)")
)
