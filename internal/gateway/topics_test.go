package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicIsDeterministic(t *testing.T) {
	a := Topic("Swap(address,address,int256,int256,uint160,uint128,int24)")
	b := Topic("Swap(address,address,int256,int256,uint160,uint128,int24)")
	assert.Equal(t, a, b)
	assert.Equal(t, TopicSwap, a)
}

func TestTopicsAreDistinct(t *testing.T) {
	seen := map[string]string{}
	all := map[string][32]byte{
		"Swap":           TopicSwap,
		"Mint":           TopicMint,
		"Burn":           TopicBurn,
		"Flash":          TopicFlash,
		"SetFeeProtocol": TopicSetFeeProtocol,
	}
	for name, topic := range all {
		key := string(topic[:])
		if other, ok := seen[key]; ok {
			t.Fatalf("%s and %s share a topic hash", name, other)
		}
		seen[key] = name
	}
}
