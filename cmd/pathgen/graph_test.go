package main

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tokA = "0xaaaa000000000000000000000000000000aaaa"
	tokB = "0xbbbb000000000000000000000000000000bbbb"
	tokC = "0xcccc000000000000000000000000000000cccc"
	tokD = "0xdddd000000000000000000000000000000dddd"
)

func samplePools() []poolInfo {
	return []poolInfo{
		{Address: "0x1111000000000000000000000000000000aaaa", Token0: tokA, Token1: tokB, Fee: 3000, Liquidity: "1000000"},
		{Address: "0x1111000000000000000000000000000000bbbb", Token0: tokB, Token1: tokC, Fee: 3000, Liquidity: "2000000"},
		{Address: "0x1111000000000000000000000000000000cccc", Token0: tokC, Token1: tokA, Fee: 3000, Liquidity: "500000"},
		{Address: "0x1111000000000000000000000000000000dddd", Token0: tokA, Token1: tokD, Fee: 500, Liquidity: "10"},
	}
}

func TestFindTriangularCyclesFindsOneCycle(t *testing.T) {
	g := newGraph(samplePools(), big.NewInt(0))
	cycles := g.findTriangularCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, big.NewInt(500000), cycles[0].minLiquidity)
}

func TestFindTriangularCyclesAppliesLiquidityFloor(t *testing.T) {
	g := newGraph(samplePools(), big.NewInt(600000))
	cycles := g.findTriangularCycles()
	assert.Empty(t, cycles)
}

func TestFindTriangularCyclesDedupesRotations(t *testing.T) {
	g := newGraph(samplePools(), big.NewInt(0))
	cycles := g.findTriangularCycles()
	seen := make(map[string]bool)
	for _, c := range cycles {
		key := c.dedupKey()
		require.False(t, seen[key], "cycle %v discovered more than once", key)
		seen[key] = true
	}
}

func TestToEntryMapsFields(t *testing.T) {
	g := newGraph(samplePools(), big.NewInt(0))
	cycles := g.findTriangularCycles()
	require.Len(t, cycles, 1)

	entry := cycles[0].toEntry(7, 1)
	assert.Equal(t, uint64(7), entry.PathID)
	assert.Equal(t, 1, entry.Priority)
	assert.True(t, entry.Enabled)
	assert.NotEmpty(t, entry.Pool1)
	assert.NotEmpty(t, entry.Pool2)
	assert.NotEmpty(t, entry.Pool3)
}
