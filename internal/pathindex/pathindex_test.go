package pathindex

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbcore/triarb/internal/types"
)

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func TestBuildOrdersByPriorityThenPathID(t *testing.T) {
	poolA, poolB := addr(1), addr(2)
	paths := []types.TriangularPath{
		{PathID: 3, Pool1: poolA, Pool2: poolB, Pool3: poolA, Priority: 1, Enabled: true},
		{PathID: 1, Pool1: poolA, Pool2: poolB, Pool3: poolA, Priority: 1, Enabled: true},
		{PathID: 2, Pool1: poolA, Pool2: poolB, Pool3: poolA, Priority: 0, Enabled: true},
	}
	idx := Build(paths)

	got := idx.PathsFor(poolA)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(2), got[0].PathID)
	assert.Equal(t, uint64(1), got[1].PathID)
	assert.Equal(t, uint64(3), got[2].PathID)
}

func TestBuildSkipsDisabledPaths(t *testing.T) {
	poolA := addr(1)
	paths := []types.TriangularPath{
		{PathID: 1, Pool1: poolA, Pool2: poolA, Pool3: poolA, Enabled: false},
	}
	idx := Build(paths)
	assert.Empty(t, idx.PathsFor(poolA))
	assert.Equal(t, 0, idx.Len())
}

func TestLookupByID(t *testing.T) {
	poolA := addr(1)
	paths := []types.TriangularPath{
		{PathID: 42, Pool1: poolA, Pool2: poolA, Pool3: poolA, Enabled: true},
	}
	idx := Build(paths)
	p, ok := idx.Lookup(42)
	require.True(t, ok)
	assert.Equal(t, uint64(42), p.PathID)

	_, ok = idx.Lookup(99)
	assert.False(t, ok)
}

func TestTrackedPoolsCoversAllThreeHops(t *testing.T) {
	poolA, poolB, poolC := addr(1), addr(2), addr(3)
	paths := []types.TriangularPath{
		{PathID: 1, Pool1: poolA, Pool2: poolB, Pool3: poolC, Enabled: true},
	}
	idx := Build(paths)
	got := idx.TrackedPools()
	assert.ElementsMatch(t, []common.Address{poolA, poolB, poolC}, got)
}
