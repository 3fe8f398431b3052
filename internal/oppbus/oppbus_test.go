package oppbus

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbcore/triarb/internal/types"
)

func TestPublishSamePathIDSupersedes(t *testing.T) {
	b := New(8)
	b.Publish(types.Opportunity{PathID: 1, EstNetProfit: big.NewInt(10)}, 0)
	b.Publish(types.Opportunity{PathID: 1, EstNetProfit: big.NewInt(99)}, 0)

	assert.Equal(t, 1, b.Len())
	got, ok := b.Take(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(99), got.EstNetProfit.Int64())
}

func TestPublishDropsLowestPriorityWhenFull(t *testing.T) {
	b := New(2)
	b.Publish(types.Opportunity{PathID: 1}, 5)
	b.Publish(types.Opportunity{PathID: 2}, 1)
	b.Publish(types.Opportunity{PathID: 3}, 0) // should evict path 1 (worst priority 5)

	assert.Equal(t, 2, b.Len())
	_, ok := findByID(b, 1)
	assert.False(t, ok)
	_, ok = findByID(b, 2)
	assert.True(t, ok)
	_, ok = findByID(b, 3)
	assert.True(t, ok)
}

func TestPublishRejectsWhenFullAndLowerPriority(t *testing.T) {
	b := New(1)
	b.Publish(types.Opportunity{PathID: 1}, 0)
	b.Publish(types.Opportunity{PathID: 2}, 5) // worse priority than existing, dropped

	assert.Equal(t, 1, b.Len())
	_, ok := findByID(b, 1)
	assert.True(t, ok)
}

func TestTakeReturnsHighestPriorityFirst(t *testing.T) {
	b := New(8)
	b.Publish(types.Opportunity{PathID: 1}, 5)
	b.Publish(types.Opportunity{PathID: 2}, 0)

	got, ok := b.Take(context.Background())
	require.True(t, ok)
	assert.Equal(t, uint64(2), got.PathID)
}

func TestTakeBlocksUntilCancelled(t *testing.T) {
	b := New(8)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := b.Take(ctx)
	assert.False(t, ok)
}

func findByID(b *Bus, id uint64) (types.Opportunity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, ok := b.byPathID[id]
	if !ok {
		return types.Opportunity{}, false
	}
	return b.items[idx].opp, true
}
