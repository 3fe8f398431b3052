// Package oppbus implements the bounded Opportunity Bus of spec section
// 4.6: a queue between the evaluator and the executor that never blocks the
// evaluator's hot path, deduplicates by path_id (a fresher opportunity for
// a path supersedes a queued one), and drops the lowest-priority item when
// full rather than growing unbounded.
package oppbus

import (
	"context"
	"sync"

	"github.com/arbcore/triarb/internal/metrics"
	"github.com/arbcore/triarb/internal/types"
)

// entry pairs an opportunity with the priority of the path it belongs to,
// used to decide what to evict when the bus is full.
type entry struct {
	opp      types.Opportunity
	priority int
}

// Bus is safe for concurrent use by many evaluator goroutines publishing
// and one or more executor goroutines consuming.
type Bus struct {
	mu       sync.Mutex
	cap      int
	items    []entry
	byPathID map[uint64]int // path_id -> index into items
	notify   chan struct{}
}

// New creates a Bus with the given capacity (spec's opportunity_bus_capacity).
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 256
	}
	return &Bus{
		cap:      capacity,
		byPathID: make(map[uint64]int),
		notify:   make(chan struct{}, 1),
	}
}

// Publish inserts or replaces the queued opportunity for opp.PathID.
// Same-path_id replacement matters because the evaluator can re-evaluate a
// path multiple times before the executor drains the previous candidate;
// only the latest, freshest quote is worth acting on. priority comes from
// the path's configured Priority (lower value sorts first).
func (b *Bus) Publish(opp types.Opportunity, priority int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if idx, exists := b.byPathID[opp.PathID]; exists {
		b.items[idx] = entry{opp: opp, priority: priority}
		b.wake()
		return
	}

	if len(b.items) >= b.cap {
		worst := b.worstIndexLocked()
		if worst == -1 || priority >= b.items[worst].priority {
			metrics.OpportunitiesDropped.WithLabelValues("bus_full").Inc()
			return
		}
		b.removeAtLocked(worst)
	}

	b.items = append(b.items, entry{opp: opp, priority: priority})
	b.byPathID[opp.PathID] = len(b.items) - 1
	metrics.OpportunitiesEmitted.Inc()
	b.wake()
}

func (b *Bus) worstIndexLocked() int {
	worst := -1
	for i := range b.items {
		if worst == -1 || b.items[i].priority > b.items[worst].priority {
			worst = i
		}
	}
	return worst
}

// removeAtLocked deletes items[idx] and fixes up the index map; callers
// hold b.mu.
func (b *Bus) removeAtLocked(idx int) {
	removed := b.items[idx]
	delete(b.byPathID, removed.opp.PathID)
	last := len(b.items) - 1
	b.items[idx] = b.items[last]
	b.items = b.items[:last]
	if idx != last {
		b.byPathID[b.items[idx].opp.PathID] = idx
	}
}

func (b *Bus) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Take removes and returns the highest-priority queued opportunity,
// blocking until one is available or ctx is cancelled.
func (b *Bus) Take(ctx context.Context) (types.Opportunity, bool) {
	for {
		if opp, ok := b.tryTake(); ok {
			return opp, true
		}
		select {
		case <-b.notify:
		case <-ctx.Done():
			return types.Opportunity{}, false
		}
	}
}

func (b *Bus) tryTake() (types.Opportunity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return types.Opportunity{}, false
	}
	best := 0
	for i := range b.items {
		if b.items[i].priority < b.items[best].priority {
			best = i
		}
	}
	opp := b.items[best].opp
	b.removeAtLocked(best)
	return opp, true
}

// Len returns the current queue depth.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
