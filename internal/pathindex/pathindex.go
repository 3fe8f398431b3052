// Package pathindex holds the static trigger-pool to candidate-path mapping
// described in spec section 4.2: which three-hop cycles to re-evaluate when
// a given pool's state changes, ordered by priority.
package pathindex

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arbcore/triarb/internal/types"
)

// Index is immutable once built: the path catalog is fixed configuration,
// never discovered at runtime.
type Index struct {
	byTrigger map[common.Address][]types.TriangularPath
	byID      map[uint64]types.TriangularPath
}

// Build constructs an Index from a flat path list, fanning each path out to
// every pool it touches (not only its nominal trigger pool) since a price
// move on any of the three hops can create the opportunity.
func Build(paths []types.TriangularPath) *Index {
	idx := &Index{
		byTrigger: make(map[common.Address][]types.TriangularPath),
		byID:      make(map[uint64]types.TriangularPath),
	}
	for _, p := range paths {
		if !p.Enabled {
			continue
		}
		idx.byID[p.PathID] = p
		seen := make(map[common.Address]bool, 3)
		for _, pool := range p.Pools() {
			if seen[pool] {
				continue
			}
			seen[pool] = true
			idx.byTrigger[pool] = append(idx.byTrigger[pool], p)
		}
	}
	for pool := range idx.byTrigger {
		list := idx.byTrigger[pool]
		sort.Slice(list, func(i, j int) bool {
			if list[i].Priority != list[j].Priority {
				return list[i].Priority < list[j].Priority
			}
			return list[i].PathID < list[j].PathID
		})
		idx.byTrigger[pool] = list
	}
	return idx
}

// PathsFor returns the candidate paths touched by pool, sorted by
// (priority, path_id) ascending, or nil if the pool triggers none.
func (idx *Index) PathsFor(pool common.Address) []types.TriangularPath {
	return idx.byTrigger[pool]
}

// Lookup returns the path with the given id, and whether it was found.
func (idx *Index) Lookup(id uint64) (types.TriangularPath, bool) {
	p, ok := idx.byID[id]
	return p, ok
}

// Len returns the number of distinct enabled paths in the catalog.
func (idx *Index) Len() int {
	return len(idx.byID)
}

// TrackedPools returns every pool address referenced by any enabled path,
// used to seed the pool cache and the log subscription filter.
func (idx *Index) TrackedPools() []common.Address {
	out := make([]common.Address, 0, len(idx.byTrigger))
	for pool := range idx.byTrigger {
		out = append(out, pool)
	}
	return out
}
