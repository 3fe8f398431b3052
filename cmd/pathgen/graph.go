package main

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// edge is a directed hop out of a token: swap through pool to reach to,
// paying fee (in hundredths of a bip, matching Uniswap V3 fee tiers).
type edge struct {
	pool      common.Address
	to        common.Address
	fee       uint32
	liquidity *big.Int
}

// graph is an adjacency list built once from the pool universe, mirroring
// path_finder's token_pools map: every token maps to the pools that touch
// it, in both directions.
type graph struct {
	adj map[common.Address][]edge
}

func newGraph(pools []poolInfo, minLiquidity *big.Int) *graph {
	g := &graph{adj: make(map[common.Address][]edge)}
	for _, p := range pools {
		addr := common.HexToAddress(p.Address)
		t0 := common.HexToAddress(p.Token0)
		t1 := common.HexToAddress(p.Token1)
		liq, ok := new(big.Int).SetString(p.Liquidity, 10)
		if !ok {
			continue
		}
		if liq.Cmp(minLiquidity) < 0 {
			continue
		}
		g.adj[t0] = append(g.adj[t0], edge{pool: addr, to: t1, fee: p.Fee, liquidity: liq})
		g.adj[t1] = append(g.adj[t1], edge{pool: addr, to: t0, fee: p.Fee, liquidity: liq})
	}
	return g
}

// cycle is one candidate triangular path: start -> b -> c -> start.
type cycle struct {
	tokenA, tokenB, tokenC common.Address
	pool1, pool2, pool3    common.Address
	fee1, fee2, fee3       uint32
	minLiquidity           *big.Int
}

// dedupKey identifies a cycle by the set of pools it swaps through,
// independent of which token it was discovered starting from or which
// direction it was walked in; the same three pools always produce the same
// key regardless of rotation.
func (c cycle) dedupKey() string {
	addrs := []string{c.pool1.Hex(), c.pool2.Hex(), c.pool3.Hex()}
	sort.Strings(addrs)
	return addrs[0] + addrs[1] + addrs[2]
}

// findTriangularCycles walks every start token's edges three hops deep,
// the same depth-first, visited-set backtracking path_finder.rs uses,
// fixed at exactly three hops since the risk engine only ever accepts
// three-hop paths.
func (g *graph) findTriangularCycles() []cycle {
	starts := make([]common.Address, 0, len(g.adj))
	for tok := range g.adj {
		starts = append(starts, tok)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Hex() < starts[j].Hex() })

	seen := make(map[string]bool)
	var out []cycle
	for _, start := range starts {
		for _, e1 := range g.adj[start] {
			b := e1.to
			if b == start {
				continue
			}
			for _, e2 := range g.adj[b] {
				c := e2.to
				if c == start || c == b {
					continue
				}
				for _, e3 := range g.adj[c] {
					if e3.to != start {
						continue
					}
					cand := cycle{
						tokenA: start, tokenB: b, tokenC: c,
						pool1: e1.pool, pool2: e2.pool, pool3: e3.pool,
						fee1: e1.fee, fee2: e2.fee, fee3: e3.fee,
						minLiquidity: minBig(e1.liquidity, e2.liquidity, e3.liquidity),
					}
					key := cand.dedupKey()
					if seen[key] {
						continue
					}
					seen[key] = true
					out = append(out, cand)
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].minLiquidity.Cmp(out[j].minLiquidity) > 0
	})
	return out
}

func minBig(vals ...*big.Int) *big.Int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v.Cmp(m) < 0 {
			m = v
		}
	}
	return m
}
