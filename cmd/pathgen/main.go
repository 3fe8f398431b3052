// Command pathgen offline-generates a triangular path catalog from a pool
// universe snapshot. It is never invoked by the running core; operators run
// it ahead of time and point config.Config.PathCatalog at its output.
package main

import (
	"flag"
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"
)

// poolInfo is the input pool universe shape: one entry per known pool,
// typically dumped from a subgraph or an indexer rather than discovered by
// this tool itself.
type poolInfo struct {
	Address   string `yaml:"address"`
	Token0    string `yaml:"token0"`
	Token1    string `yaml:"token1"`
	Fee       uint32 `yaml:"fee"`
	Liquidity string `yaml:"liquidity"`
}

type universe struct {
	Pools []poolInfo `yaml:"pools"`
}

// catalogEntry mirrors internal/pathindex's catalogEntry; kept as a
// separate definition since pathgen never imports the running core.
type catalogEntry struct {
	PathID   uint64 `yaml:"path_id"`
	TokenA   string `yaml:"token_a"`
	TokenB   string `yaml:"token_b"`
	TokenC   string `yaml:"token_c"`
	Pool1    string `yaml:"pool1"`
	Pool2    string `yaml:"pool2"`
	Pool3    string `yaml:"pool3"`
	Fee1     uint32 `yaml:"fee1"`
	Fee2     uint32 `yaml:"fee2"`
	Fee3     uint32 `yaml:"fee3"`
	Priority int    `yaml:"priority"`
	Enabled  bool   `yaml:"enabled"`
}

func (c cycle) toEntry(pathID uint64, priority int) catalogEntry {
	return catalogEntry{
		PathID:   pathID,
		TokenA:   c.tokenA.Hex(),
		TokenB:   c.tokenB.Hex(),
		TokenC:   c.tokenC.Hex(),
		Pool1:    c.pool1.Hex(),
		Pool2:    c.pool2.Hex(),
		Pool3:    c.pool3.Hex(),
		Fee1:     c.fee1,
		Fee2:     c.fee2,
		Fee3:     c.fee3,
		Priority: priority,
		Enabled:  true,
	}
}

func main() {
	universePath := flag.String("universe", "pools.yaml", "path to the pool universe YAML")
	outPath := flag.String("out", "catalog.yaml", "path to write the generated path catalog")
	minLiquidityStr := flag.String("min-liquidity", "0", "minimum pool liquidity, in raw units, required to enter a path")
	flag.Parse()

	minLiquidity, ok := new(big.Int).SetString(*minLiquidityStr, 10)
	if !ok {
		fmt.Fprintf(os.Stderr, "pathgen: invalid -min-liquidity %q\n", *minLiquidityStr)
		os.Exit(1)
	}

	b, err := os.ReadFile(*universePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pathgen: read universe: %v\n", err)
		os.Exit(1)
	}
	var u universe
	if err := yaml.Unmarshal(b, &u); err != nil {
		fmt.Fprintf(os.Stderr, "pathgen: parse universe: %v\n", err)
		os.Exit(1)
	}

	g := newGraph(u.Pools, minLiquidity)
	cycles := g.findTriangularCycles()

	entries := make([]catalogEntry, len(cycles))
	for i, c := range cycles {
		entries[i] = c.toEntry(uint64(i+1), i+1)
	}

	out, err := yaml.Marshal(entries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pathgen: marshal catalog: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outPath, out, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "pathgen: write catalog: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("pathgen: wrote %d triangular paths (from %d candidate pools) to %s\n", len(entries), len(u.Pools), *outPath)
}
