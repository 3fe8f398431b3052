package pathindex

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/arbcore/triarb/internal/types"
)

// catalogEntry mirrors types.TriangularPath with hex-string addresses, the
// same YAML-friendly shape config.Config uses for its own fields.
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

// LoadCatalog reads the fixed path catalog named by config.Config.PathCatalog
// (spec section 1: the catalog is configuration, never discovered at
// runtime).
func LoadCatalog(path string) ([]types.TriangularPath, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pathindex: read catalog %s: %w", path, err)
	}
	var entries []catalogEntry
	if err := yaml.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("pathindex: parse catalog %s: %w", path, err)
	}
	out := make([]types.TriangularPath, 0, len(entries))
	for _, e := range entries {
		p := types.TriangularPath{
			PathID:   e.PathID,
			TokenA:   common.HexToAddress(e.TokenA),
			TokenB:   common.HexToAddress(e.TokenB),
			TokenC:   common.HexToAddress(e.TokenC),
			Pool1:    common.HexToAddress(e.Pool1),
			Pool2:    common.HexToAddress(e.Pool2),
			Pool3:    common.HexToAddress(e.Pool3),
			Fee1:     e.Fee1,
			Fee2:     e.Fee2,
			Fee3:     e.Fee3,
			Priority: e.Priority,
			Enabled:  e.Enabled,
		}
		out = append(out, p)
	}
	return out, nil
}
