package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
chain:
  rpc_http: "https://rpc.example.test"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Chain.MaxConcurrentRequests)
	assert.Equal(t, 3, cfg.Risk.MaxPathHops)
	assert.Equal(t, uint64(2), cfg.Risk.MaxStalenessBlocks)
	assert.Equal(t, uint64(12), cfg.Risk.ReorgSafety)
	assert.Equal(t, 256, cfg.Risk.OpportunityBusCapacity)
	assert.Equal(t, float64(100), cfg.Risk.MinNotionalUSD)
	assert.Equal(t, RouteNormal, cfg.Risk.SubmissionRoute)
	assert.Equal(t, ProviderUniswapV3, cfg.Risk.FlashLoanProvider)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":9090", cfg.Metrics.ListenAddr)
	assert.Equal(t, "arbitrage_pools", cfg.Persistence.PoolsKey)
}

func TestLoadMissingRPCFails(t *testing.T) {
	_, err := Load(writeConfig(t, "chain:\n  network: mainnet\n"))
	assert.Error(t, err)
}

func TestLoadRejectsNonThreeHops(t *testing.T) {
	body := minimalYAML + "risk:\n  max_path_hops: 4\n"
	_, err := Load(writeConfig(t, body))
	assert.ErrorContains(t, err, "max_path_hops")
}

func TestLoadRejectsUnknownFlashLoanProvider(t *testing.T) {
	body := minimalYAML + "risk:\n  flash_loan_provider: \"dydx\"\n"
	_, err := Load(writeConfig(t, body))
	assert.ErrorContains(t, err, "flash_loan_provider")
}

func TestLoadRejectsUnwiredFlashLoanProvider(t *testing.T) {
	body := minimalYAML + "risk:\n  flash_loan_provider: \"aave\"\n"
	_, err := Load(writeConfig(t, body))
	assert.ErrorContains(t, err, "no wired settlement callback")
}

func TestLoadFlashbotsRouteRequiresRelayAndKey(t *testing.T) {
	body := minimalYAML + "risk:\n  submission_route: \"flashbots\"\n"
	_, err := Load(writeConfig(t, body))
	assert.ErrorContains(t, err, "flashbots_relay_url")

	body2 := "chain:\n  rpc_http: \"https://rpc.example.test\"\n  flashbots_relay_url: \"https://relay.example.test\"\nrisk:\n  submission_route: \"flashbots\"\n"
	_, err = Load(writeConfig(t, body2))
	assert.ErrorContains(t, err, "flashbots_signing_key")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReconciliationInterval(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, 12_000*time.Millisecond, cfg.ReconciliationInterval())
}
