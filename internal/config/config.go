// Package config loads the YAML configuration surface for the arbitrage
// core: chain connectivity, the profit/risk gate, execution routing and the
// ambient logging/metrics/persistence stack.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arbcore/triarb/internal/flashloan"
	"github.com/arbcore/triarb/internal/types"
)

// FlashLoanProvider is the provider name as decoded from YAML; validation
// converts it to types.FlashLoanProvider to consult the flashloan package.
type FlashLoanProvider string

const (
	ProviderUniswapV3 FlashLoanProvider = "uniswap_v3"
	ProviderUniswapV4 FlashLoanProvider = "uniswap_v4"
	ProviderAave      FlashLoanProvider = "aave"
	ProviderBalancer  FlashLoanProvider = "balancer"
)

// SubmissionRoute selects the executor's delivery path for a signed tx.
type SubmissionRoute string

const (
	RouteNormal    SubmissionRoute = "normal"
	RouteFlashbots SubmissionRoute = "flashbots"
	RouteBoth      SubmissionRoute = "both"
)

// Config is the root configuration object, unmarshalled from YAML the way
// the teacher's Config was: nested anonymous structs grouped by concern.
type Config struct {
	Chain struct {
		Network               string `yaml:"network"`
		RPCHTTP               string `yaml:"rpc_http"`
		RPCWS                 string `yaml:"rpc_ws"`
		WalletPK              string `yaml:"wallet_pk"`
		MaxConcurrentRequests int    `yaml:"max_concurrent_requests"`
		FlashbotsRelayURL     string `yaml:"flashbots_relay_url"`
		FlashbotsSigningKey   string `yaml:"flashbots_signing_key"`
	} `yaml:"chain"`

	Contracts struct {
		ExecutorAddress string `yaml:"executor_address"`
		QuoterV2        string `yaml:"quoter_v2"`
		Multicall3      string `yaml:"multicall3"`
	} `yaml:"contracts"`

	Risk struct {
		MinProfitThresholdUSD float64            `yaml:"min_profit_threshold_usd"`
		MinNotionalUSD        float64            `yaml:"min_notional_usd"`
		MaxSlippageBps        int                `yaml:"max_slippage_bps"`
		MaxPathHops           int                `yaml:"max_path_hops"`
		GasPriceMultiplier    float64            `yaml:"gas_price_multiplier"`
		FlashLoanProvider     FlashLoanProvider  `yaml:"flash_loan_provider"`
		SubmissionRoute       SubmissionRoute    `yaml:"submission_route"`
		MaxStalenessBlocks    uint64             `yaml:"max_staleness_blocks"`
		ReorgSafety           uint64             `yaml:"reorg_safety"`
		OpportunityBusCapacity int               `yaml:"opportunity_bus_capacity"`
		MaxFeeSumBps          int                `yaml:"max_fee_sum_bps"`
	} `yaml:"risk"`

	Timings struct {
		ReconciliationMs int `yaml:"reconciliation_ms"`
		StalenessPollMs  int `yaml:"staleness_poll_ms"`
		ReceiptPollMs    int `yaml:"receipt_poll_ms"`
	} `yaml:"timings"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	Persistence struct {
		SQLitePath   string `yaml:"sqlite_path"`
		RedisAddr    string `yaml:"redis_addr"`
		HotReload    bool   `yaml:"hot_reload"`
		PoolsKey     string `yaml:"pools_channel"`
		PathsKey     string `yaml:"paths_channel"`
	} `yaml:"persistence"`

	// Pricing is a static reference table used to net gas costs and
	// opportunity profit into USD. A live oracle is out of scope; operators
	// refresh this table the same way they'd redeploy any other config.
	Pricing struct {
		NativeToken   string             `yaml:"native_token"`
		USDPerToken   map[string]float64 `yaml:"usd_per_token"`
		TokenDecimals map[string]uint8   `yaml:"token_decimals"`
	} `yaml:"pricing"`

	PathCatalog string `yaml:"path_catalog"`
}

// Load reads and validates a YAML configuration file, applying the same
// kind of defaulting logic the teacher's config.Load used.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Chain.MaxConcurrentRequests == 0 {
		c.Chain.MaxConcurrentRequests = 32
	}
	if c.Risk.MaxPathHops == 0 {
		c.Risk.MaxPathHops = 3
	}
	if c.Risk.MaxStalenessBlocks == 0 {
		c.Risk.MaxStalenessBlocks = 2
	}
	if c.Risk.ReorgSafety == 0 {
		c.Risk.ReorgSafety = 12
	}
	if c.Risk.OpportunityBusCapacity == 0 {
		c.Risk.OpportunityBusCapacity = 256
	}
	if c.Risk.GasPriceMultiplier == 0 {
		c.Risk.GasPriceMultiplier = 1.15
	}
	if c.Risk.MaxFeeSumBps == 0 {
		c.Risk.MaxFeeSumBps = 100
	}
	if c.Risk.MinNotionalUSD == 0 {
		c.Risk.MinNotionalUSD = 100
	}
	if c.Risk.SubmissionRoute == "" {
		c.Risk.SubmissionRoute = RouteNormal
	}
	if c.Risk.FlashLoanProvider == "" {
		c.Risk.FlashLoanProvider = ProviderUniswapV3
	}
	if c.Timings.ReconciliationMs == 0 {
		c.Timings.ReconciliationMs = 12_000
	}
	if c.Timings.StalenessPollMs == 0 {
		c.Timings.StalenessPollMs = 250
	}
	if c.Timings.ReceiptPollMs == 0 {
		c.Timings.ReceiptPollMs = 1_000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Persistence.PoolsKey == "" {
		c.Persistence.PoolsKey = "arbitrage_pools"
	}
	if c.Persistence.PathsKey == "" {
		c.Persistence.PathsKey = "arbitrage_pool_paths"
	}
}

func (c *Config) validate() error {
	if c.Chain.RPCHTTP == "" {
		return fmt.Errorf("chain.rpc_http is required")
	}
	if c.Risk.MaxPathHops != 3 {
		return fmt.Errorf("max_path_hops must be 3, hop counts beyond three are out of scope")
	}
	switch c.Risk.FlashLoanProvider {
	case ProviderUniswapV3, ProviderUniswapV4, ProviderAave, ProviderBalancer:
	default:
		return fmt.Errorf("unknown flash_loan_provider %q", c.Risk.FlashLoanProvider)
	}
	if !flashloan.IsCallbackWired(types.FlashLoanProvider(c.Risk.FlashLoanProvider)) {
		return fmt.Errorf("flash_loan_provider %q has no wired settlement callback", c.Risk.FlashLoanProvider)
	}
	switch c.Risk.SubmissionRoute {
	case RouteNormal, RouteFlashbots, RouteBoth:
	default:
		return fmt.Errorf("unknown submission_route %q", c.Risk.SubmissionRoute)
	}
	if c.Risk.SubmissionRoute != RouteNormal && c.Chain.FlashbotsRelayURL == "" {
		return fmt.Errorf("submission_route %q requires chain.flashbots_relay_url", c.Risk.SubmissionRoute)
	}
	if c.Risk.SubmissionRoute != RouteNormal && c.Chain.FlashbotsSigningKey == "" {
		return fmt.Errorf("submission_route %q requires chain.flashbots_signing_key", c.Risk.SubmissionRoute)
	}
	return nil
}

// ReconciliationInterval returns the pool-cache reconciliation period.
func (c *Config) ReconciliationInterval() time.Duration {
	return time.Duration(c.Timings.ReconciliationMs) * time.Millisecond
}

// StalenessPollInterval returns how often the executor rechecks queued
// opportunities against the current head.
func (c *Config) StalenessPollInterval() time.Duration {
	return time.Duration(c.Timings.StalenessPollMs) * time.Millisecond
}

// ReceiptPollInterval returns how often the executor polls for a receipt.
func (c *Config) ReceiptPollInterval() time.Duration {
	return time.Duration(c.Timings.ReceiptPollMs) * time.Millisecond
}
