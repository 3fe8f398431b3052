// Command arbcore runs the triangular-arbitrage core: it watches pool
// state over a chain gateway, evaluates the configured path catalog on
// every relevant swap, and drives an atomic executor off the resulting
// opportunity bus.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arbcore/triarb/internal/config"
	"github.com/arbcore/triarb/internal/evaluator"
	"github.com/arbcore/triarb/internal/executor"
	"github.com/arbcore/triarb/internal/gateway"
	"github.com/arbcore/triarb/internal/metrics"
	"github.com/arbcore/triarb/internal/multicall"
	"github.com/arbcore/triarb/internal/oppbus"
	"github.com/arbcore/triarb/internal/pathindex"
	"github.com/arbcore/triarb/internal/persistence"
	"github.com/arbcore/triarb/internal/poolcache"
	"github.com/arbcore/triarb/internal/pricing"
	"github.com/arbcore/triarb/internal/risk"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to the core's config.yaml")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Warn("shutdown signal received")
		cancel()
	}()

	metrics.Serve(ctx, cfg.Metrics.ListenAddr, nil, logger)

	var rel gateway.PrivateBundleSubmitter
	if cfg.Chain.FlashbotsSigningKey != "" {
		relayKey, err := executor.LoadPrivateKey(cfg.Chain.FlashbotsSigningKey)
		if err != nil {
			logger.Fatal("load flashbots signing key", zap.Error(err))
		}
		rel = gateway.NewFlashbotsRelay(cfg.Chain.FlashbotsRelayURL, relayKey)
	}

	gw, err := gateway.New(cfg, logger, rel)
	if err != nil {
		logger.Fatal("gateway init", zap.Error(err))
	}
	defer gw.Close()

	walletKey, err := executor.LoadPrivateKey(cfg.Chain.WalletPK)
	if err != nil {
		logger.Fatal("load wallet key", zap.Error(err))
	}

	mcClient, err := ethclient.Dial(cfg.Chain.RPCHTTP)
	if err != nil {
		logger.Fatal("dial multicall rpc", zap.Error(err))
	}
	defer mcClient.Close()
	mc, err := multicall.New(mcClient, common.HexToAddress(cfg.Contracts.Multicall3))
	if err != nil {
		logger.Fatal("multicall init", zap.Error(err))
	}

	paths, err := pathindex.LoadCatalog(cfg.PathCatalog)
	if err != nil {
		logger.Fatal("load path catalog", zap.Error(err))
	}
	var idxPtr atomic.Pointer[pathindex.Index]
	idxPtr.Store(pathindex.Build(paths))
	logger.Info("path catalog loaded", zap.Int("path_count", idxPtr.Load().Len()))

	cache := poolcache.New(cfg, mc, logger)
	bootstrapCtx, bootstrapCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := cache.Bootstrap(bootstrapCtx, idxPtr.Load().TrackedPools()); err != nil {
		bootstrapCancel()
		logger.Fatal("pool cache bootstrap", zap.Error(err))
	}
	bootstrapCancel()
	go cache.RunReconciliationLoop(ctx, cfg.ReconciliationInterval())

	priceTable, err := pricing.New(cfg, gw)
	if err != nil {
		logger.Fatal("pricing table init", zap.Error(err))
	}

	store, err := persistence.Open(cfg.Persistence.SQLitePath)
	if err != nil {
		logger.Fatal("persistence store init", zap.Error(err))
	}
	defer store.Close()

	riskEngine := risk.NewEngine(cfg)
	bus := oppbus.New(cfg.Risk.OpportunityBusCapacity)
	eval := evaluator.New(cfg, cache, riskEngine, gw, priceTable, priceTable, bus, logger)
	exec := executor.New(cfg, gw, store, idxPtr.Load(), logger, walletKey)

	if cfg.Persistence.HotReload {
		hr := persistence.NewHotReload(cfg, logger,
			func(reloadCtx context.Context) {
				refreshCtx, refreshCancel := context.WithTimeout(reloadCtx, 30*time.Second)
				defer refreshCancel()
				if err := cache.Bootstrap(refreshCtx, idxPtr.Load().TrackedPools()); err != nil {
					logger.Error("pool cache reload failed", zap.Error(err))
				}
			},
			func(reloadCtx context.Context) {
				reloaded, err := pathindex.LoadCatalog(cfg.PathCatalog)
				if err != nil {
					logger.Error("path catalog reload failed", zap.Error(err))
					return
				}
				newIdx := pathindex.Build(reloaded)
				idxPtr.Store(newIdx)
				logger.Info("path catalog reloaded", zap.Int("path_count", newIdx.Len()))
			},
		)
		defer hr.Close()
		go func() {
			if err := hr.Run(ctx); err != nil {
				logger.Error("hot reload loop stopped", zap.Error(err))
			}
		}()
	}

	// The dispatch loop: every log touching a tracked pool re-evaluates the
	// paths that pool participates in, publishing to the bus on success.
	_, err = gw.SubscribeLogs(ctx, idxPtr.Load().TrackedPools(), nil, func(l gethtypes.Log) {
		poolAddr := l.Address
		if err := cache.ApplyLog(l); err != nil {
			cache.MarkDegraded(poolAddr, err)
			logger.Warn("pool cache log apply failed", zap.Error(err), zap.String("pool", poolAddr.Hex()))
			return
		}
		head, err := gw.HeadBlockNumber(ctx)
		if err != nil {
			logger.Warn("head block lookup failed", zap.Error(err))
			return
		}
		notionalUSD := triggerNotionalUSD(cache, priceTable, l, logger)
		for _, path := range idxPtr.Load().PathsFor(poolAddr) {
			if !path.Enabled {
				continue
			}
			eval.Evaluate(ctx, path, head, notionalUSD)
		}
	})
	if err != nil {
		logger.Fatal("subscribe logs", zap.Error(err))
	}

	logger.Info("arbcore started",
		zap.Int("tracked_pools", len(idxPtr.Load().TrackedPools())),
		zap.String("submission_route", string(cfg.Risk.SubmissionRoute)),
	)

	for {
		opp, ok := bus.Take(ctx)
		if !ok {
			break
		}
		head, err := gw.HeadBlockNumber(ctx)
		if err != nil {
			logger.Warn("head block lookup failed", zap.Error(err))
			continue
		}
		exec.Submit(ctx, opp, head)
	}

	logger.Info("arbcore stopped")
}

// triggerNotionalUSD decodes the USD size of the swap that produced l, for
// the risk gate's notional floor. Non-swap logs (Mint/Burn) and any
// decode/pricing failure fall back to risk.UnknownNotional, which the gate
// treats as "not applicable" rather than a rejection.
func triggerNotionalUSD(cache *poolcache.Cache, priceTable *pricing.Table, l gethtypes.Log, logger *zap.Logger) decimal.Decimal {
	if len(l.Topics) == 0 || l.Topics[0] != gateway.TopicSwap {
		return risk.UnknownNotional
	}
	tokenIn, amountIn, err := cache.SwapNotional(l)
	if err != nil {
		logger.Warn("swap notional decode failed", zap.Error(err))
		return risk.UnknownNotional
	}
	usd, err := priceTable.ToUSD(tokenIn, amountIn)
	if err != nil {
		logger.Warn("swap notional usd conversion failed", zap.Error(err))
		return risk.UnknownNotional
	}
	return usd
}
