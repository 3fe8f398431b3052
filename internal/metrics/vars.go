package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PoolsDegraded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_pools_degraded_total",
		Help: "Number of times a pool was marked degraded",
	})

	PoolCacheReconciliations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_poolcache_reconciliations_total",
		Help: "Number of completed pool cache reconciliation passes",
	})

	ReconciliationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_poolcache_reconciliation_failures_total",
		Help: "Number of reconciliation passes that failed to fetch chain state",
	})

	PoolCacheStalenessBlocks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_poolcache_staleness_blocks",
		Help: "Blocks since the oldest tracked pool's snapshot was last updated",
	})

	OpportunitiesEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_opportunities_emitted_total",
		Help: "Opportunities the evaluator emitted to the bus",
	})

	OpportunitiesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_opportunities_dropped_total",
		Help: "Opportunities dropped by the bus, labeled by reason",
	}, []string{"reason"})

	EvaluatorGateRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_evaluator_gate_rejections_total",
		Help: "Candidates rejected at the evaluator's gate stage, labeled by reason",
	}, []string{"reason"})

	QuoterErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_quoter_errors_total",
		Help: "Number of authoritative quoter call failures",
	})

	QuoterLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_quoter_latency_seconds",
		Help:    "Latency of authoritative on-chain quote calls",
		Buckets: prometheus.DefBuckets,
	})

	SizerIterations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_sizer_iterations",
		Help:    "Number of search iterations the trade sizer used per call",
		Buckets: prometheus.LinearBuckets(1, 1, 15),
	})

	ExecutorOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_executor_outcomes_total",
		Help: "Trade attempts terminated, labeled by final state",
	}, []string{"state"})

	ExecutorInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_executor_inflight",
		Help: "Trade attempts currently in Building or Submitted state",
	})

	ExecutorRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_executor_timeout_retries_total",
		Help: "Trade attempts resubmitted with a bumped priority fee after a receipt timeout",
	})

	ExecutedProfitUSD = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_executed_profit_usd",
		Help:    "Realized net profit in USD for included attempts",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(
		PoolsDegraded,
		PoolCacheReconciliations,
		ReconciliationFailures,
		PoolCacheStalenessBlocks,
		OpportunitiesEmitted,
		OpportunitiesDropped,
		EvaluatorGateRejections,
		QuoterErrors,
		QuoterLatency,
		SizerIterations,
		ExecutorOutcomes,
		ExecutorInflight,
		ExecutorRetries,
		ExecutedProfitUSD,
	)
}
