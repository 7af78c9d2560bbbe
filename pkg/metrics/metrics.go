package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scanner, coalescer and dispatcher series, partitioned by chain.

var (
	// Scanner
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "scanner",
		Name:      "pages_fetched_total",
		Help:      "Total pages returned by the remote source",
	}, []string{"chain"})

	RecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "scanner",
		Name:      "records_skipped_total",
		Help:      "Raw records dropped for missing address or block number",
	}, []string{"chain"})

	// Source
	SourceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "source",
		Name:      "requests_total",
		Help:      "Remote source requests by status",
	}, []string{"source", "status"})

	SourceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "source",
		Name:      "request_duration_seconds",
		Help:      "Remote source request duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"source"})

	// Coalescer
	CoalescerBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "coalescer",
		Name:      "batches_total",
		Help:      "Timestamp batches executed",
	}, []string{"chain"})

	CoalescerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "coalescer",
		Name:      "requests_total",
		Help:      "Timestamp requests received",
	}, []string{"chain"})

	CoalescerBatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "coalescer",
		Name:      "batch_failures_total",
		Help:      "Batches whose range scan failed",
	}, []string{"chain"})

	CoalescerMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "coalescer",
		Name:      "missing_blocks_total",
		Help:      "Requested blocks absent from a successful listing",
	}, []string{"chain"})

	CoalescerBatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "coalescer",
		Name:      "batch_blocks",
		Help:      "Distinct block numbers per batch",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
	}, []string{"chain"})

	// Dispatcher
	HandlerInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "dispatcher",
		Name:      "invocations_total",
		Help:      "Block handler invocations by handler and status",
	}, []string{"chain", "handler", "status"})

	HandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "dispatcher",
		Name:      "invocation_duration_seconds",
		Help:      "Block handler invocation duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"chain", "handler"})

	HandlerRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "dispatcher",
		Name:      "invocation_retries_total",
		Help:      "Failed block handler invocations that were re-invoked",
	}, []string{"chain", "handler"})

	DiscoveriesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "dispatcher",
		Name:      "discoveries_emitted_total",
		Help:      "Enriched discoveries handed to the sink",
	}, []string{"chain"})

	EffectCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "dispatcher",
		Name:      "effect_cache_hits_total",
		Help:      "Effect calls served from the memo cache",
	}, []string{"effect"})

	EffectRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "dispatcher",
		Name:      "effect_retries_total",
		Help:      "Effect calls retried after a failure",
	}, []string{"effect"})

	CoverageGapBlocks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "dispatcher",
		Name:      "coverage_gap_blocks",
		Help:      "Blocks below the highest scanned block that no window covered",
	}, []string{"chain"})

	HeadBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "dispatcher",
		Name:      "head_block",
		Help:      "Latest chain height seen by the live handler",
	}, []string{"chain"})

	// Sinks
	SinkPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "sink",
		Name:      "published_total",
		Help:      "Records written by sink and status",
	}, []string{"sink", "status"})
)
