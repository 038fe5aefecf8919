// Package metrics provides Prometheus instrumentation for the ingestion and
// query pipelines, following the pack's leapmux repo convention of
// package-level promauto collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestOutcomesTotal counts messages by coordinator outcome.
	IngestOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slunk_ingest_outcomes_total",
		Help: "Total ingested messages by outcome (new, duplicate, updated, reactions_updated).",
	}, []string{"outcome"})

	// IngestStageDuration records per-stage ingestion latency.
	IngestStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slunk_ingest_stage_duration_seconds",
		Help:    "Ingestion pipeline stage duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// EmbedPendingGauge tracks messages currently awaiting an embedding.
	EmbedPendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slunk_embed_pending",
		Help: "Number of messages currently marked embedding_pending.",
	})

	// QueryStageDuration records per-stage query latency.
	QueryStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slunk_query_stage_duration_seconds",
		Help:    "Query pipeline stage duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// QueryResultsTotal counts results returned across all queries.
	QueryResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slunk_query_results_total",
		Help: "Total number of result rows returned by hybrid_search.",
	})

	// ToolCallsTotal counts MCP tool invocations by tool name and outcome.
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slunk_tool_calls_total",
		Help: "Total MCP tool invocations by tool and outcome.",
	}, []string{"tool", "outcome"})

	// InFlightOperations is the resource monitor's live in-flight gauge.
	InFlightOperations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slunk_inflight_operations",
		Help: "Number of operations currently counted against the global in-flight cap.",
	})
)
