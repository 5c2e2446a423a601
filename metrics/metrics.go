package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ailetter"

// Registry holds every pipeline collector. A private registry keeps Go runtime
// collectors out of the exported set unless explicitly added.
var Registry = prometheus.NewRegistry()

var (
	SourceItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_items_total",
		Help:      "Raw items returned by source adapters.",
	}, []string{"source"})

	SourceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_failures_total",
		Help:      "Source adapter failures.",
	}, []string{"source"})

	EnrichmentFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrichment_failures_total",
		Help:      "Items whose description could not be fetched.",
	}, []string{"source"})

	DedupHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dedup_hits_total",
		Help:      "Items dropped as already delivered or repeated within a run.",
	}, []string{"source"})

	HistoryDegraded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "history_degraded_total",
		Help:      "Runs that continued without deduplication because history was unreadable.",
	})

	CurationViolations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "curation_violations_total",
		Help:      "Curation answers with invalid indices or selection counts.",
	}, []string{"category"})

	CurationRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "curation_retries_total",
		Help:      "Corrective curation re-requests.",
	}, []string{"category"})

	SummaryRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summary_retries_total",
		Help:      "Summarization attempts beyond the first.",
	})

	SummaryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summary_failures_total",
		Help:      "Articles omitted after exhausting summarization attempts.",
	})

	ReasoningCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reasoning_calls_total",
		Help:      "Calls to the reasoning service.",
	}, []string{"operation", "status"})

	ReasoningTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reasoning_tokens_total",
		Help:      "Tokens reported by the reasoning service.",
	}, []string{"operation", "kind"})

	DigestsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "digests_published_total",
		Help:      "Digests durably persisted.",
	})

	RunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Pipeline run duration.",
		Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(
		SourceItems,
		SourceFailures,
		EnrichmentFailures,
		DedupHits,
		HistoryDegraded,
		CurationViolations,
		CurationRetries,
		SummaryRetries,
		SummaryFailures,
		ReasoningCalls,
		ReasoningTokens,
		DigestsPublished,
		RunDuration,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
