// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nftgate"

var (
	// Verification pipeline metrics.
	verificationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_outcomes_total",
		Help:      "Terminal verification outcomes by reason (nft_verified, no_nft, timeout).",
	}, []string{"reason"})

	staleResultsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_results_dropped_total",
		Help:      "Verification results or timeouts dropped because no live session matched.",
	})

	// Asset source metrics.
	dasRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "das_request_duration_seconds",
		Help:      "Latency of DAS searchAssets calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	// Cache metrics.
	cacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_events_total",
		Help:      "Verification cache lookups by result (hit, miss, expired, error).",
	}, []string{"result"})

	// Relay metrics.
	relayQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "relay_queue_depth",
		Help:      "Unconsumed results in the webhook relay mailbox.",
	})

	relayEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_evicted_total",
		Help:      "Results evicted from a full relay mailbox before consumption.",
	})

	// Group-admin side effects.
	groupActionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "group_action_errors_total",
		Help:      "Failed group-admin actions (message, kick); best-effort, logged and counted.",
	})
)

// RecordVerification increments the terminal-outcome counter.
func RecordVerification(reason string) {
	verificationOutcomes.WithLabelValues(reason).Inc()
}

// RecordStaleDrop increments the idempotent-drop counter.
func RecordStaleDrop() {
	staleResultsDropped.Inc()
}

// RecordDASRequest records one indexer call.
func RecordDASRequest(status string, seconds float64) {
	dasRequestDuration.WithLabelValues(status).Observe(seconds)
}

// RecordCache records one cache lookup result.
func RecordCache(result string) {
	cacheEvents.WithLabelValues(result).Inc()
}

// SetRelayDepth updates the mailbox depth gauge.
func SetRelayDepth(n int) {
	relayQueueDepth.Set(float64(n))
}

// RecordRelayEviction counts one overwritten unconsumed result.
func RecordRelayEviction() {
	relayEvicted.Inc()
}

// RecordGroupActionError counts one failed group-admin side effect.
func RecordGroupActionError() {
	groupActionErrors.Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
