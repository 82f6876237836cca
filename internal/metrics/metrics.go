// Package metrics exposes Prometheus collectors for the crawler and indexer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	channelCrawlsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chansearch_channel_crawls_total",
			Help: "Total number of channel crawls, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	channelCrawlDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chansearch_channel_crawl_duration_seconds",
			Help:    "Histogram of per-channel crawl durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	messagesStoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chansearch_messages_stored_total",
			Help: "Total number of messages written to the store.",
		},
	)

	platformRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chansearch_platform_requests_total",
			Help: "Total number of platform API requests, labeled by result.",
		},
		[]string{"result"},
	)

	platformRateLimitDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chansearch_platform_rate_limit_delay_seconds",
			Help:    "Histogram of time spent waiting on the platform rate limiter.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	indexedDocumentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chansearch_indexed_documents_total",
			Help: "Total number of documents submitted to the search index.",
		},
	)

	indexBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chansearch_index_batches_total",
			Help: "Total number of bulk index requests, labeled by status.",
		},
		[]string{"status"},
	)

	loopIterationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chansearch_loop_iterations_total",
			Help: "Total number of run loop iterations, labeled by loop and status.",
		},
		[]string{"loop", "status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveChannelCrawl records one finished channel crawl.
func ObserveChannelCrawl(outcome string, stored int, duration time.Duration) {
	channelCrawlsTotal.WithLabelValues(outcome).Inc()
	channelCrawlDurationSeconds.Observe(duration.Seconds())
	if stored > 0 {
		messagesStoredTotal.Add(float64(stored))
	}
}

// ObservePlatformRequest counts a platform call by result ("ok", "transient", "fatal").
func ObservePlatformRequest(result string) {
	platformRequestsTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	platformRateLimitDelaySeconds.Observe(duration.Seconds())
}

// ObserveIndexBatch records one bulk request and, on success, its document count.
func ObserveIndexBatch(status string, docs int) {
	indexBatchesTotal.WithLabelValues(status).Inc()
	if status == "ok" && docs > 0 {
		indexedDocumentsTotal.Add(float64(docs))
	}
}

// ObserveLoopIteration counts one iteration of a named run loop.
func ObserveLoopIteration(loop, status string) {
	loopIterationsTotal.WithLabelValues(loop, status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
