// Package metrics collects and exposes Prometheus metrics for the
// fetch scheduler and the matching engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records fetch and match activity. A nil *Collector is a
// valid no-op, so packages can record unconditionally.
type Collector struct {
	fetchSuccess prometheus.Counter
	fetchFail    prometheus.Counter
	notModified  prometheus.Counter
	cacheHits    prometheus.Counter
	fetchBytes   prometheus.Counter
	fetchLatency prometheus.Histogram
	queueDepth   prometheus.Gauge
	matchRuns    prometheus.Counter
	matchResults *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tvmark_fetch_success_total",
			Help: "Guide document fetches that returned a fresh body.",
		}),
		fetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tvmark_fetch_fail_total",
			Help: "Guide document fetches that failed.",
		}),
		notModified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tvmark_fetch_not_modified_total",
			Help: "Conditional fetches answered with 304.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tvmark_cache_hits_total",
			Help: "Fetch requests satisfied from the disk cache.",
		}),
		fetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tvmark_fetch_bytes_total",
			Help: "Decoded bytes received from the guide service.",
		}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tvmark_fetch_latency_seconds",
			Help:    "Latency of guide document fetches.",
			Buckets: prometheus.DefBuckets,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tvmark_fetch_queue_depth",
			Help: "Requests waiting in the fetch queue.",
		}),
		matchRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tvmark_match_runs_total",
			Help: "Full bookmark re-match passes over the catalog.",
		}),
		matchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tvmark_match_results_total",
			Help: "Programme match results by classification.",
		}, []string{"result"}),
	}
	reg.MustRegister(c.fetchSuccess, c.fetchFail, c.notModified, c.cacheHits,
		c.fetchBytes, c.fetchLatency, c.queueDepth, c.matchRuns, c.matchResults)
	return c
}

func (c *Collector) RecordFetchSuccess(bytes int, latency time.Duration) {
	if c == nil {
		return
	}
	c.fetchSuccess.Inc()
	c.fetchBytes.Add(float64(bytes))
	c.fetchLatency.Observe(latency.Seconds())
}

func (c *Collector) RecordFetchFailure() {
	if c == nil {
		return
	}
	c.fetchFail.Inc()
}

func (c *Collector) RecordNotModified() {
	if c == nil {
		return
	}
	c.notModified.Inc()
}

func (c *Collector) RecordCacheHit() {
	if c == nil {
		return
	}
	c.cacheHits.Inc()
}

func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(n))
}

func (c *Collector) RecordMatchRun() {
	if c == nil {
		return
	}
	c.matchRuns.Inc()
}

func (c *Collector) RecordMatchResult(result string) {
	if c == nil {
		return
	}
	c.matchResults.WithLabelValues(result).Inc()
}

// Handler returns the HTTP handler serving reg in the Prometheus text
// format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
