// Package metrics exposes Prometheus metrics for simulation runs and the
// plan cache. A Collector owns its own registry so tests and embedded
// servers never collide on the global one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "roicase"

// Collector records run and cache metrics. It implements simulation.Recorder.
//
// Metrics:
//   - roicase_simulation_runs_total: runs by status ("ok", "cancelled", "error")
//   - roicase_simulation_run_duration_seconds: wall time of finished runs
//   - roicase_simulation_trials_total: trials executed by completed runs
//   - roicase_simulation_invalid_trials_total: trials whose NPV was not finite
//   - roicase_plan_cache_requests_total: plan cache lookups by result ("hit", "miss")
//   - roicase_plan_cache_entries: plans currently cached
type Collector struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	trialsTotal   prometheus.Counter
	invalidTotal  prometheus.Counter
	cacheRequests *prometheus.CounterVec
	cacheEntries  prometheus.Gauge
}

// NewCollector creates a collector and registers its metrics, plus the Go
// runtime and process collectors, on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "simulation",
				Name:      "runs_total",
				Help:      "Total number of simulation runs by status",
			},
			[]string{"status"},
		),

		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "simulation",
				Name:      "run_duration_seconds",
				Help:      "Wall time of simulation runs",
				// 10ms - 60s
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		trialsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "simulation",
				Name:      "trials_total",
				Help:      "Total number of trials executed by completed runs",
			},
		),

		invalidTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "simulation",
				Name:      "invalid_trials_total",
				Help:      "Total number of trials with a non-finite NPV",
			},
		),

		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "plan_cache",
				Name:      "requests_total",
				Help:      "Plan cache lookups by result",
			},
			[]string{"result"},
		),

		cacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "plan_cache",
				Name:      "entries",
				Help:      "Current number of cached plans",
			},
		),
	}

	c.registry.MustRegister(
		c.runsTotal,
		c.runDuration,
		c.trialsTotal,
		c.invalidTotal,
		c.cacheRequests,
		c.cacheEntries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// RecordRun records one finished, cancelled or failed run.
func (c *Collector) RecordRun(status string, iterations, invalidTrials int, elapsed time.Duration) {
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.Observe(elapsed.Seconds())
	if status == "ok" {
		c.trialsTotal.Add(float64(iterations))
		c.invalidTotal.Add(float64(invalidTrials))
	}
}

// RecordCacheLookup records a plan cache hit or miss.
func (c *Collector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheRequests.WithLabelValues(result).Inc()
}

// SetCacheEntries updates the cached plan gauge.
func (c *Collector) SetCacheEntries(n int) {
	c.cacheEntries.Set(float64(n))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}
