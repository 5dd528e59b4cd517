// ============================================================================
// Overseer Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// Purpose: Collect and expose fleet-supervision metrics for Prometheus
//
// Metric Categories:
//
//   1. Population (Gauge) - current labor counts by phase:
//      - overseer_labors{phase="active"|"disconnected"|...}
//
//   2. Provisioning (Histogram) - time from labor creation (Spawn
//      returned) to its first node_up:
//      - overseer_spawn_duration_seconds
//
//   3. Telemetry/Retry Counters - cumulative, monotonically increasing:
//      - overseer_telemetry_total
//      - overseer_pair_retries_total
//      - overseer_spawn_failures_total
//
// Prometheus Query Examples:
//
//   # Fleet size by phase
//   sum(overseer_labors) by (phase)
//
//   # 95th percentile spawn latency
//   histogram_quantile(0.95, overseer_spawn_duration_seconds_bucket)
//
//   # Pair retry rate
//   rate(overseer_pair_retries_total[5m])
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects Prometheus metrics for a single overseer instance.
// Each Collector owns a private prometheus.Registry rather than registering
// against the global default registerer: the default registerer is
// package-level shared state, and spec.md 5 requires independent overseer
// instances within the same process not to interfere with each other.
// Registering the same metric names twice against prometheus.DefaultRegisterer
// panics with AlreadyRegisteredError the moment a second Instance is built.
type Collector struct {
	registry *prometheus.Registry

	labors         *prometheus.GaugeVec
	spawnDuration  prometheus.Histogram
	telemetryTotal prometheus.Counter
	pairRetries    prometheus.Counter
	spawnFailures  prometheus.Counter
}

// NewCollector creates a Collector backed by its own registry, so any
// number of overseer instances can coexist in one process.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		labors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "overseer_labors",
			Help: "Current number of labors by phase",
		}, []string{"phase"}),
		spawnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "overseer_spawn_duration_seconds",
			Help:    "Time from labor creation to first node_up",
			Buckets: prometheus.DefBuckets,
		}),
		telemetryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overseer_telemetry_total",
			Help: "Total telemetry messages received",
		}),
		pairRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overseer_pair_retries_total",
			Help: "Total Pair.initiate retries (load failure, exit, pair_timeout)",
		}),
		spawnFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overseer_spawn_failures_total",
			Help: "Total adapter.Spawn failures",
		}),
	}

	c.registry.MustRegister(c.labors)
	c.registry.MustRegister(c.spawnDuration)
	c.registry.MustRegister(c.telemetryTotal)
	c.registry.MustRegister(c.pairRetries)
	c.registry.MustRegister(c.spawnFailures)

	return c
}

// Registry returns this Collector's private registry, for wiring into
// StartServer or a custom promhttp.Handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// SetPhaseCount records the current count of labors in phase.
func (c *Collector) SetPhaseCount(phase string, count int) {
	c.labors.WithLabelValues(phase).Set(float64(count))
}

// ObserveSpawnDuration records time-to-node_up in seconds.
func (c *Collector) ObserveSpawnDuration(seconds float64) {
	c.spawnDuration.Observe(seconds)
}

// RecordTelemetry increments the telemetry counter.
func (c *Collector) RecordTelemetry() {
	c.telemetryTotal.Inc()
}

// RecordPairRetry increments the pair-retry counter.
func (c *Collector) RecordPairRetry() {
	c.pairRetries.Inc()
}

// RecordSpawnFailure increments the spawn-failure counter.
func (c *Collector) RecordSpawnFailure() {
	c.spawnFailures.Inc()
}

// StartServer starts a Prometheus /metrics HTTP server on port, serving
// only this Collector's own registry.
func (c *Collector) StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
