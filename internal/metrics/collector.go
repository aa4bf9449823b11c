// Package metrics exposes the topology discoverer's observability surface
// as a prometheus.Collector: per-host RTT and role gauges, a probe-failure
// counter and a discovery-cycle duration histogram. Purely observational;
// nothing here participates in role classification or publication.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pg_topology"

// Collector reports per-host and per-cycle discovery metrics. It is safe
// for concurrent use by multiple probe tasks.
type Collector struct {
	rtt           *prometheus.GaugeVec
	role          *prometheus.GaugeVec
	probeFailures *prometheus.CounterVec
	cycleDuration prometheus.Histogram
}

// NewCollector builds a Collector ready for registration.
func NewCollector() *Collector {
	return &Collector{
		rtt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_rtt_microseconds",
			Help:      "Round-trip time of the last successful read-only check, in microseconds.",
		}, []string{"dsn_index", "app_name"}),
		role: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_role",
			Help:      "1 if the host currently holds this role, 0 otherwise.",
		}, []string{"dsn_index", "app_name", "role"}),
		probeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_failures_total",
			Help:      "Number of probe cycles in which this host was unreachable or errored.",
		}, []string{"dsn_index"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_cycle_seconds",
			Help:      "Wall time of a full discovery cycle: fan-out, join, aggregate, publish.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.rtt.Describe(ch)
	c.role.Describe(ch)
	c.probeFailures.Describe(ch)
	ch <- c.cycleDuration.Desc()
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.rtt.Collect(ch)
	c.role.Collect(ch)
	c.probeFailures.Collect(ch)
	ch <- c.cycleDuration
}

var allRoles = []string{"none", "master", "slave", "sync_slave"}

// ObserveHost records the RTT and current role of one host after a probe.
// role must be one of "none", "master", "slave", "sync_slave"; rttMicros is
// ignored (and the RTT gauge deleted) when role is "none".
func (c *Collector) ObserveHost(index int, appName, role string, rttMicros float64) {
	idx := strconv.Itoa(index)

	for _, r := range allRoles {
		v := 0.0
		if r == role {
			v = 1
		}
		c.role.WithLabelValues(idx, appName, r).Set(v)
	}

	if role == "none" {
		c.rtt.DeleteLabelValues(idx, appName)
		return
	}
	c.rtt.WithLabelValues(idx, appName).Set(rttMicros)
}

// IncProbeFailure records that the host at index failed its probe this
// cycle.
func (c *Collector) IncProbeFailure(index int) {
	c.probeFailures.WithLabelValues(strconv.Itoa(index)).Inc()
}

// ObserveCycle records the wall time of one completed discovery cycle.
func (c *Collector) ObserveCycle(seconds float64) {
	c.cycleDuration.Observe(seconds)
}
