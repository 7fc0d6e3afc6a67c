// Package metrics exposes the prometheus counters and histograms saned
// records during operation (domain stack addition: connection lifecycle,
// per-procedure RPC counts, scan bytes transferred, auth denials).
// Grounded on dittofs's pkg/metrics/prometheus instrumentation style: a
// struct of promauto-registered vectors, nil-receiver methods that are
// safe to call even when metrics are disabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/saneproj/sane-net/internal/sanerr"
)

// Metrics holds saned's Prometheus instrumentation. A nil *Metrics is
// valid and every method is a no-op, so callers can pass nil when the
// metrics server is disabled (spec SPEC_FULL §7, MetricsConfig.Enabled)
// without branching at every call site.
type Metrics struct {
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
	connectionsActive   prometheus.Gauge

	rpcRequests *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec

	scanBytes *prometheus.CounterVec

	authDenials prometheus.Counter
}

// New registers saned's metric families against reg and returns a
// *Metrics that records into them. Pass a dedicated
// prometheus.NewRegistry() (not prometheus.DefaultRegisterer) so tests
// can construct independent instances without colliding on duplicate
// registration.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		connectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "saned_connections_accepted_total",
			Help: "Total number of control connections accepted.",
		}),
		connectionsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "saned_connections_closed_total",
			Help: "Total number of control connections closed.",
		}),
		connectionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "saned_connections_active",
			Help: "Current number of open control connections.",
		}),
		rpcRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "saned_rpc_requests_total",
			Help: "Total RPC requests handled, by procedure and status.",
		}, []string{"procedure", "status"}),
		rpcDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "saned_rpc_duration_seconds",
			Help:    "RPC handler duration in seconds, by procedure.",
			Buckets: prometheus.DefBuckets,
		}, []string{"procedure"}),
		scanBytes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "saned_scan_bytes_total",
			Help: "Total scan data bytes pumped to clients, by backend.",
		}, []string{"backend"}),
		authDenials: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "saned_auth_denials_total",
			Help: "Total AUTHORIZE attempts that were denied.",
		}),
	}
}

func (m *Metrics) ConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
	m.connectionsActive.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
	m.connectionsActive.Dec()
}

// RecordRPC records one completed RPC's outcome and latency.
func (m *Metrics) RecordRPC(procedure string, status sanerr.Status, d time.Duration) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(procedure, status.String()).Inc()
	m.rpcDuration.WithLabelValues(procedure).Observe(d.Seconds())
}

// RecordScanBytes adds n bytes moved through the data channel for backend.
func (m *Metrics) RecordScanBytes(backend string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.scanBytes.WithLabelValues(backend).Add(float64(n))
}

func (m *Metrics) RecordAuthDenied() {
	if m == nil {
		return
	}
	m.authDenials.Inc()
}
