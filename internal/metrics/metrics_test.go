package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/saneproj/sane-net/internal/sanerr"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := &dto.Metric{}
	if err := (<-ch).Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestConnectionLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ConnectionAccepted()
	m.ConnectionAccepted()
	if got := counterValue(t, m.connectionsActive); got != 2 {
		t.Fatalf("active connections = %v, want 2", got)
	}

	m.ConnectionClosed()
	if got := counterValue(t, m.connectionsActive); got != 1 {
		t.Fatalf("active connections = %v, want 1", got)
	}
}

func TestRecordRPC(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordRPC("OPEN", sanerr.Good, 5*time.Millisecond)

	got := counterValue(t, m.rpcRequests.WithLabelValues("OPEN", "GOOD"))
	if got != 1 {
		t.Fatalf("rpc requests = %v, want 1", got)
	}
}

func TestRecordScanBytesIgnoresNonPositive(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordScanBytes("test", 0)
	m.RecordScanBytes("test", -5)
	m.RecordScanBytes("test", 100)

	got := counterValue(t, m.scanBytes.WithLabelValues("test"))
	if got != 100 {
		t.Fatalf("scan bytes = %v, want 100", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ConnectionAccepted()
	m.ConnectionClosed()
	m.RecordRPC("OPEN", sanerr.Good, time.Millisecond)
	m.RecordScanBytes("test", 10)
	m.RecordAuthDenied()
}
