package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.IncRequest("search")
	m.ObserveDuration(time.Second)
	m.IncListings()
	m.IncRetries()
	m.IncError("timeout")
	m.IncCache("hit")
	m.IncSubQuery("failed")
	m.IncRankAttempt("ok")
	m.AddReconciled("exact", 3)
	m.ObserveRank(time.Second)
}

func TestCountersRecord(t *testing.T) {
	m := New()
	m.IncCache("hit")
	m.IncCache("hit")
	m.IncCache("miss")
	m.AddReconciled("dropped", 2)
	m.AddReconciled("dropped", 0)
	m.IncError("rate_limited")

	if got := testutil.ToFloat64(m.CacheTotal.WithLabelValues("hit")); got != 2 {
		t.Fatalf("cache hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CacheTotal.WithLabelValues("miss")); got != 1 {
		t.Fatalf("cache misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ReconciledTotal.WithLabelValues("dropped")); got != 2 {
		t.Fatalf("dropped = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("rate_limited")); got != 1 {
		t.Fatalf("rate_limited errors = %v, want 1", got)
	}
}
