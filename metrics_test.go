package goSession

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsIgnoresCallsWhenDisabled(t *testing.T) {
	for name, m := range map[string]*Metrics{
		"nil":      nil,
		"disabled": NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true}),
	} {
		m.Inc(MetricLoginSuccess)
		m.Observe(MetricRequestLatency, time.Millisecond)
		if got := m.Value(MetricLoginSuccess); got != 0 {
			t.Fatalf("%s: expected 0, got %d", name, got)
		}
		snap := m.Snapshot()
		if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
			t.Fatalf("%s: expected empty snapshot, got %+v", name, snap)
		}
	}
}

func TestMetricsCountsAcrossGoroutines(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers, per = 16, 2500
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				m.Inc(MetricReconcileValidated)
				m.Inc(MetricStaleDiscarded)
			}
		}()
	}
	wg.Wait()

	for _, id := range []MetricID{MetricReconcileValidated, MetricStaleDiscarded} {
		if got := m.Value(id); got != workers*per {
			t.Fatalf("metric %d: expected %d, got %d", id, workers*per, got)
		}
	}
}

func TestBucketIndexBoundaries(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{5*time.Millisecond + time.Nanosecond, 1},
		{25 * time.Millisecond, 2},
		{99 * time.Millisecond, 4},
		{500 * time.Millisecond, 6},
		{501 * time.Millisecond, 7},
		{time.Minute, 7},
	}
	for _, tc := range cases {
		if got := bucketIndex(tc.d); got != tc.want {
			t.Fatalf("bucketIndex(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestMetricsSnapshotSeparatesCountersAndLatency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricLogout)
	m.Inc(MetricRequestLatency)
	m.Observe(MetricLoginSuccess, time.Millisecond)
	m.Observe(MetricRequestLatency, 2*time.Millisecond)
	m.Observe(MetricRequestLatency, time.Second)

	snap := m.Snapshot()
	if snap.Counters[MetricLogout] != 1 {
		t.Fatalf("expected 1 logout, got %d", snap.Counters[MetricLogout])
	}
	if _, ok := snap.Counters[MetricRequestLatency]; ok {
		t.Fatal("latency must not appear as a counter")
	}
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("counters have no histogram")
	}
	buckets := snap.Histograms[MetricRequestLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	if buckets[0] != 1 || buckets[histBucketCount-1] != 1 {
		t.Fatalf("unexpected buckets %v", buckets)
	}
}

func TestMetricsLatencyNeedsBothFlags(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricRequestLatency, time.Millisecond)
	if _, ok := m.Snapshot().Histograms[MetricRequestLatency]; ok {
		t.Fatal("latency recorded without EnableLatencyHistograms")
	}
}

func TestManagerLoginRecordsMetrics(t *testing.T) {
	h := newHarness(t)

	if _, err := h.manager.Login(context.Background(), "alice", "password1"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := h.manager.Login(context.Background(), "alice", "wrong-password"); err == nil {
		t.Fatalf("expected rejected login")
	}

	snap := h.manager.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected 1 login success, got %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginRejected] != 1 || snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("expected 1 rejected login, got %+v", snap.Counters)
	}
	var total uint64
	for _, n := range snap.Histograms[MetricRequestLatency] {
		total += n
	}
	if total == 0 {
		t.Fatal("expected request latency observations")
	}
}
