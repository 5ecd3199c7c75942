package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID names one in-process counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that committed a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins that returned an error.
	MetricLoginFailure
	// MetricLoginRejected counts logins the server refused with a 4xx.
	MetricLoginRejected
	// MetricRegisterSuccess counts created accounts.
	MetricRegisterSuccess
	// MetricRegisterFailure counts failed account creations.
	MetricRegisterFailure
	// MetricLogout counts Logout calls.
	MetricLogout
	// MetricReconcileValidated counts reconciles the server confirmed.
	MetricReconcileValidated
	// MetricReconcileRejected counts reconciles that ended in a 401/403.
	MetricReconcileRejected
	// MetricReconcileOffline counts reconciles that fell back to the cached profile.
	MetricReconcileOffline
	// MetricReconcileOfflineExpired counts offline reconciles refused by an offline rule.
	MetricReconcileOfflineExpired
	// MetricProfileUpdateSuccess counts successful profile updates.
	MetricProfileUpdateSuccess
	// MetricProfileUpdateFailure counts failed profile updates.
	MetricProfileUpdateFailure
	// MetricPasswordChangeSuccess counts successful password changes.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeFailure counts failed password changes.
	MetricPasswordChangeFailure
	// MetricAvatarUpdateSuccess counts successful avatar replacements.
	MetricAvatarUpdateSuccess
	// MetricAvatarUpdateFailure counts failed avatar replacements.
	MetricAvatarUpdateFailure
	// MetricOperationInFlight counts calls rejected because the same operation was running.
	MetricOperationInFlight
	// MetricStaleDiscarded counts responses dropped by stale-update protection.
	MetricStaleDiscarded
	// MetricStorageFailure counts swallowed session store failures.
	MetricStorageFailure
	// MetricEventDropped counts events dropped by a full dispatcher buffer.
	MetricEventDropped
	// MetricRequestLatency is the identity service round-trip histogram.
	MetricRequestLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of the latency buckets. The last
// bucket collects everything slower.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const histBucketCount = len(latencyBounds) + 1

// counter sits alone on its cache line; the flows bump different counters from
// different goroutines.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free counters and the request latency buckets. A nil or
// disabled Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]counter
	latency       [histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds a Metrics from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id. MetricRequestLatency is not a counter and is ignored.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount || id == MetricRequestLatency {
		return
	}
	m.counters[id].Add(1)
}

// Observe records one request round trip. Only MetricRequestLatency has buckets.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricRequestLatency {
		return
	}
	m.latency[bucketIndex(d)].Add(1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter, plus the latency buckets when they are recorded.
// A disabled Metrics yields empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id != MetricRequestLatency {
			s.Counters[id] = m.counters[id].Load()
		}
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.latency[i].Load()
		}
		s.Histograms[MetricRequestLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}
