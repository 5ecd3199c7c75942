package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goSession "github.com/MrEthical07/goSession"
)

type fakeSource struct {
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goSession.MetricsSnapshot { return f.snapshot }
func (f fakeSource) EventsDropped() uint64                       { return f.dropped }

func TestCollectOnlyDroppedWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters:   map[goSession.MetricID]uint64{},
			Histograms: map[goSession.MetricID][]uint64{},
		},
	})

	assert.Equal(t, 1, testutil.CollectAndCount(exp))
}

func TestCollectCountersAndHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess:   7,
				goSession.MetricStaleDiscarded: 2,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricRequestLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 3,
	})

	expected := `
# HELP gosession_login_success_total Logins that committed a session.
# TYPE gosession_login_success_total counter
gosession_login_success_total 7
# HELP gosession_events_dropped_total Lifecycle events dropped by a full dispatcher buffer.
# TYPE gosession_events_dropped_total counter
gosession_events_dropped_total 3
`
	require.NoError(t, testutil.CollectAndCompare(exp, strings.NewReader(expected),
		"gosession_login_success_total", "gosession_events_dropped_total"))

	reg := prom.NewRegistry()
	reg.MustRegister(exp)
	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "gosession_request_latency_seconds" {
			continue
		}
		found = true
		h := mf.GetMetric()[0].GetHistogram()
		assert.Equal(t, uint64(36), h.GetSampleCount())
		assert.Equal(t, uint64(1), h.GetBucket()[0].GetCumulativeCount())
		assert.InDelta(t, 0.005, h.GetBucket()[0].GetUpperBound(), 1e-9)
	}
	assert.True(t, found, "latency histogram missing")
}

func TestHandlerServesTextFormat(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters:   map[goSession.MetricID]uint64{goSession.MetricLogout: 1},
			Histograms: map[goSession.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "gosession_logout_total 1")
}

func BenchmarkCollect(b *testing.B) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess:       1000,
				goSession.MetricLoginFailure:       40,
				goSession.MetricReconcileValidated: 800,
				goSession.MetricReconcileOffline:   10,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricRequestLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = testutil.CollectAndCount(exp)
	}
}
