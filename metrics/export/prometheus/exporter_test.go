package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	memberAuth "github.com/MrEthical07/memberAuth"
)

type fakeSource struct {
	snapshot memberAuth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() memberAuth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := New(fakeSource{
		snapshot: memberAuth.MetricsSnapshot{
			Counters:   map[memberAuth.MetricID]uint64{},
			Histograms: map[memberAuth.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderGroupsCountersIntoFamilies(t *testing.T) {
	exp := New(fakeSource{
		snapshot: memberAuth.MetricsSnapshot{
			Counters: map[memberAuth.MetricID]uint64{
				memberAuth.MetricLoginSuccess:             7,
				memberAuth.MetricLoginRateLimited:         3,
				memberAuth.MetricHashMismatch:             1,
				memberAuth.MetricSessionsCleared:          2,
				memberAuth.MetricAccountExpiredTransition: 4,
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		`memberauth_logins_total{outcome="success"} 7`,
		`memberauth_logins_total{outcome="throttled"} 3`,
		`memberauth_logins_total{outcome="failure"} 0`,
		`memberauth_cookie_rejections_total{reason="hash_mismatch"} 1`,
		`memberauth_session_events_total{cause="cleared_all"} 2`,
		`memberauth_account_events_total{event="expired"} 4`,
		"memberauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "# TYPE memberauth_logins_total counter"); n != 1 {
		t.Fatalf("expected one TYPE line per family, got %d", n)
	}
	if strings.Contains(out, "memberauth_validate_latency_seconds") {
		t.Fatalf("histogram must be omitted when latency tracking is off:\n%s", out)
	}
}

func TestRenderLatencyHistogram(t *testing.T) {
	exp := New(fakeSource{
		snapshot: memberAuth.MetricsSnapshot{
			Counters: map[memberAuth.MetricID]uint64{},
			Histograms: map[memberAuth.MetricID][]uint64{
				memberAuth.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			LatencySums: map[memberAuth.MetricID]time.Duration{
				memberAuth.MetricValidateLatency: 1500 * time.Millisecond,
			},
		},
	})

	out := exp.Render()
	for _, want := range []string{
		`memberauth_validate_latency_seconds_bucket{le="0.005"} 1`,
		`memberauth_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"memberauth_validate_latency_seconds_count 36",
		"memberauth_validate_latency_seconds_sum 1.5",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderFromEngine(t *testing.T) {
	cfg := memberAuth.DefaultConfig()
	cfg.Metrics.Enabled = true
	m := memberAuth.NewMetrics(cfg.Metrics)
	m.Inc(memberAuth.MetricLogout)

	exp := New(fakeSource{snapshot: m.Snapshot()})
	if out := exp.Render(); !strings.Contains(out, `memberauth_session_events_total{cause="logout"} 1`) {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := New(fakeSource{
		snapshot: memberAuth.MetricsSnapshot{
			Counters: map[memberAuth.MetricID]uint64{memberAuth.MetricLoginSuccess: 1},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); got != ContentType {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := New(fakeSource{
		snapshot: memberAuth.MetricsSnapshot{
			Counters: map[memberAuth.MetricID]uint64{
				memberAuth.MetricLoginSuccess:        1000,
				memberAuth.MetricLoginFailure:        40,
				memberAuth.MetricValidateSuccess:     800,
				memberAuth.MetricValidateFailure:     10,
				memberAuth.MetricHashMismatch:        6,
				memberAuth.MetricSessionLimitReached: 20,
				memberAuth.MetricAccountRejected:     3,
			},
			Histograms: map[memberAuth.MetricID][]uint64{
				memberAuth.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
