package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry and become visible after a first observation.
func TestMetricsRegistered(t *testing.T) {
	// Seed every metric so it appears in the gathered families.
	RequestsTotal.WithLabelValues("POST", "2xx", "/chat").Inc()
	RequestDuration.WithLabelValues("POST", "/chat").Observe(0.1)
	DispatchTotal.WithLabelValues("text", "qwen").Inc()
	AttemptsTotal.WithLabelValues("qwen", "success").Inc()
	AttemptLatency.WithLabelValues("qwen").Observe(0.1)
	AdapterSkippedTotal.WithLabelValues("keyed").Inc()
	FallbackTotal.WithLabelValues("text").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"relay_requests_total":                  false,
		"relay_request_duration_seconds":        false,
		"relay_streaming_connections_active":    false,
		"relay_dispatch_total":                  false,
		"relay_adapter_attempts_total":          false,
		"relay_adapter_attempt_latency_seconds": false,
		"relay_adapter_skipped_total":           false,
		"relay_fallback_total":                  false,
	}

	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}

	for name, seen := range expected {
		if !seen {
			t.Errorf("metric %s not found in default registry", name)
		}
	}
}

// TestMetricsMiddleware verifies status capture and counter increments.
func TestMetricsMiddleware(t *testing.T) {
	before := counterValue(t, "relay_requests_total", map[string]string{
		"method": "GET", "status": "4xx", "path": "/missing",
	})

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	after := counterValue(t, "relay_requests_total", map[string]string{
		"method": "GET", "status": "4xx", "path": "/missing",
	})
	if after != before+1 {
		t.Errorf("requests_total = %v, want %v", after, before+1)
	}
}

// counterValue reads a counter from the default registry by name and labels.
func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}
