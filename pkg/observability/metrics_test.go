package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// counterValue reads the current value of a counter.
func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetricsAreRegistered(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	// Counters with no observations yet do not appear in the gather
	// output; touch one series per vector first.
	DecisionsTotal.WithLabelValues("permitted").Add(0)
	PolicyChecksTotal.WithLabelValues("permit-all", "permitted").Add(0)
	IdentityResolutionsTotal.WithLabelValues("ok").Add(0)
	RequestsTotal.WithLabelValues("GET", "2xx").Add(0)

	families, err = prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	names = make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	want := []string{
		"gatehouse_authz_decisions_total",
		"gatehouse_policy_checks_total",
		"gatehouse_challenges_sent_total",
		"gatehouse_identity_resolutions_total",
		"gatehouse_dispatch_inflight",
		"gatehouse_dispatch_rejected_total",
		"gatehouse_http_requests_total",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestMetricsMiddleware_CountsRequests(t *testing.T) {
	before := counterValue(t, RequestsTotal.WithLabelValues("GET", "2xx"))

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/whoami", nil))

	after := counterValue(t, RequestsTotal.WithLabelValues("GET", "2xx"))
	if after != before+1 {
		t.Errorf("2xx counter went %v -> %v, want +1", before, after)
	}
}

func TestMetricsMiddleware_StatusClasses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		class  string
	}{
		{"forbidden", http.StatusForbidden, "4xx"},
		{"server error", http.StatusInternalServerError, "5xx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := counterValue(t, RequestsTotal.WithLabelValues("POST", tt.class))

			handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/whoami", nil))

			after := counterValue(t, RequestsTotal.WithLabelValues("POST", tt.class))
			if after != before+1 {
				t.Errorf("%s counter went %v -> %v, want +1", tt.class, before, after)
			}
		})
	}
}

func TestMetricsMiddleware_ImplicitOK(t *testing.T) {
	before := counterValue(t, RequestsTotal.WithLabelValues("GET", "2xx"))

	// Writing a body without an explicit WriteHeader reports 200.
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	after := counterValue(t, RequestsTotal.WithLabelValues("GET", "2xx"))
	if after != before+1 {
		t.Errorf("2xx counter went %v -> %v, want +1", before, after)
	}
}
