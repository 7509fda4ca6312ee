package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/stratacms/internal/app/system/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistryAndHandler(t *testing.T) {
	reg := metrics.NewRegistry()

	metrics.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "stratacms_http_requests_total") {
		t.Fatalf("expected stratacms_http_requests_total in output")
	}
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/pages/slug/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/pages/slug/{slug}", "GET", "404"))
	for _, slug := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/pages/slug/"+slug, nil))
	}
	after := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/pages/slug/{slug}", "GET", "404"))

	if after-before != 2 {
		t.Fatalf("expected 2 requests on one series, got %v", after-before)
	}
}

func TestObserveCounters(t *testing.T) {
	tests := []struct {
		name    string
		observe func()
		read    func() float64
	}{
		{"cache", func() { metrics.ObserveCache("hit") },
			func() float64 { return testutil.ToFloat64(metrics.CacheEvents.WithLabelValues("hit")) }},
		{"translation", func() { metrics.ObserveTranslation("ok") },
			func() float64 { return testutil.ToFloat64(metrics.TranslationRequests.WithLabelValues("ok")) }},
		{"migration", func() { metrics.ObserveMigration("pages-backfill-active", "changed") },
			func() float64 {
				return testutil.ToFloat64(metrics.MigrationDocuments.WithLabelValues("pages-backfill-active", "changed"))
			}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.read()
			tt.observe()
			if got := tt.read() - before; got != 1 {
				t.Fatalf("delta = %v, want 1", got)
			}
		})
	}
}
