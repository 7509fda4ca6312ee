// Package metrics holds the Prometheus collectors for the API, the view
// cache, machine translation and migrations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stratacms"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "View cache hits/misses/sets/errors/invalidations."},
		[]string{"event"},
	)
	TranslationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "translation_requests_total", Help: "Machine translation calls."},
		[]string{"status"},
	)
	MigrationDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "migration_documents_total", Help: "Documents visited by migrations."},
		[]string{"migration", "outcome"},
	)
)

// NewRegistry returns a registry with the app collectors plus the Go and
// process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, CacheEvents, TranslationRequests, MigrationDocuments)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveHTTP records one request.
func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

// ObserveCache records a cache event: hit, miss, set, error or invalidate.
func ObserveCache(event string) {
	CacheEvents.WithLabelValues(event).Inc()
}

// ObserveTranslation records a provider call outcome: ok, error or disabled.
func ObserveTranslation(status string) {
	TranslationRequests.WithLabelValues(status).Inc()
}

// ObserveMigration records a document outcome: changed, unchanged or failed.
func ObserveMigration(migration, outcome string) {
	MigrationDocuments.WithLabelValues(migration, outcome).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so /pages/slug/{slug} is one series regardless of slug.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		route := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = "unmatched"
		}
		ObserveHTTP(route, r.Method, sw.Status(), time.Since(start))
	})
}
