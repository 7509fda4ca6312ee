// internal/app/features/health/health.go
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dalemusser/stratacms/internal/app/system/pagecache"
	"github.com/dalemusser/stratacms/internal/app/system/tasks"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// Handler provides health check endpoints.
type Handler struct {
	mongoClient *mongo.Client
	cache       *pagecache.Cache
	jobs        JobReporter
	logger      *zap.Logger
}

// JobReporter exposes background job state; *tasks.Runner satisfies it.
type JobReporter interface {
	Status() []tasks.JobStatus
}

// NewHandler creates a new health check Handler. cache may be nil when the
// view cache is disabled.
func NewHandler(mongoClient *mongo.Client, cache *pagecache.Cache, logger *zap.Logger) *Handler {
	return &Handler{
		mongoClient: mongoClient,
		cache:       cache,
		logger:      logger,
	}
}

// WithJobs adds the state of the integrity report jobs to /health.
func (h *Handler) WithJobs(jobs JobReporter) *Handler {
	h.jobs = jobs
	return h
}

// Response represents the health check response.
type Response struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
	Jobs     []tasks.JobStatus `json:"jobs,omitempty"`
}

// Routes returns a chi.Router with health check routes mounted.
// Provides /health (full check), /health/ready, and /health/live.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Check)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
	return r
}

// MountRootEndpoints adds /ready and /livez endpoints directly on the root router.
// This is the standard convention for Kubernetes probes:
//   - /ready (or /readyz) - readiness probe
//   - /livez - liveness probe
func MountRootEndpoints(r chi.Router, h *Handler) {
	r.Get("/ready", h.Ready)
	r.Get("/readyz", h.Ready)
	r.Get("/livez", h.Live)
}

// Check reports MongoDB and Redis connectivity. MongoDB being down makes the
// service unavailable (503). Redis only backs the view cache, so a failed
// ping reports "degraded" with 200.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		Status:   "ok",
		Services: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		resp.Status = "unavailable"
		resp.Services["mongodb"] = "unavailable"
		h.logger.Warn("health check: mongodb ping failed", zap.Error(err))
	} else {
		resp.Services["mongodb"] = "ok"
	}

	switch {
	case !h.cache.Enabled():
		resp.Services["redis"] = "disabled"
	case h.cache.Ping(ctx) != nil:
		resp.Services["redis"] = "unavailable"
		if resp.Status == "ok" {
			resp.Status = "degraded"
		}
		h.logger.Warn("health check: redis ping failed")
	default:
		resp.Services["redis"] = "ok"
	}

	if h.jobs != nil {
		resp.Jobs = h.jobs.Status()
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status == "unavailable" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}

// Ready checks if the service is ready to accept requests.
// Used by Kubernetes readiness probes.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := h.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.Write([]byte(`{"status":"ready"}`))
}

// Live checks if the service is alive.
// Used by Kubernetes liveness probes.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"alive"}`))
}
