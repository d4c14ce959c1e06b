package api

import (
	"net/http"

	"github.com/voyago/voyago/internal/knowledge"
	"github.com/voyago/voyago/internal/log"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	pipeline *knowledge.Pipeline
	logger   log.Logger
}

// NewHealthHandler creates a new health handler.
// The pipeline's readiness backs the /ready probe.
func NewHealthHandler(pipeline *knowledge.Pipeline, logger log.Logger) *HealthHandler {
	return &HealthHandler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness is a liveness probe endpoint.
// Returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness is a readiness probe endpoint.
// Returns 200 OK once the initial knowledge refresh attempt has completed.
// A failed refresh still counts: the assistant degrades rather than blocks.
func (h *HealthHandler) readiness(w http.ResponseWriter, _ *http.Request) {
	if h.pipeline == nil || !h.pipeline.Ready() {
		http.Error(w, "knowledge base not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
