package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/voyago/voyago/internal/knowledge"
	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/sitemap"
	"github.com/voyago/voyago/internal/vectorstore"
)

// backgroundRefreshTimeout bounds a refresh triggered over the API.
const backgroundRefreshTimeout = 10 * time.Minute

// KnowledgeHandler handles knowledge base management endpoints.
type KnowledgeHandler struct {
	pipeline *knowledge.Pipeline
	store    *vectorstore.Store
	source   sitemap.Source
	logger   log.Logger
}

// NewKnowledgeHandler creates a new knowledge handler.
func NewKnowledgeHandler(pipeline *knowledge.Pipeline, store *vectorstore.Store, source sitemap.Source, logger log.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{pipeline: pipeline, store: store, source: source, logger: logger}
}

// RegisterRoutes registers knowledge routes on the given mux.
func (h *KnowledgeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/knowledge/refresh", h.handleRefresh)
	mux.HandleFunc("GET /api/knowledge/stats", h.handleStats)
	mux.HandleFunc("GET /api/sitemap", h.handleSitemap)
}

// RefreshResponse is the response body for POST /api/knowledge/refresh.
type RefreshResponse struct {
	Status string `json:"status"`
}

// handleRefresh triggers a knowledge refresh in the background.
// Returns 202 Accepted once the refresh has started, 409 Conflict if one
// is already running. Embedding is paced, so a full refresh can take a
// while; poll /api/knowledge/stats for completion.
func (h *KnowledgeHandler) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if h.pipeline.Status().Refreshing {
		writeError(w, http.StatusConflict, "refresh_in_flight", "a refresh is already running", h.logger)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundRefreshTimeout)
		defer cancel()
		if err := h.pipeline.Refresh(ctx); err != nil && !errors.Is(err, knowledge.ErrRefreshInFlight) {
			h.logger.Error("background refresh failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, RefreshResponse{Status: "refresh started"}, h.logger)
}

// StatsResponse is the response body for GET /api/knowledge/stats.
type StatsResponse struct {
	Ready       bool           `json:"ready"`
	Refreshing  bool           `json:"refreshing"`
	LastRefresh *time.Time     `json:"lastRefresh,omitempty"`
	Documents   int            `json:"documents"`
	ByType      map[string]int `json:"byType"`
}

// handleStats reports pipeline status and document counts.
func (h *KnowledgeHandler) handleStats(w http.ResponseWriter, _ *http.Request) {
	status := h.pipeline.Status()
	stats := h.store.Stats()

	resp := StatsResponse{
		Ready:      status.Ready,
		Refreshing: status.Refreshing,
		Documents:  stats.TotalDocuments,
		ByType:     stats.ByType,
	}
	if !status.LastRefresh.IsZero() {
		t := status.LastRefresh
		resp.LastRefresh = &t
	}

	writeJSON(w, http.StatusOK, resp, h.logger)
}

// SitemapResponse is the response body for GET /api/sitemap.
type SitemapResponse struct {
	Pages []sitemap.Page `json:"pages"`
}

// handleSitemap returns the current content pages from the configured source.
func (h *KnowledgeHandler) handleSitemap(w http.ResponseWriter, r *http.Request) {
	pages, err := h.source.Pages(r.Context())
	if err != nil {
		h.logger.Error("failed to fetch sitemap", "error", err)
		writeError(w, http.StatusBadGateway, "sitemap_unavailable", "could not fetch content pages", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, SitemapResponse{Pages: pages}, h.logger)
}
