package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/voyago/voyago/internal/knowledge"
	"github.com/voyago/voyago/internal/log"
)

// maxChatBodyBytes caps the chat request body size.
const maxChatBodyBytes = 64 << 10 // 64 KiB

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	pipeline *knowledge.Pipeline
	logger   log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(pipeline *knowledge.Pipeline, logger log.Logger) *ChatHandler {
	return &ChatHandler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// ChatResponse is the response body for POST /api/chat.
type ChatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

// handleChat answers a user message against the knowledge base.
//
// A missing sessionId gets a fresh UUID so clients can correlate follow-ups.
// Model failures never surface as errors here: the pipeline substitutes a
// fallback reply, so this endpoint fails only on bad input.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	reply, err := h.pipeline.Answer(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, knowledge.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "empty_message", "message must not be empty", h.logger)
			return
		}
		h.logger.Error("chat failed", "error", err, "session", sessionID)
		writeError(w, http.StatusInternalServerError, "chat_failed", "could not produce a reply", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply, SessionID: sessionID}, h.logger)
}
