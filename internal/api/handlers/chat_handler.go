package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/adamani-ai/rag-backend/internal/api/middlewares"
	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/core/orchestrator"
	"github.com/adamani-ai/rag-backend/internal/models"
	"github.com/adamani-ai/rag-backend/internal/pkg/logger"
)

type ChatHandler struct {
	log          *logger.Logger
	orchestrator *orchestrator.Orchestrator
	memory       core.ConversationMemory
}

func NewChatHandler(log *logger.Logger, o *orchestrator.Orchestrator, memory core.ConversationMemory) *ChatHandler {
	return &ChatHandler{log: log, orchestrator: o, memory: memory}
}

type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
	TopK      int    `json:"top_k"`
}

// StreamQuery answers a question over the tenant's documents as a
// server-sent-event stream: one sources event, token events, then done or
// error. The client disconnecting cancels generation.
func (h *ChatHandler) StreamQuery(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question must not be empty", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := h.orchestrator.Stream(r.Context(), tenantID, req.SessionID, req.Question, req.TopK)
	for ev := range events {
		if err := writeSSE(w, ev); err != nil {
			// Client gone; the request context cancels the stream.
			h.log.Debug("client disconnected mid-stream", "tenant_id", tenantID)
			return
		}
		flusher.Flush()
	}
}

// Wire payloads, one shape per event type. The event name travels on the SSE
// event line, so the data line carries only that event's fields.
type sourceItem struct {
	Content  string               `json:"content"`
	Metadata models.SourceDetails `json:"metadata"`
}

type sourcesPayload struct {
	Sources []sourceItem `json:"sources"`
}

type tokenPayload struct {
	Token string `json:"token"`
}

type donePayload struct {
	SessionID string `json:"session_id"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// writeSSE writes one event in SSE framing: an event line naming the type and
// a data line carrying the JSON payload.
func writeSSE(w http.ResponseWriter, ev models.StreamEvent) error {
	var body any
	switch ev.Type {
	case models.EventSources:
		items := make([]sourceItem, len(ev.Sources))
		for i, s := range ev.Sources {
			items[i] = sourceItem{Content: s.Content, Metadata: s.Metadata}
		}
		body = sourcesPayload{Sources: items}
	case models.EventToken:
		body = tokenPayload{Token: ev.Token}
	case models.EventDone:
		body = donePayload{SessionID: ev.SessionID}
	default:
		body = errorPayload{Error: ev.Err}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}

// ClearSession deletes one conversation's history.
func (h *ChatHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := chi.URLParam(r, "session_id")
	if sessionID == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}

	if err := h.memory.Clear(r.Context(), tenantID, sessionID); err != nil {
		h.log.Error("clear session failed", "tenant_id", tenantID, "session_id", sessionID, "error", err)
		http.Error(w, "could not clear session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cleared", "session_id": sessionID})
}

// ClearAllSessions deletes every conversation the tenant holds and reports
// how many sessions were dropped.
func (h *ChatHandler) ClearAllSessions(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	count, err := h.memory.ClearAll(r.Context(), tenantID)
	if err != nil {
		h.log.Error("clear all sessions failed", "tenant_id", tenantID, "error", err)
		http.Error(w, "could not clear sessions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "cleared", "sessions_cleared": count})
}
