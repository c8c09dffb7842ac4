// Package api exposes the support bot over HTTP and MCP. Transport only:
// request shapes, routing, and status mapping live here, the behavior
// lives in the bot package.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nkov/supportbot/internal/bot"
	"github.com/nkov/supportbot/internal/session"
)

const maxRequestBodySize = 1 << 20 // 1MB

// QueryRequest is the body for POST /api/query.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse is the terminal state of a submitted query.
type QueryResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Escalated bool   `json:"escalated"`
}

// SessionInfo summarizes one session for API consumers.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	QueryHistory []string  `json:"query_history"`
}

// SummaryResponse carries a conversation summary.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// NewHandler returns the HTTP handler for the support bot API. When token
// is non-empty, session-management routes require bearer authentication;
// the query path stays open for end-user traffic.
func NewHandler(b *bot.Bot, token string) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/api/query", handleQuery(b))
	r.Post("/api/session/create", handleCreateSession(b))
	r.Get("/api/session/{id}", handleGetSession(b))
	r.Post("/api/summarize/{id}", handleSummarize(b))

	r.Group(func(mgmt chi.Router) {
		if token != "" {
			mgmt.Use(BearerAuth(token))
		}
		mgmt.Get("/api/sessions", handleListSessions(b))
		mgmt.Delete("/api/session/{id}", handleDeleteSession(b))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleQuery(b *bot.Bot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		res, err := b.SubmitQuery(r.Context(), req.Query, req.SessionID)
		if errors.Is(err, session.ErrSessionNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "handling query: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, QueryResponse{
			Response:  res.Response,
			SessionID: res.SessionID,
			Escalated: res.Escalated,
		})
	}
}

func handleCreateSession(b *bot.Bot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, msg, err := b.CreateSession(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "creating session: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"session_id":  sess.ID,
			"bot_message": msg,
			"escalated":   false,
		})
	}
}

func handleGetSession(b *bot.Bot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, err := b.GetSession(r.Context(), id)
		if errors.Is(err, session.ErrSessionNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading session: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, sessionInfo(sess))
	}
}

func handleListSessions(b *bot.Bot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := b.ListSessions(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing sessions: %v", err)
			return
		}
		out := make([]SessionInfo, len(sessions))
		for i, s := range sessions {
			out[i] = sessionInfo(s)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleDeleteSession(b *bot.Bot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := b.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting session: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSummarize(b *bot.Bot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := b.SummarizeSession(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, session.ErrSessionNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "summarizing session: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, SummaryResponse{Summary: summary})
	}
}

func sessionInfo(s session.Session) SessionInfo {
	history := s.History
	if history == nil {
		history = []string{}
	}
	return SessionInfo{SessionID: s.ID, CreatedAt: s.CreatedAt, QueryHistory: history}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
