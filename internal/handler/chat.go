package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/asksql/asksql/internal/agent"
	"github.com/asksql/asksql/internal/model"
	"github.com/asksql/asksql/internal/server/middleware"
	"github.com/asksql/asksql/internal/session"
)

// ChatHandler serves conversations backed by a session manager.
type ChatHandler struct {
	sessions    *session.Manager
	maxBodySize int64
	log         *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(sessions *session.Manager, maxBodySize int64, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{sessions: sessions, maxBodySize: maxBodySize, log: logger}
}

// Chat runs one turn. A request without session_id starts a new session.
// POST /api/v1/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := readJSON(w, r, h.maxBodySize, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if blank(req.Message) {
		writeError(w, http.StatusBadRequest, `Field "message" is required`)
		return
	}

	id, sess, err := h.sessions.GetOrCreate(req.SessionID)
	if err != nil {
		h.sessionError(w, req.SessionID, err)
		return
	}

	reply, err := sess.Send(r.Context(), req.Message)
	if err != nil {
		middleware.LoggerFrom(r.Context(), h.log).Error("chat turn failed", "session_id", id, "error", err)
		writeError(w, turnStatus(err), "Chat turn failed: "+err.Error(),
			map[string]any{"session_id": id})
		return
	}

	used := reply.ToolsUsed
	if used == nil {
		used = []string{}
	}
	writeJSON(w, http.StatusOK, model.ChatResponse{
		SessionID: id,
		Reply:     reply.Text,
		ToolsUsed: used,
	})
}

// CreateSession starts an empty conversation.
// POST /api/v1/sessions
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, sess, err := h.sessions.Create()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(id, sess))
}

// GetSession returns the visible transcript of a conversation.
// GET /api/v1/sessions/{id}
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.sessions.Get(id)
	if err != nil {
		h.sessionError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(id, sess))
}

// DeleteSession ends a conversation.
// DELETE /api/v1/sessions/{id}
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Delete(id); err != nil {
		h.sessionError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) sessionError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Session not found", map[string]any{"session_id": id})
		return
	}
	writeError(w, http.StatusInternalServerError, "Session error: "+err.Error())
}

// turnStatus maps a failed turn to an HTTP status. Every failure that
// reaches this point came from the model backend or the tool loop.
func turnStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func sessionResponse(id string, sess *agent.Session) model.SessionResponse {
	transcript := sess.Transcript()
	turns := make([]model.Turn, len(transcript))
	for i, t := range transcript {
		turns[i] = model.Turn{Role: string(t.Role), Text: t.Text, Time: t.Time}
	}
	return model.SessionResponse{
		SessionID: id,
		CreatedAt: sess.Created(),
		Turns:     turns,
	}
}
