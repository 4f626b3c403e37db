package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/asksql/asksql/internal/model"
	"github.com/asksql/asksql/internal/server/middleware"
	"github.com/asksql/asksql/internal/synth"
)

// SQLTools is the pair of tool functions exposed over HTTP.
type SQLTools interface {
	GetSQLQuery(ctx context.Context, question string) (string, error)
	GetSQLResult(ctx context.Context, sql string) string
}

// SQLHandler exposes query generation and execution directly, without a
// chat session.
type SQLHandler struct {
	tools       SQLTools
	maxBodySize int64
	log         *slog.Logger
}

// NewSQLHandler creates a new SQLHandler.
func NewSQLHandler(tools SQLTools, maxBodySize int64, logger *slog.Logger) *SQLHandler {
	return &SQLHandler{tools: tools, maxBodySize: maxBodySize, log: logger}
}

// Generate turns a question into SQL.
// POST /api/v1/sql/generate
func (h *SQLHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if err := readJSON(w, r, h.maxBodySize, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if blank(req.Question) {
		writeError(w, http.StatusBadRequest, `Field "question" is required`)
		return
	}

	sql, err := h.tools.GetSQLQuery(r.Context(), req.Question)
	if err != nil {
		middleware.LoggerFrom(r.Context(), h.log).Error("sql generation failed", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, synth.ErrGeneration) {
			status = turnStatus(err)
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.GenerateResponse{SQL: sql})
}

// Execute runs a statement and returns the executor's JSON unchanged. Query
// failures are part of that JSON, so the status is 200 whenever the request
// itself was valid.
// POST /api/v1/sql/execute
func (h *SQLHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req model.ExecuteRequest
	if err := readJSON(w, r, h.maxBodySize, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if blank(req.SQL) {
		writeError(w, http.StatusBadRequest, `Field "sql" is required`)
		return
	}
	writeRaw(w, http.StatusOK, h.tools.GetSQLResult(r.Context(), req.SQL))
}
