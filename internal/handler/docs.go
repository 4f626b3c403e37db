package handler

import (
	"net/http"

	"github.com/asksql/asksql/internal/model"
	"github.com/asksql/asksql/internal/openapi"
	"github.com/asksql/asksql/internal/schema"
)

// DocsHandler serves the static descriptions of the API and the database.
type DocsHandler struct {
	version string
}

// NewDocsHandler creates a new DocsHandler.
func NewDocsHandler(version string) *DocsHandler {
	return &DocsHandler{version: version}
}

// Examples lists the example prompts.
// GET /api/v1/examples
func (h *DocsHandler) Examples(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.ExamplesResponse{Examples: schema.Examples})
}

// Schema returns the schema description given to the model.
// GET /api/v1/schema
func (h *DocsHandler) Schema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(schema.Describe("")))
}

// OpenAPI returns the OpenAPI document of this server, using the request's
// host as the server URL.
// GET /openapi.json
func (h *DocsHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openapi.Generate(baseURL(r), h.version))
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host
}
