package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/asksql/asksql/internal/agent"
	"github.com/asksql/asksql/internal/executor"
	"github.com/asksql/asksql/internal/llm"
	"github.com/asksql/asksql/internal/model"
	"github.com/asksql/asksql/internal/session"
	"github.com/asksql/asksql/internal/synth"
	"github.com/asksql/asksql/internal/testutil"
	"github.com/asksql/asksql/internal/tools"
)

const aliceSQL = "SELECT CustomerName FROM Customers WHERE Country = 'Germany';"

// fixedGenerator always produces the same SQL.
type fixedGenerator struct {
	sql string
	err error
}

func (g fixedGenerator) Generate(context.Context, string) (string, error) {
	return g.sql, g.err
}

// scriptedLLM asks for get_sql_result once per turn, then answers with the
// tool output it was given.
type scriptedLLM struct {
	err error
}

func (s scriptedLLM) Call(_ context.Context, _ string, msgs []llm.Message, _ []llm.Tool) (llm.Response, error) {
	if s.err != nil {
		return llm.Response{}, s.err
	}
	last := msgs[len(msgs)-1]
	if len(last.ToolResults) > 0 {
		return llm.Response{Text: "Result: " + last.ToolResults[0].Content}, nil
	}
	return llm.Response{ToolCalls: []llm.ToolCall{{
		ID:    "call-1",
		Name:  tools.NameResult,
		Input: map[string]any{tools.ArgQuery: aliceSQL},
	}}}, nil
}

// testEnv holds shared state for handler tests.
type testEnv struct {
	sessions *session.Manager
	router   chi.Router
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

// newTestEnv wires the handlers over a seeded company database, a fixed
// generator and the given model client.
func newTestEnv(t *testing.T, client llm.Client, gen llm.Generator) *testEnv {
	t.Helper()

	path := testutil.CompanyDB(t, testutil.AliceSeed)
	toolset := tools.New(
		synth.New(gen, discard()),
		executor.New(executor.Config{Path: path}, discard()),
		discard(),
	)
	sessions := session.NewManager(time.Minute, 0, func() (*agent.Session, error) {
		return agent.NewSession(&agent.Config{Logger: discard(), LLM: client, Tools: toolset})
	}, discard())

	chat := NewChatHandler(sessions, 1<<20, discard())
	sql := NewSQLHandler(toolset, 1<<20, discard())
	docs := NewDocsHandler("test")

	r := chi.NewRouter()
	r.Get("/openapi.json", docs.OpenAPI)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/examples", docs.Examples)
		r.Get("/schema", docs.Schema)
		r.Post("/chat", chat.Chat)
		r.Post("/sessions", chat.CreateSession)
		r.Get("/sessions/{id}", chat.GetSession)
		r.Delete("/sessions/{id}", chat.DeleteSession)
		r.Post("/sql/generate", sql.Generate)
		r.Post("/sql/execute", sql.Execute)
	})

	return &testEnv{sessions: sessions, router: r}
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// jsonBody encodes v into a reader suitable for a request body.
func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	return bytes.NewReader(data)
}

// decode unmarshals the response body into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int) model.ErrorDetail {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, status, rec.Body.String())
	}
	var resp model.ErrorResponse
	decode(t, rec, &resp)
	if resp.Error.Code != status {
		t.Errorf("error.code = %d, want %d", resp.Error.Code, status)
	}
	return resp.Error
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

func TestChat_NewSessionRunsTools(t *testing.T) {
	env := newTestEnv(t, scriptedLLM{}, fixedGenerator{sql: aliceSQL})

	rec := env.do(t, "POST", "/api/v1/chat", jsonBody(t, model.ChatRequest{Message: "How many German customers?"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp model.ChatResponse
	decode(t, rec, &resp)
	if resp.SessionID == "" {
		t.Error("session_id is empty")
	}
	if !strings.Contains(resp.Reply, `"CustomerName": "Alice"`) {
		t.Errorf("reply = %q, want the Alice record", resp.Reply)
	}
	if len(resp.ToolsUsed) != 1 || resp.ToolsUsed[0] != tools.NameResult {
		t.Errorf("tools_used = %v", resp.ToolsUsed)
	}
	if env.sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", env.sessions.Len())
	}
}

func TestChat_ContinuesSession(t *testing.T) {
	env := newTestEnv(t, scriptedLLM{}, fixedGenerator{})

	var first model.ChatResponse
	decode(t, env.do(t, "POST", "/api/v1/chat", jsonBody(t, model.ChatRequest{Message: "one"})), &first)

	rec := env.do(t, "POST", "/api/v1/chat", jsonBody(t, model.ChatRequest{SessionID: first.SessionID, Message: "two"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var sess model.SessionResponse
	decode(t, env.do(t, "GET", "/api/v1/sessions/"+first.SessionID, nil), &sess)
	if len(sess.Turns) != 4 {
		t.Fatalf("turns = %d, want 4", len(sess.Turns))
	}
	if sess.Turns[2].Role != "user" || sess.Turns[2].Text != "two" {
		t.Errorf("third turn = %+v", sess.Turns[2])
	}
}

func TestChat_Validation(t *testing.T) {
	env := newTestEnv(t, scriptedLLM{}, fixedGenerator{})

	tests := []struct {
		name   string
		body   io.Reader
		status int
	}{
		{"empty body", nil, http.StatusBadRequest},
		{"invalid JSON", strings.NewReader("{"), http.StatusBadRequest},
		{"blank message", jsonBody(t, model.ChatRequest{Message: "  "}), http.StatusBadRequest},
		{"unknown session", jsonBody(t, model.ChatRequest{SessionID: "nope", Message: "hi"}), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			if body == nil {
				body = http.NoBody
			}
			expectError(t, env.do(t, "POST", "/api/v1/chat", body), tt.status)
		})
	}
}

func TestChat_ModelFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t, scriptedLLM{err: errors.New("upstream 503")}, fixedGenerator{})

	rec := env.do(t, "POST", "/api/v1/chat", jsonBody(t, model.ChatRequest{Message: "hi"}))
	detail := expectError(t, rec, http.StatusBadGateway)
	if !strings.Contains(detail.Message, "upstream 503") {
		t.Errorf("message = %q", detail.Message)
	}
	if _, ok := detail.Context["session_id"]; !ok {
		t.Error("context.session_id missing")
	}
}

func TestTurnStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), http.StatusBadGateway},
		{fmt.Errorf("call: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{fmt.Errorf("call: %w", context.Canceled), http.StatusServiceUnavailable},
		{agent.ErrMaxRounds, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := turnStatus(tt.err); got != tt.want {
			t.Errorf("turnStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, scriptedLLM{}, fixedGenerator{})

	rec := env.do(t, "POST", "/api/v1/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created model.SessionResponse
	decode(t, rec, &created)
	if created.SessionID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("created = %+v", created)
	}
	if created.Turns == nil || len(created.Turns) != 0 {
		t.Errorf("turns = %v, want empty list", created.Turns)
	}

	if rec := env.do(t, "GET", "/api/v1/sessions/"+created.SessionID, nil); rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}
	if rec := env.do(t, "DELETE", "/api/v1/sessions/"+created.SessionID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	expectError(t, env.do(t, "GET", "/api/v1/sessions/"+created.SessionID, nil), http.StatusNotFound)
	expectError(t, env.do(t, "DELETE", "/api/v1/sessions/"+created.SessionID, nil), http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// SQL
// ---------------------------------------------------------------------------

func TestGenerate(t *testing.T) {
	env := newTestEnv(t, scriptedLLM{}, fixedGenerator{sql: "\n" + aliceSQL + "\n"})

	rec := env.do(t, "POST", "/api/v1/sql/generate", jsonBody(t, model.GenerateRequest{Question: "German customers?"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp model.GenerateResponse
	decode(t, rec, &resp)
	if resp.SQL != aliceSQL {
		t.Errorf("sql = %q, want %q", resp.SQL, aliceSQL)
	}
}

func TestGenerate_Errors(t *testing.T) {
	env := newTestEnv(t, scriptedLLM{}, fixedGenerator{err: errors.New("quota exceeded")})

	expectError(t, env.do(t, "POST", "/api/v1/sql/generate", jsonBody(t, model.GenerateRequest{})), http.StatusBadRequest)

	detail := expectError(t, env.do(t, "POST", "/api/v1/sql/generate",
		jsonBody(t, model.GenerateRequest{Question: "anything"})), http.StatusBadGateway)
	if !strings.Contains(detail.Message, "quota exceeded") {
		t.Errorf("message = %q", detail.Message)
	}
}

func TestExecute(t *testing.T) {
	env := newTestEnv(t, scriptedLLM{}, fixedGenerator{})

	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"records", aliceSQL, "[\n    {\n        \"CustomerName\": \"Alice\"\n    }\n]"},
		{"zero rows", "SELECT * FROM Customers WHERE Country = 'Mars';", "[]"},
		{"database error", "SELECT * FROM NoSuchTable;", "{\n    \"error\": \"Database error: no such table: NoSuchTable\"\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/v1/sql/execute", jsonBody(t, model.ExecuteRequest{SQL: tt.sql}))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}

	expectError(t, env.do(t, "POST", "/api/v1/sql/execute", jsonBody(t, model.ExecuteRequest{})), http.StatusBadRequest)
}

func TestReadJSON_BodyLimit(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"message":"`+strings.Repeat("x", 100)+`"}`))
	rec := httptest.NewRecorder()
	var v model.ChatRequest
	err := readJSON(rec, req, 16, &v)
	if err == nil || !strings.Contains(err.Error(), "exceeds 16 bytes") {
		t.Errorf("readJSON error = %v", err)
	}
}

// ---------------------------------------------------------------------------
// Docs
// ---------------------------------------------------------------------------

func TestExamples(t *testing.T) {
	env := newTestEnv(t, scriptedLLM{}, fixedGenerator{})

	var resp model.ExamplesResponse
	decode(t, env.do(t, "GET", "/api/v1/examples", nil), &resp)
	if len(resp.Examples) == 0 {
		t.Error("no examples returned")
	}
}

func TestSchema(t *testing.T) {
	env := newTestEnv(t, scriptedLLM{}, fixedGenerator{})

	rec := env.do(t, "GET", "/api/v1/schema", nil)
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "OrderDetails") {
		t.Error("schema description missing OrderDetails")
	}
}

func TestOpenAPI(t *testing.T) {
	env := newTestEnv(t, scriptedLLM{}, fixedGenerator{})

	req := httptest.NewRequest("GET", "/openapi.json", nil)
	req.Host = "asksql.local:8080"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var doc struct {
		OpenAPI string `json:"openapi"`
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
		Info struct {
			Version string `json:"version"`
		} `json:"info"`
	}
	decode(t, rec, &doc)
	if doc.OpenAPI != "3.1.0" || doc.Info.Version != "test" {
		t.Errorf("doc = %+v", doc)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "https://asksql.local:8080" {
		t.Errorf("servers = %+v", doc.Servers)
	}
}
