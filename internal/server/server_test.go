package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/asksql/asksql/internal/agent"
	"github.com/asksql/asksql/internal/llm"
	"github.com/asksql/asksql/internal/model"
	"github.com/asksql/asksql/internal/session"
	"github.com/asksql/asksql/internal/testutil"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// stubTools returns canned output for both tools.
type stubTools struct{}

func (stubTools) GetSQLQuery(_ context.Context, q string) (string, error) {
	return "SELECT 1; -- " + q, nil
}

func (stubTools) GetSQLResult(context.Context, string) string {
	return "[]"
}

func (stubTools) Definitions() []llm.Tool { return nil }

func (stubTools) Call(context.Context, string, map[string]any) (string, error) { return "[]", nil }

// echoLLM answers every message by repeating it.
type echoLLM struct{}

func (echoLLM) Call(_ context.Context, _ string, msgs []llm.Message, _ []llm.Tool) (llm.Response, error) {
	return llm.Response{Text: "you said: " + msgs[len(msgs)-1].Text}, nil
}

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server   *Server
	sessions *session.Manager
}

// newTestEnv creates a Server over the database at dbPath with stub tools
// and an echoing model.
func newTestEnv(t *testing.T, cfg Config, dbPath string) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewManager(time.Minute, 0, func() (*agent.Session, error) {
		return agent.NewSession(&agent.Config{Logger: logger, LLM: echoLLM{}, Tools: stubTools{}})
	}, logger)

	srv := New(cfg, Deps{
		Sessions:     sessions,
		Tools:        stubTools{},
		DatabasePath: dbPath,
		Version:      "test",
	}, logger)

	return &testEnv{server: srv, sessions: sessions}
}

// do executes an HTTP request against the test server and returns the recorder.
// headers is an optional map of header key-value pairs.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func assertContentType(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	got := rr.Header().Get("Content-Type")
	if got != want {
		t.Errorf("Content-Type = %q, want %q", got, want)
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Health check tests
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), "")

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var resp model.StatusResponse
	decodeJSON(t, rr, &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want %q", resp.Status, "ok")
	}
}

func TestReadyz(t *testing.T) {
	partial := filepath.Join(t.TempDir(), "partial.db")
	writePartialDB(t, partial)

	tests := []struct {
		name     string
		path     string
		code     int
		status   string
		database string
		schema   string
	}{
		{"complete database", testutil.CompanyDB(t), http.StatusOK, "ok", "ok", "ok"},
		{"missing file", filepath.Join(t.TempDir(), "missing.db"), http.StatusServiceUnavailable, "degraded", "error: ", ""},
		{"incomplete schema", partial, http.StatusServiceUnavailable, "degraded", "ok", "error: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, DefaultConfig(), tt.path)
			rr := env.do(t, "GET", "/readyz", nil, nil)
			assertStatus(t, rr, tt.code)

			var resp model.StatusResponse
			decodeJSON(t, rr, &resp)
			if resp.Status != tt.status {
				t.Errorf("status = %q, want %q", resp.Status, tt.status)
			}
			if !strings.HasPrefix(resp.Checks["database"], tt.database) {
				t.Errorf("checks.database = %q, want prefix %q", resp.Checks["database"], tt.database)
			}
			if !strings.HasPrefix(resp.Checks["schema"], tt.schema) {
				t.Errorf("checks.schema = %q, want prefix %q", resp.Checks["schema"], tt.schema)
			}
		})
	}
}

// writePartialDB creates a database holding only part of the Customers table.
func writePartialDB(t *testing.T, path string) {
	t.Helper()
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE Customers (CustomerID INTEGER PRIMARY KEY, CustomerName TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Middleware wiring
// ---------------------------------------------------------------------------

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), "")

	rr := env.do(t, "GET", "/healthz", nil, nil)
	if id := rr.Header().Get("X-Request-ID"); len(id) != 36 {
		t.Errorf("X-Request-ID = %q, want a UUID", id)
	}

	rr = env.do(t, "GET", "/healthz", nil, map[string]string{"X-Request-ID": "trace-42"})
	if id := rr.Header().Get("X-Request-ID"); id != "trace-42" {
		t.Errorf("X-Request-ID = %q, want the client's ID", id)
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CORSOrigins = []string{"https://chat.example.com"}
	env := newTestEnv(t, cfg, "")

	rr := env.do(t, "OPTIONS", "/api/v1/chat", nil, map[string]string{
		"Origin":                        "https://chat.example.com",
		"Access-Control-Request-Method": "POST",
	})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://chat.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRateLimitAppliesToAPIOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 1
	env := newTestEnv(t, cfg, "")

	assertStatus(t, env.do(t, "GET", "/api/v1/examples", nil, nil), http.StatusOK)
	assertStatus(t, env.do(t, "GET", "/api/v1/examples", nil, nil), http.StatusTooManyRequests)

	for i := 0; i < 3; i++ {
		assertStatus(t, env.do(t, "GET", "/healthz", nil, nil), http.StatusOK)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), "")

	env.do(t, "GET", "/api/v1/examples", nil, nil)
	rr := env.do(t, "GET", "/metrics", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	body := rr.Body.String()
	for _, name := range []string{"asksql_http_requests_total", "asksql_active_sessions"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
	if !strings.Contains(body, `path="/api/v1/examples"`) {
		t.Error("http metrics not labelled with the route pattern")
	}
}

// ---------------------------------------------------------------------------
// API routes
// ---------------------------------------------------------------------------

func TestChatThroughServer(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), "")

	rr := env.do(t, "POST", "/api/v1/chat", jsonBody(t, model.ChatRequest{Message: "hello"}), nil)
	assertStatus(t, rr, http.StatusOK)

	var resp model.ChatResponse
	decodeJSON(t, rr, &resp)
	if resp.Reply != "you said: hello" {
		t.Errorf("reply = %q", resp.Reply)
	}
	if env.sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", env.sessions.Len())
	}
}

func TestBodyLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodySize = 32
	env := newTestEnv(t, cfg, "")

	big := model.ChatRequest{Message: strings.Repeat("x", 64)}
	assertStatus(t, env.do(t, "POST", "/api/v1/chat", jsonBody(t, big), nil), http.StatusBadRequest)
}

func TestOpenAPIRoute(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), "")

	rr := env.do(t, "GET", "/openapi.json", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var doc map[string]any
	decodeJSON(t, rr, &doc)
	if doc["openapi"] != "3.1.0" {
		t.Errorf("openapi = %v", doc["openapi"])
	}
}

func TestSQLRoutes(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), "")

	rr := env.do(t, "POST", "/api/v1/sql/generate", jsonBody(t, model.GenerateRequest{Question: "q"}), nil)
	assertStatus(t, rr, http.StatusOK)
	var gen model.GenerateResponse
	decodeJSON(t, rr, &gen)
	if gen.SQL != "SELECT 1; -- q" {
		t.Errorf("sql = %q", gen.SQL)
	}

	rr = env.do(t, "POST", "/api/v1/sql/execute", jsonBody(t, model.ExecuteRequest{SQL: "SELECT 1;"}), nil)
	assertStatus(t, rr, http.StatusOK)
	if rr.Body.String() != "[]" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.ShutdownTimeout = time.Second
	env := newTestEnv(t, cfg, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}
