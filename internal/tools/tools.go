// Package tools exposes the SQL synthesizer and executor as the two
// string-in, string-out tools offered to chat models and MCP clients.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/asksql/asksql/internal/llm"
	"github.com/asksql/asksql/internal/metrics"
)

const (
	NameQuery  = "get_sql_query"
	NameResult = "get_sql_result"

	// ArgQuery is the single argument both tools take.
	ArgQuery = "query"

	DescriptionQuery  = "Generate a SQL query based on given user's prompt."
	DescriptionResult = "Execute SQL query on SQLite database and return results as JSON."
)

var (
	ErrUnknownTool     = errors.New("unknown tool")
	ErrInvalidArgument = errors.New("invalid tool argument")
)

// Synthesizer turns a question into SQL.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string) (string, error)
}

// Executor runs SQL and renders the outcome as JSON. It never fails.
type Executor interface {
	Execute(ctx context.Context, sql string) string
}

// Toolset binds a Synthesizer and an Executor to the tool names.
type Toolset struct {
	synth Synthesizer
	exec  Executor
	log   *slog.Logger
}

// New creates a Toolset.
func New(synth Synthesizer, exec Executor, logger *slog.Logger) *Toolset {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Toolset{synth: synth, exec: exec, log: logger}
}

// Definitions returns both tools with their typed string signatures.
func (t *Toolset) Definitions() []llm.Tool {
	return []llm.Tool{
		{Name: NameQuery, Description: DescriptionQuery, InputSchema: stringArg("The user's question in natural language.")},
		{Name: NameResult, Description: DescriptionResult, InputSchema: stringArg("The SQL statement to execute.")},
	}
}

func stringArg(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			ArgQuery: map[string]any{"type": "string", "description": description},
		},
		"required": []string{ArgQuery},
	}
}

// GetSQLQuery generates SQL for a natural-language question.
func (t *Toolset) GetSQLQuery(ctx context.Context, query string) (string, error) {
	return t.synth.Synthesize(ctx, query)
}

// GetSQLResult executes SQL and returns the JSON rendering of its outcome.
func (t *Toolset) GetSQLResult(ctx context.Context, query string) string {
	return t.exec.Execute(ctx, query)
}

// Call dispatches a tool invocation by name. Only generation failures and
// malformed invocations are returned as errors; execution problems are
// reported inside the returned JSON.
func (t *Toolset) Call(ctx context.Context, name string, args map[string]any) (out string, err error) {
	defer func() {
		metrics.ToolCallsTotal.WithLabelValues(metricName(name), metrics.Outcome(err)).Inc()
		if err != nil {
			t.log.Warn("tool call failed", "tool", name, "error", err)
		} else {
			t.log.Debug("tool call completed", "tool", name, "output_len", len(out))
		}
	}()

	query, ok := args[ArgQuery].(string)
	switch name {
	case NameQuery, NameResult:
		if !ok {
			return "", fmt.Errorf("%w: %s requires string argument %q", ErrInvalidArgument, name, ArgQuery)
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	if name == NameQuery {
		return t.GetSQLQuery(ctx, query)
	}
	return t.GetSQLResult(ctx, query), nil
}

// metricName bounds the tool label to the registered tools.
func metricName(name string) string {
	switch name {
	case NameQuery, NameResult:
		return name
	default:
		return "unknown"
	}
}
