// Package agent drives one chat conversation: it sends the history to a
// tool-calling model, runs the tools it asks for and returns its final text.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/asksql/asksql/internal/llm"
	"github.com/asksql/asksql/internal/metrics"
	"github.com/asksql/asksql/internal/tools"
)

const defaultMaxRounds = 10

// ErrMaxRounds is returned when the model keeps requesting tools past the
// round budget of a single turn.
var ErrMaxRounds = errors.New("exceeded maximum tool rounds")

// ToolClient lists and invokes tools.
type ToolClient interface {
	Definitions() []llm.Tool
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// Config is the configuration for a Session.
type Config struct {
	Logger    *slog.Logger
	LLM       llm.Client
	Tools     ToolClient
	System    string
	MaxRounds int
}

func (cfg *Config) Validate() error {
	if cfg.LLM == nil {
		return errors.New("LLM is required")
	}
	if cfg.Tools == nil {
		return errors.New("tool client is required")
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.MaxRounds < 0 {
		return errors.New("max rounds must be greater than 0")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}

// Turn is one visible exchange entry of a conversation.
type Turn struct {
	Role llm.Role  `json:"role"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Reply is the outcome of a successful turn.
type Reply struct {
	Text      string
	ToolsUsed []string
}

// Session holds the history of one conversation. Turns are serialized; the
// history only changes when a turn completes successfully.
type Session struct {
	cfg *Config
	log *slog.Logger

	mu         sync.Mutex
	history    []llm.Message
	transcript []Turn
	created    time.Time
}

// NewSession creates an empty session.
func NewSession(cfg *Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{cfg: cfg, log: cfg.Logger, created: time.Now()}, nil
}

// Created returns when the session was created.
func (s *Session) Created() time.Time { return s.created }

// Send runs one turn for message. Tool calls from a single model response
// run sequentially in the order given. Generation failures and empty model
// replies abort the turn and leave the history untouched.
func (s *Session) Send(ctx context.Context, message string) (reply *Reply, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.ChatTurnsTotal.WithLabelValues(metrics.Outcome(err)).Inc() }()

	now := time.Now()
	msgs := make([]llm.Message, len(s.history), len(s.history)+4)
	copy(msgs, s.history)
	msgs = append(msgs, llm.UserMessage(message))

	defs := s.cfg.Tools.Definitions()
	var used []string

	for round := 1; round <= s.cfg.MaxRounds; round++ {
		s.log.Debug("agent: starting round", "round", round, "max_rounds", s.cfg.MaxRounds)

		resp, err := s.cfg.LLM.Call(ctx, s.cfg.System, msgs, defs)
		if err != nil {
			return nil, fmt.Errorf("failed to get response: %w", err)
		}
		if len(resp.ToolCalls) == 0 && strings.TrimSpace(resp.Text) == "" {
			return nil, fmt.Errorf("empty model reply: %w", llm.ErrNoText)
		}
		msgs = append(msgs, resp.Message())

		if len(resp.ToolCalls) == 0 {
			s.log.Debug("agent: no tool calls, returning final response", "round", round)
			s.history = msgs
			s.transcript = append(s.transcript,
				Turn{Role: llm.RoleUser, Text: message, Time: now},
				Turn{Role: llm.RoleAssistant, Text: resp.Text, Time: time.Now()},
			)
			return &Reply{Text: resp.Text, ToolsUsed: used}, nil
		}

		results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			s.log.Info("agent: calling tool", "round", round, "name", tc.Name)
			used = append(used, tc.Name)
			out, err := s.cfg.Tools.Call(ctx, tc.Name, tc.Input)
			if err != nil {
				if !recoverable(err) {
					return nil, fmt.Errorf("tool %s: %w", tc.Name, err)
				}
				results = append(results, llm.ToolResult{ID: tc.ID, Name: tc.Name, Content: fmt.Sprintf("Error: %v", err), IsError: true})
				continue
			}
			results = append(results, llm.ToolResult{ID: tc.ID, Name: tc.Name, Content: out})
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, ToolResults: results})
	}

	return nil, fmt.Errorf("%w (%d)", ErrMaxRounds, s.cfg.MaxRounds)
}

// recoverable reports whether a tool error is the model's mistake and can be
// reported back to it instead of failing the turn.
func recoverable(err error) bool {
	return errors.Is(err, tools.ErrUnknownTool) || errors.Is(err, tools.ErrInvalidArgument)
}

// History returns a copy of the full model-facing history, including tool
// calls and results.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Transcript returns the user messages and final replies in order.
func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Summary renders the transcript as "role: text" lines.
func (s *Session) Summary() string {
	var b strings.Builder
	for _, t := range s.Transcript() {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
	}
	return b.String()
}
