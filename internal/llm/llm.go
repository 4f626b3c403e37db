// Package llm defines a provider-neutral chat interface with tool calling
// and the Anthropic and Gemini implementations of it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/asksql/asksql/internal/metrics"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation. A user message carries either
// Text or ToolResults; an assistant message carries Text and/or ToolCalls.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// UserMessage returns a plain user text message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult answers a ToolCall.
type ToolResult struct {
	ID      string
	Name    string
	Content string
	IsError bool
}

// Tool describes a callable tool. InputSchema is a JSON schema object with
// "properties" and "required".
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Response is a single model reply.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Message converts the response into an assistant history entry.
func (r Response) Message() Message {
	return Message{Role: RoleAssistant, Text: r.Text, ToolCalls: r.ToolCalls}
}

// Client is a tool-calling chat model.
type Client interface {
	Call(ctx context.Context, system string, messages []Message, tools []Tool) (Response, error)
}

// Generator produces text for a single prompt with no tools and no history.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider is a named Client that can also act as a Generator.
type Provider interface {
	Client
	Generator
	Name() string
}

// ErrNoText is returned by Generate when the model replied without text.
var ErrNoText = errors.New("no text content in response")

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"

	DefaultGeminiModel    = "gemini-2.0-flash"
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultMaxTokens      = 4096
)

// Config selects and configures a provider.
type Config struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	MaxOutputTokens int64
}

// New creates the provider named by cfg.Provider.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxTokens
	}
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGemini:
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiModel
		}
		return NewGemini(ctx, cfg, logger)
	case ProviderAnthropic:
		if cfg.Model == "" {
			cfg.Model = DefaultAnthropicModel
		}
		return NewAnthropic(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q (supported: %s, %s)", cfg.Provider, ProviderGemini, ProviderAnthropic)
	}
}

// observe records metrics and a log line for one provider call.
func observe(log *slog.Logger, provider, operation string, start time.Time, err error) {
	d := time.Since(start)
	metrics.LLMCallsTotal.WithLabelValues(provider, operation, metrics.Outcome(err)).Inc()
	metrics.LLMCallDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
	if err != nil {
		log.Error("llm call failed", "provider", provider, "operation", operation, "duration", d, "error", err)
		return
	}
	log.Debug("llm call completed", "provider", provider, "operation", operation, "duration", d)
}

// schemaParts splits a JSON schema object into its properties and required list.
func schemaParts(schema map[string]any) (map[string]any, []string) {
	props, _ := schema["properties"].(map[string]any)
	required, _ := schema["required"].([]string)
	return props, required
}
