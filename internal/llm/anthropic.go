package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic implements Provider on the Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	log       *slog.Logger
}

// NewAnthropic creates an Anthropic provider. An empty APIKey falls back to
// the SDK's ANTHROPIC_API_KEY lookup.
func NewAnthropic(cfg Config, logger *slog.Logger) *Anthropic {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxOutputTokens,
		log:       logger,
	}
}

// Name returns "anthropic".
func (a *Anthropic) Name() string { return ProviderAnthropic }

// Generate sends prompt as a single user message and returns the reply text.
func (a *Anthropic) Generate(ctx context.Context, prompt string) (text string, err error) {
	start := time.Now()
	defer func() { observe(a.log, ProviderAnthropic, "generate", start, err) }()

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	resp := anthropicResponse(msg)
	if resp.Text == "" {
		return "", ErrNoText
	}
	return resp.Text, nil
}

// Call sends the conversation with tools and returns the model's reply.
func (a *Anthropic) Call(ctx context.Context, system string, messages []Message, tools []Tool) (resp Response, err error) {
	start := time.Now()
	defer func() { observe(a.log, ProviderAnthropic, "chat", start, err) }()

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  toAnthropicMessages(messages),
		Tools:     toAnthropicTools(tools),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic API error: %w", err)
	}
	return anthropicResponse(msg), nil
}

func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		var blocks []anthropic.ContentBlockParamUnion
		if m.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(m.Text))
		}
		for _, tc := range m.ToolCalls {
			input := tc.Input
			if input == nil {
				input = map[string]any{}
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		for _, tr := range m.ToolResults {
			blocks = append(blocks, anthropic.NewToolResultBlock(tr.ID, tr.Content, tr.IsError))
		}
		if len(blocks) == 0 {
			continue
		}
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func toAnthropicTools(tools []Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		props, required := schemaParts(t.InputSchema)
		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.Opt(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return out
}

func anthropicResponse(msg *anthropic.Message) Response {
	var (
		resp Response
		text strings.Builder
	)
	for _, blk := range msg.Content {
		switch blk.Type {
		case "text":
			text.WriteString(blk.AsText().Text)
		case "tool_use":
			tu := blk.AsToolUse()
			var input map[string]any
			if err := json.Unmarshal(tu.Input, &input); err != nil {
				continue
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: tu.ID, Name: tu.Name, Input: input})
		}
	}
	resp.Text = strings.TrimSpace(text.String())
	return resp
}
