package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Gemini implements Provider on the Gemini API.
type Gemini struct {
	client    *genai.Client
	model     string
	maxTokens int32
	log       *slog.Logger
}

// NewGemini creates a Gemini provider. An empty APIKey falls back to the
// SDK's GOOGLE_API_KEY/GEMINI_API_KEY lookup.
func NewGemini(ctx context.Context, cfg Config, logger *slog.Logger) (*Gemini, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{
		client:    client,
		model:     cfg.Model,
		maxTokens: int32(cfg.MaxOutputTokens),
		log:       logger,
	}, nil
}

// Name returns "gemini".
func (g *Gemini) Name() string { return ProviderGemini }

// Generate sends prompt as a single user turn and returns the reply text.
func (g *Gemini) Generate(ctx context.Context, prompt string) (text string, err error) {
	start := time.Now()
	defer func() { observe(g.log, ProviderGemini, "generate", start, err) }()

	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	out := geminiResponse(resp)
	if out.Text == "" {
		return "", ErrNoText
	}
	return out.Text, nil
}

// Call sends the conversation with tools and returns the model's reply.
func (g *Gemini) Call(ctx context.Context, system string, messages []Message, tools []Tool) (resp Response, err error) {
	start := time.Now()
	defer func() { observe(g.log, ProviderGemini, "chat", start, err) }()

	config := &genai.GenerateContentConfig{MaxOutputTokens: g.maxTokens}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if len(tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toGeminiFunctions(tools)}}
	}

	out, err := g.client.Models.GenerateContent(ctx, g.model, toGeminiContents(messages), config)
	if err != nil {
		return Response{}, fmt.Errorf("gemini API error: %w", err)
	}
	return geminiResponse(out), nil
}

func toGeminiContents(messages []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		c := &genai.Content{Role: role}
		if m.Text != "" {
			c.Parts = append(c.Parts, &genai.Part{Text: m.Text})
		}
		for _, tc := range m.ToolCalls {
			c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: tc.Input}})
		}
		for _, tr := range m.ToolResults {
			key := "output"
			if tr.IsError {
				key = "error"
			}
			c.Parts = append(c.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       tr.ID,
				Name:     tr.Name,
				Response: map[string]any{key: tr.Content},
			}})
		}
		if len(c.Parts) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

func toGeminiFunctions(tools []Tool) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props, required := schemaParts(t.InputSchema)
		params := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(props)),
			Required:   required,
		}
		for name, raw := range props {
			params.Properties[name] = toGeminiSchema(raw)
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		})
	}
	return out
}

// toGeminiSchema converts a flat JSON schema property. Only scalar types
// are needed by the tools asksql registers.
func toGeminiSchema(raw any) *genai.Schema {
	prop, _ := raw.(map[string]any)
	s := &genai.Schema{Type: genai.TypeString}
	switch prop["type"] {
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	}
	if d, ok := prop["description"].(string); ok {
		s.Description = d
	}
	return s
}

func geminiResponse(resp *genai.GenerateContentResponse) Response {
	var (
		out  Response
		text strings.Builder
	)
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:    part.FunctionCall.ID,
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			})
			continue
		}
		text.WriteString(part.Text)
	}
	out.Text = strings.TrimSpace(text.String())
	return out
}
