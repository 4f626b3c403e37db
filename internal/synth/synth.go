// Package synth turns a natural-language question into a SQL statement for
// the company schema.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/asksql/asksql/internal/llm"
	"github.com/asksql/asksql/internal/schema"
)

// ErrGeneration wraps every failure of the underlying text generator.
var ErrGeneration = errors.New("sql generation failed")

// Synthesizer prompts a text generator with the schema-aware template.
type Synthesizer struct {
	gen llm.Generator
	log *slog.Logger
}

// New creates a Synthesizer backed by gen.
func New(gen llm.Generator, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Synthesizer{gen: gen, log: logger}
}

// Synthesize returns the generator's SQL for question with surrounding
// whitespace trimmed. The statement is not validated.
func (s *Synthesizer) Synthesize(ctx context.Context, question string) (string, error) {
	text, err := s.gen.Generate(ctx, schema.SynthesisPrompt(question))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	sql := strings.TrimSpace(text)
	s.log.Debug("sql synthesized", "question", question, "sql", sql)
	return sql, nil
}
