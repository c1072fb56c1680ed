package noop

import (
	"context"

	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/logger"
)

// Model is the fallback used when no provider is configured. It answers
// Hold with an empty mapping so every symbol falls back to the default text.
type Model struct {
	log *logger.Logger
}

var _ interfaces.Model = (*Model)(nil)

func New(log *logger.Logger) *Model {
	return &Model{log: log}
}

func (m *Model) Analyze(ctx context.Context, prompt string) (string, string, error) {
	m.log.Debug(ctx, "Noop model called - always returns Hold", "promptChars", len(prompt))
	return "Hold", "{}", nil
}
