package llmobs

import (
	"context"

	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/trace"
)

// observableModel wraps a Model with observability (logging & tracing)
type observableModel struct {
	model interfaces.Model
	log   *logger.Logger
}

// Compile-time interface check
var _ interfaces.Model = (*observableModel)(nil)

// Wrap wraps a model with observability middleware
func Wrap(model interfaces.Model, log *logger.Logger) interfaces.Model {
	return &observableModel{model: model, log: log}
}

// Analyze sends the prompt with observability
func (om *observableModel) Analyze(ctx context.Context, prompt string) (string, string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Analyze")
	defer span.End()

	om.log.Info(ctx, "Sending data to model for analysis", "promptChars", len(prompt))

	suggestion, response, err := om.model.Analyze(ctx, prompt)
	if err != nil {
		om.log.ErrorWithErr(ctx, "Model analysis failed", err)
		return "", "", err
	}

	om.log.Info(ctx, "Model response received", "suggestion", suggestion, "responseChars", len(response))
	om.log.Debug(ctx, "Model reasoning", "response", response)
	return suggestion, response, nil
}
