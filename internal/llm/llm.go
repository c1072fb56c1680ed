// Package llm holds what the model providers share: request settings,
// suggestion extraction and the degraded result used when a call fails.
package llm

import (
	"strings"

	"crypto-llm-analyst/internal/store"
)

// Degraded result returned in place of a failed model call.
const (
	ErrorSuggestion = "Error analyzing data."
	NoReasoning     = "No reasoning available."
)

// Settings are the request parameters common to every provider.
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature float32
	System      string
}

func SettingsFromConfig(cfg *store.Config) Settings {
	return Settings{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		System:      cfg.LLM.System,
	}
}

// ExtractSuggestion labels a response by the first keyword found in
// priority order buy, sell, long, short. Anything else is Hold.
func ExtractSuggestion(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "buy"):
		return "Buy"
	case strings.Contains(lower, "sell"):
		return "Sell"
	case strings.Contains(lower, "long"):
		return "Long Position"
	case strings.Contains(lower, "short"):
		return "Short Position"
	default:
		return "Hold"
	}
}

// Degrade replaces the result of a failed call with the fixed fallback pair.
func Degrade(suggestion, response string, err error) (string, string) {
	if err != nil {
		return ErrorSuggestion, NoReasoning
	}
	return suggestion, response
}
