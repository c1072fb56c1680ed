package interfaces

import "context"

// Model sends a composed prompt to a language model. It returns a coarse
// suggestion label and the full response text.
type Model interface {
	Analyze(ctx context.Context, prompt string) (suggestion, response string, err error)
}
