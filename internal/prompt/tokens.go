package prompt

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// encodingName is the tokenizer of the gpt-3.5-turbo and gpt-4 families.
const encodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		// BPE ranks are embedded; no download at runtime.
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		enc, encErr = tiktoken.GetEncoding(encodingName)
	})
	return enc, encErr
}

// CountTokens counts text in the cl100k_base encoding.
func CountTokens(text string) (int, error) {
	e, err := encoding()
	if err != nil {
		return 0, fmt.Errorf("load %s encoding: %w", encodingName, err)
	}
	return len(e.Encode(text, nil, nil)), nil
}

// EstimateTokens approximates the count at four characters per token. It is
// only used when the encoding cannot be loaded.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// CheckBudget returns the token count and ErrTooLong when it exceeds max.
// A non-positive max disables the check.
func CheckBudget(text string, max int) (int, error) {
	n, err := CountTokens(text)
	if err != nil {
		n = EstimateTokens(text)
	}
	if max > 0 && n > max {
		return n, fmt.Errorf("%w: %d tokens, limit %d", ErrTooLong, n, max)
	}
	return n, nil
}
