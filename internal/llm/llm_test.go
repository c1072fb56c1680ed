package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSuggestion(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"I would BUY here", "Buy"},
		{"sell now, do not buy", "Buy"},
		{"Consider selling", "Sell"},
		{"Open a long", "Long Position"},
		{"Go SHORT", "Short Position"},
		{"long and short both valid", "Long Position"},
		{"wait and see", "Hold"},
		{"", "Hold"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractSuggestion(tt.text), tt.text)
	}
}

func TestDegrade(t *testing.T) {
	s, r := Degrade("Buy", "text", nil)
	assert.Equal(t, "Buy", s)
	assert.Equal(t, "text", r)

	s, r = Degrade("", "", errors.New("timeout"))
	assert.Equal(t, ErrorSuggestion, s)
	assert.Equal(t, NoReasoning, r)
}
