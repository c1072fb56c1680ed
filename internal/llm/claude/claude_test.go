package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-llm-analyst/internal/api"
	"crypto-llm-analyst/internal/llm"
)

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-sonnet", req.Model)
		assert.Equal(t, "be terse", req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Write([]byte(`{"content":[{"type":"text","text":"{'ETHUSDT': 'Open a long'}"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	c := New("key", llm.Settings{Model: "claude-sonnet", MaxTokens: 500, System: "be terse"}, api.WithBaseURL(srv.URL))
	suggestion, response, err := c.Analyze(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Long Position", suggestion)
	assert.Equal(t, "{'ETHUSDT': 'Open a long'}", response)
}

func TestAnalyzeEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[],"stop_reason":"max_tokens"}`))
	}))
	defer srv.Close()

	_, _, err := New("key", llm.Settings{}, api.WithBaseURL(srv.URL)).Analyze(context.Background(), "prompt")
	assert.ErrorContains(t, err, "max_tokens")
}

func TestAnalyzeMissingKey(t *testing.T) {
	_, _, err := New("", llm.Settings{}).Analyze(context.Background(), "prompt")
	assert.ErrorContains(t, err, "CLAUDE_API_KEY")
}
