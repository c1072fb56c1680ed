package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crypto-llm-analyst/internal/api"
	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/llm"
	"crypto-llm-analyst/internal/trace"
)

const (
	defaultBaseURL = "https://api.openai.com"
	requestTimeout = 90 * time.Second
)

// Client calls the chat completions endpoint with one system and one user
// message.
type Client struct {
	apiKey   string
	settings llm.Settings
	http     *api.Client
}

var _ interfaces.Model = (*Client)(nil)

func New(apiKey string, settings llm.Settings, opts ...api.ClientOption) *Client {
	base := []api.ClientOption{api.WithBaseURL(defaultBaseURL), api.WithTimeout(requestTimeout)}
	return &Client{
		apiKey:   apiKey,
		settings: settings,
		http:     api.NewClient(append(base, opts...)...),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Analyze(ctx context.Context, prompt string) (string, string, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	if c.apiKey == "" {
		return "", "", errors.New("OPENAI_API_KEY missing")
	}

	body := chatRequest{
		Model: c.settings.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.settings.System},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.settings.MaxTokens,
		Temperature: c.settings.Temperature,
	}
	resp, err := c.http.POST(ctx, "/v1/chat/completions", body, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	})
	if err != nil {
		return "", "", fmt.Errorf("openai: %w", err)
	}

	var r chatResponse
	if err := resp.ParseJSON(&r); err != nil {
		return "", "", fmt.Errorf("openai: %w", err)
	}
	if len(r.Choices) == 0 {
		return "", "", errors.New("openai: no choices")
	}

	out := strings.TrimSpace(r.Choices[0].Message.Content)
	return llm.ExtractSuggestion(out), out, nil
}
