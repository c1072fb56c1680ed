package claude

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
	// DefaultBaseURL is the public Anthropic API. Proxies override it with
	// CLAUDE_API_ENDPOINT.
	DefaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	requestTimeout   = 90 * time.Second
)

// Client implements interfaces.Model over the Anthropic Messages API.
type Client struct {
	apiKey   string
	settings llm.Settings
	http     *api.Client
}

var _ interfaces.Model = (*Client)(nil)

func New(apiKey string, settings llm.Settings, opts ...api.ClientOption) *Client {
	base := []api.ClientOption{api.WithBaseURL(DefaultBaseURL), api.WithTimeout(requestTimeout)}
	return &Client{
		apiKey:   apiKey,
		settings: settings,
		http:     api.NewClient(append(base, opts...)...),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *Client) Analyze(ctx context.Context, prompt string) (string, string, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	if c.apiKey == "" {
		return "", "", errors.New("CLAUDE_API_KEY missing")
	}

	body := messagesRequest{
		Model:       c.settings.Model,
		System:      c.settings.System,
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   c.settings.MaxTokens,
		Temperature: c.settings.Temperature,
	}
	resp, err := c.http.POST(ctx, "/v1/messages", body, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	})
	if err != nil {
		return "", "", fmt.Errorf("claude: %w", err)
	}

	var r messagesResponse
	if err := resp.ParseJSON(&r); err != nil {
		return "", "", fmt.Errorf("claude: %w", err)
	}

	var parts []string
	for _, block := range r.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", "", fmt.Errorf("claude: empty response (stop_reason=%q)", r.StopReason)
	}

	out := strings.TrimSpace(strings.Join(parts, "\n"))
	return llm.ExtractSuggestion(out), out, nil
}
