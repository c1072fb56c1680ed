// Package sentiment reads the crypto Fear & Greed index and daily Bitcoin
// sentiment.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"crypto-llm-analyst/internal/api"
	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/types"
)

const (
	FearGreedURL  = "https://api.alternative.me"
	SentiCryptURL = "https://api.senticrypt.com"
)

// Client combines the Alternative.me and SentiCrypt endpoints.
type Client struct {
	fng   *api.Client
	senti *api.Client
	log   *logger.Logger
	now   func() time.Time
}

var _ interfaces.SentimentSource = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithEndpoints points the client at alternative base URLs.
func WithEndpoints(fearGreed, sentiCrypt string) Option {
	return func(c *Client) {
		c.fng = api.NewClient(api.WithBaseURL(fearGreed), api.WithLogger(c.log))
		c.senti = api.NewClient(api.WithBaseURL(sentiCrypt), api.WithLogger(c.log))
	}
}

// WithClock overrides the clock used to pick the SentiCrypt day.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		fng:   api.NewClient(api.WithBaseURL(FearGreedURL), api.WithLogger(log)),
		senti: api.NewClient(api.WithBaseURL(SentiCryptURL), api.WithLogger(log)),
		log:   log,
		now:   time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FearAndGreed returns the latest index value (0-100).
func (c *Client) FearAndGreed(ctx context.Context) (*int, error) {
	resp, err := c.fng.GET(ctx, "/fng/", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: fear and greed: %v", types.ErrUnavailable, err)
	}
	var body struct {
		Data []struct {
			Value string `json:"value"`
		} `json:"data"`
	}
	if err := resp.ParseJSON(&body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("%w: fear and greed response has no data", types.ErrUnavailable)
	}
	v, err := strconv.Atoi(body.Data[0].Value)
	if err != nil {
		return nil, fmt.Errorf("fear and greed value %q: %w", body.Data[0].Value, err)
	}
	return &v, nil
}

// BitcoinSentiment returns today's SentiCrypt summary, falling back to
// yesterday's when today has not been published yet.
func (c *Client) BitcoinSentiment(ctx context.Context) (string, error) {
	today := c.now().UTC()
	for _, day := range []time.Time{today, today.AddDate(0, 0, -1)} {
		date := day.Format("2006-01-02")
		fields, err := c.sentimentFor(ctx, date)
		if api.IsStatus(err, http.StatusNotFound) {
			c.log.Info(ctx, "Bitcoin sentiment not published yet", "date", date)
			continue
		}
		if err != nil {
			c.log.Warn(ctx, "Bitcoin sentiment not available", "date", date, "error", err)
			continue
		}
		return formatSentiment(fields), nil
	}
	return "", fmt.Errorf("%w: no Bitcoin sentiment for %s or the day before", types.ErrUnavailable, today.Format("2006-01-02"))
}

func (c *Client) sentimentFor(ctx context.Context, date string) (map[string]any, error) {
	resp, err := c.senti.GET(ctx, "/v2/history/"+date+".json", nil)
	if err != nil {
		return nil, err
	}

	var obj map[string]any
	if err := json.Unmarshal(resp.Body, &obj); err == nil {
		if _, ok := obj["mean"]; ok {
			return obj, nil
		}
		return nil, fmt.Errorf("unexpected sentiment format: no mean field")
	}

	// Daily history may also come back as a list of intraday points.
	var list []map[string]any
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return nil, fmt.Errorf("invalid sentiment JSON: %w", err)
	}
	for i := len(list) - 1; i >= 0; i-- {
		if _, ok := list[i]["mean"]; ok {
			return list[i], nil
		}
	}
	return nil, fmt.Errorf("unexpected sentiment format: no mean field")
}

func formatSentiment(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, fields[k]))
	}
	return strings.Join(parts, ", ")
}
