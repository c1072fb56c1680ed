// Package coingecko reads spot prices, market caps and Bitcoin dominance.
package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crypto-llm-analyst/internal/api"
	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/types"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	batchSize      = 100
)

type Client struct {
	http       *api.Client
	retry      *api.RetryConfig
	batchDelay time.Duration
}

var _ interfaces.PriceSource = (*Client)(nil)

// New creates a client with three attempts 1.5s apart per request.
func New(opts ...api.ClientOption) *Client {
	base := []api.ClientOption{api.WithBaseURL(DefaultBaseURL)}
	for k, v := range api.BrowserHeaders() {
		base = append(base, api.WithHeader(k, v))
	}
	return &Client{
		http:       api.NewClient(append(base, opts...)...),
		retry:      &api.RetryConfig{MaxAttempts: 3, InitialWait: 1500 * time.Millisecond, Multiplier: 1},
		batchDelay: 1500 * time.Millisecond,
	}
}

// WithPacing overrides the retry policy and the pause between batches.
func (c *Client) WithPacing(retry *api.RetryConfig, batchDelay time.Duration) *Client {
	c.retry = retry
	c.batchDelay = batchDelay
	return c
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req := api.NewRequest(http.MethodGet, path).WithContext(ctx).WithQuery(q)
	resp, err := c.http.DoWithRetry(req, c.retry)
	if err != nil {
		return fmt.Errorf("%w: coingecko %s: %v", types.ErrUnavailable, path, err)
	}
	return resp.ParseJSON(out)
}

// Prices fetches USD quotes for ids in batches of 100. A failed batch is
// skipped; an error is returned only when nothing could be fetched.
func (c *Client) Prices(ctx context.Context, ids []string) (types.PriceIndex, error) {
	index := make(types.PriceIndex, len(ids))
	var errs []error
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		q := url.Values{
			"ids":                {strings.Join(ids[start:end], ",")},
			"vs_currencies":      {"usd"},
			"include_market_cap": {"true"},
			"include_24hr_vol":   {"true"},
		}
		var batch map[string]types.CoinQuote
		if err := c.get(ctx, "/simple/price", q, &batch); err != nil {
			errs = append(errs, err)
		}
		for id, quote := range batch {
			index[id] = quote
		}

		if end < len(ids) {
			select {
			case <-ctx.Done():
				return index, ctx.Err()
			case <-time.After(c.batchDelay):
			}
		}
	}
	if len(index) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return index, nil
}

// BitcoinDominance returns BTC's share of total market cap in percent.
func (c *Client) BitcoinDominance(ctx context.Context) (*float64, error) {
	var g struct {
		Data struct {
			MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/global", nil, &g); err != nil {
		return nil, err
	}
	btc, ok := g.Data.MarketCapPercentage["btc"]
	if !ok {
		return nil, fmt.Errorf("%w: bitcoin dominance missing from response", types.ErrUnavailable)
	}
	return &btc, nil
}
