// Package binance reads candles, order books and 24h statistics from the
// Binance spot REST API.
package binance

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"crypto-llm-analyst/internal/api"
	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/types"
)

const (
	DefaultBaseURL = "https://api.binance.com"
	liquidityDepth = 5
)

type Client struct {
	http *api.Client
}

var _ interfaces.MarketData = (*Client)(nil)

// New creates a client. apiKey may be empty; the public endpoints used here
// do not require it.
func New(apiKey string, opts ...api.ClientOption) *Client {
	base := []api.ClientOption{api.WithBaseURL(DefaultBaseURL)}
	if apiKey != "" {
		base = append(base, api.WithHeader("X-MBX-APIKEY", apiKey))
	}
	return &Client{http: api.NewClient(append(base, opts...)...)}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	resp, err := c.http.GET(ctx, path, q)
	if err != nil {
		return fmt.Errorf("%w: binance %s: %v", types.ErrUnavailable, path, err)
	}
	if err := resp.ParseJSON(out); err != nil {
		return fmt.Errorf("%w: binance %s: %v", types.ErrUnavailable, path, err)
	}
	return nil
}

// Candles returns up to limit klines, oldest first.
func (c *Client) Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	var rows [][]any
	q := url.Values{
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}
	if err := c.get(ctx, "/api/v3/klines", q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no klines for %s", types.ErrUnavailable, symbol)
	}

	candles := make([]types.Candle, 0, len(rows))
	for i, row := range rows {
		cd, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("%w: kline %d for %s: %v", types.ErrUnavailable, i, symbol, err)
		}
		candles = append(candles, cd)
	}
	return candles, nil
}

// parseKline decodes [openTime, open, high, low, close, volume, ...].
func parseKline(row []any) (types.Candle, error) {
	if len(row) < 6 {
		return types.Candle{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	ms, ok := row[0].(float64)
	if !ok {
		return types.Candle{}, fmt.Errorf("open time is %T", row[0])
	}
	var vals [5]float64
	for i := range vals {
		v, err := number(row[i+1])
		if err != nil {
			return types.Candle{}, err
		}
		vals[i] = v
	}
	return types.Candle{
		OpenTime: time.UnixMilli(int64(ms)).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}

func number(v any) (float64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseFloat(x, 64)
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("unexpected numeric field %T", v)
	}
}

type depthResponse struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

// OrderBook returns the top depth levels per side. Unparsable prices or sizes
// are kept as NaN so downstream measures degrade instead of failing.
func (c *Client) OrderBook(ctx context.Context, symbol string, depth int) (*types.OrderBook, error) {
	var d depthResponse
	if err := c.get(ctx, "/api/v3/depth", url.Values{"symbol": {symbol}, "limit": {strconv.Itoa(depth)}}, &d); err != nil {
		return nil, err
	}
	return &types.OrderBook{Bids: levels(d.Bids), Asks: levels(d.Asks)}, nil
}

func levels(raw [][]string) []types.PriceLevel {
	out := make([]types.PriceLevel, 0, len(raw))
	for _, l := range raw {
		pl := types.PriceLevel{Price: math.NaN(), Size: math.NaN()}
		if len(l) > 0 {
			if v, err := strconv.ParseFloat(l[0], 64); err == nil {
				pl.Price = v
			}
		}
		if len(l) > 1 {
			if v, err := strconv.ParseFloat(l[1], 64); err == nil {
				pl.Size = v
			}
		}
		out = append(out, pl)
	}
	return out
}

// Volume24h returns the rolling 24h base-asset volume.
func (c *Client) Volume24h(ctx context.Context, symbol string) (float64, error) {
	var t struct {
		Volume string `json:"volume"`
	}
	if err := c.get(ctx, "/api/v3/ticker/24hr", url.Values{"symbol": {symbol}}, &t); err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(t.Volume, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: volume for %s: %v", types.ErrUnavailable, symbol, err)
	}
	return v, nil
}

// Liquidity is the absolute top-of-book gap from a shallow depth snapshot,
// rounded to 6 decimals. Nil when either side is empty.
func (c *Client) Liquidity(ctx context.Context, symbol string) (*float64, error) {
	book, err := c.OrderBook(ctx, symbol, liquidityDepth)
	if err != nil {
		return nil, err
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return nil, nil
	}
	gap := math.Abs(book.Asks[0].Price - book.Bids[0].Price)
	if math.IsNaN(gap) {
		return nil, nil
	}
	v := math.Round(gap*1e6) / 1e6
	return &v, nil
}
