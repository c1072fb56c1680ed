package binance

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-llm-analyst/internal/api"
	"crypto-llm-analyst/internal/types"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New("key", api.WithBaseURL(srv.URL))
}

func TestCandles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "15m", r.URL.Query().Get("interval"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "key", r.Header.Get("X-MBX-APIKEY"))
		w.Write([]byte(`[
			[1700000000000,"100.0","110.5","95.25","105.0","12.5",1700000899999,"0",1,"0","0","0"],
			[1700000900000,"105.0","108.0","101.00","102.0","8.0",1700001799999,"0",1,"0","0","0"]
		]`))
	})

	candles, err := c.Candles(context.Background(), "BTCUSDT", "15m", 50)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 110.5, candles[0].High)
	assert.Equal(t, 95.25, candles[0].Low)
	assert.Equal(t, 12.5, candles[0].Volume)
	assert.Equal(t, int64(1700000900000), candles[1].OpenTime.UnixMilli())
	assert.True(t, candles[0].OpenTime.Before(candles[1].OpenTime))
}

func TestCandlesUnavailable(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http error": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadRequest) },
		"empty":      func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`[]`)) },
		"malformed":  func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`[[1700000000000,"x","1","1","1","1"]]`)) },
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newTestClient(t, h).Candles(context.Background(), "BTCUSDT", "15m", 50)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrUnavailable))
		})
	}
}

func TestOrderBookAndLiquidity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/depth", r.URL.Path)
		w.Write([]byte(`{"lastUpdateId":1,"bids":[["100.0000001","1.5"],["99.0","2"]],"asks":[["100.5","0.5"],["bad","1"]]}`))
	})

	book, err := c.OrderBook(context.Background(), "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, book.Bids, 2)
	assert.Equal(t, 1.5, book.Bids[0].Size)
	assert.True(t, math.IsNaN(book.Asks[1].Price))

	liq, err := c.Liquidity(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, liq)
	assert.Equal(t, 0.5, *liq)
}

func TestLiquidityEmptySide(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bids":[],"asks":[["1","1"]]}`))
	})
	liq, err := c.Liquidity(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, liq)
}

func TestVolume24h(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		w.Write([]byte(`{"symbol":"ETHUSDT","volume":"4321.5"}`))
	})
	v, err := c.Volume24h(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 4321.5, v)
}
