package chart

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/types"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func candles(n int, flat bool) []types.Candle {
	out := make([]types.Candle, n)
	start := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	for i := range out {
		p := 100.0
		if !flat {
			p += float64(i%7) - float64(i)/3
		}
		out[i] = types.Candle{
			OpenTime: start.Add(time.Duration(i) * 15 * time.Minute),
			Open:     p, High: p + 1, Low: p - 1, Close: p,
			Volume: float64(10 * (i + 1)),
		}
	}
	return out
}

func newRenderer(t *testing.T) (*Renderer, string) {
	dir := t.TempDir()
	return New(dir, 30, logger.Nop(), WithClock(func() time.Time { return fixedNow })), dir
}

func TestRenderWritesPNG(t *testing.T) {
	r, dir := newRenderer(t)

	path, err := r.Render(context.Background(), "BTCUSDT", "15m", candles(50, false))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2024-03-09", "BTCUSDT-14-05-07.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestRenderFlatSeries(t *testing.T) {
	r, _ := newRenderer(t)
	flat := candles(30, true)
	for i := range flat {
		flat[i].Volume = 0
	}
	_, err := r.Render(context.Background(), "ETHUSDT", "1h", flat)
	assert.NoError(t, err)
}

func TestRenderTooFewCandles(t *testing.T) {
	r, _ := newRenderer(t)
	_, err := r.Render(context.Background(), "ETHUSDT", "1h", candles(1, false))
	assert.ErrorIs(t, err, ErrTooFewCandles)
}

func TestRegress(t *testing.T) {
	start := time.Unix(0, 0)
	times := []time.Time{start, start.Add(time.Second), start.Add(2 * time.Second)}
	slope, intercept := regress(times, []float64{1, 3, 5})
	assert.InDelta(t, 2.0, slope, 1e-12)
	assert.InDelta(t, 1.0, intercept, 1e-12)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "BTC / USDT", title("BTCUSDT"))
	assert.Equal(t, "ETHBTC", title("ETHBTC"))
}
