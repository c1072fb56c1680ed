package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("symbols: [BTCUSDT, ETHUSDT]\n"))
	require.NoError(t, err)

	assert.Equal(t, ModeFullAnalysis, cfg.Mode)
	assert.Equal(t, "15m", cfg.Candles.Interval)
	assert.Equal(t, 50, cfg.Candles.Limit)
	assert.Equal(t, 30, cfg.Candles.ChartTail)
	assert.Equal(t, 14, cfg.Indicators.RSIPeriod)
	assert.Equal(t, 26, cfg.Indicators.MACDSlow)
	assert.Equal(t, "gpt-4", cfg.LLM.Model)
	assert.Equal(t, 3500, cfg.LLM.MaxPromptTokens)
	assert.Equal(t, time.Second, cfg.Telegram.MessageDelay)
	assert.Equal(t, "bitcoin", cfg.SymbolMap["BTCUSDT"])
	assert.Equal(t, "structured", cfg.Reconcile.Strategy)
	assert.True(t, cfg.CallsModel())
	assert.True(t, cfg.SendsNotifications())
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
mode: skip-telegram
symbols: [SOLUSDT]
candles:
  interval: 1h
  limit: 100
telegram:
  message_delay: 250ms
llm:
  provider: CLAUDE
  model: claude-3-5-sonnet-latest
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SOLUSDT"}, cfg.Symbols)
	assert.Equal(t, "1h", cfg.Candles.Interval)
	assert.Equal(t, 250*time.Millisecond, cfg.Telegram.MessageDelay)
	assert.Equal(t, "CLAUDE", cfg.LLM.Provider)
	assert.False(t, cfg.SendsNotifications())
	assert.True(t, cfg.CallsModel())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS_TO_MONITOR", "btcusdt, ethusdt")
	t.Setenv("TELEGRAM_MESSAGE_DELAY", "2.5")
	t.Setenv("HISTORICAL_DATA_LIMIT", "60")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")

	cfg, err := ParseConfig([]byte("mode: skip-gpt\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, 2500*time.Millisecond, cfg.Telegram.MessageDelay)
	assert.Equal(t, 60, cfg.Candles.Limit)
	assert.Equal(t, "tok", cfg.Telegram.BotToken)
	assert.False(t, cfg.CallsModel())
}

func TestValidationErrors(t *testing.T) {
	cases := map[string]string{
		"bad mode":        "mode: yolo\n",
		"lowercase sym":   "symbols: [btcusdt]\n",
		"duplicate sym":   "symbols: [BTCUSDT, BTCUSDT]\n",
		"macd order":      "indicators: {macd_fast: 30, macd_slow: 26}\n",
		"tail over limit": "candles: {limit: 20, chart_tail: 30}\n",
		"bad strategy":    "reconcile: {strategy: fuzzy}\n",
		"bad depth":       "order_book_depth: 7\n",
	}
	for name, yml := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(yml))
			assert.Error(t, err)
		})
	}
}
