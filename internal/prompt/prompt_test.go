package prompt

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-llm-analyst/internal/types"
)

func intPtr(v int) *int { return &v }

func sampleRecord() types.AnalysisRecord {
	return types.AnalysisRecord{
		Symbol:             "BTCUSDT",
		Price:              43000,
		RSI:                types.Float(61.25),
		MACD:               types.Float(12.5),
		Signal:             types.Float(10),
		BollingerUpper:     types.Float(43500.5),
		BollingerLower:     types.Float(42100),
		VWAP:               types.Float(42800.75),
		ATR:                types.Float(150),
		OBV:                types.Float(-2500),
		Stochastic:         types.Float(80),
		ADX:                types.Float(25.5),
		BidAskSpread:       types.Float(0.01),
		OrderBookImbalance: types.Float(0.55),
		Volume:             12345.5,
		Liquidity:          types.Float(0.01),
		CoinGeckoPrice:     types.Float(43010),
		CoinGeckoMarketCap: types.Float(840000000000),
	}
}

func TestComposeHeaderAndInstructions(t *testing.T) {
	out := Compose(types.GlobalMetrics{
		FearGreed:    intPtr(72),
		BTCDominance: types.Float(52.3),
		Sentiment:    "mean: 0.61",
	}, nil)

	assert.True(t, strings.HasPrefix(out, "Global Market Metrics:\n- Fear & Greed Index: 72\n- BTC Dominance: 52.3%\n- Bitcoin Sentiment: mean: 0.61\n\n"))
	assert.Contains(t, out, "Each cryptocurrency symbol should be a key in a JSON object")
	assert.Contains(t, out, "BUY, SELL, HOLD, SHORT, or LONG")
	assert.Contains(t, out, "'SYMBOL': 'Reasoning for the symbol...'")
	assert.NotContains(t, out, "Recent Headlines")
}

func TestComposeMissingMetrics(t *testing.T) {
	out := Compose(types.GlobalMetrics{}, nil)
	assert.Contains(t, out, "- Fear & Greed Index: N/A\n")
	assert.Contains(t, out, "- BTC Dominance: N/A%\n")
	assert.Contains(t, out, "- Bitcoin Sentiment: N/A\n")
}

func TestComposeRecordLine(t *testing.T) {
	out := Compose(types.GlobalMetrics{}, []types.AnalysisRecord{sampleRecord()})
	want := "BTCUSDT | Price: 43000.0 | RSI: 61.25 | MACD: 12.5 | Signal: 10.0 | " +
		"Bollinger Bands: Upper: 43500.5, Lower: 42100.0 | VWAP: 42800.75 | ATR: 150.0 | OBV: -2500.0 | " +
		"Stochastic: 80.0 | ADX: 25.5 | Bid-Ask Spread: 0.01 | Order Book Imbalance: 0.55 | " +
		"Volume: 12345.5 | Liquidity: 0.01 | CoinGecko Price: 43010.0 | CoinGecko Market Cap: 840000000000.0\n"
	assert.True(t, strings.HasSuffix(out, want), out)
}

func TestComposeUnavailableFieldsRenderNA(t *testing.T) {
	rec := types.AnalysisRecord{Symbol: "ETHUSDT", Price: 2000, RSI: types.Float(math.NaN())}
	out := Compose(types.GlobalMetrics{}, []types.AnalysisRecord{rec})
	line := out[strings.Index(out, "ETHUSDT |"):]
	assert.Contains(t, line, "RSI: N/A | MACD: N/A")
	assert.Contains(t, line, "Upper: N/A, Lower: N/A")
	assert.Contains(t, line, "CoinGecko Market Cap: N/A\n")
	assert.Contains(t, line, "Volume: 0.0")
}

func TestComposeKeepsRecordOrderAndIsDeterministic(t *testing.T) {
	a := sampleRecord()
	b := sampleRecord()
	b.Symbol = "ETHUSDT"
	m := types.GlobalMetrics{FearGreed: intPtr(10), Headlines: []string{"ETF inflows rise", "Exchange outage"}}

	out := Compose(m, []types.AnalysisRecord{b, a})
	assert.Less(t, strings.Index(out, "ETHUSDT |"), strings.Index(out, "BTCUSDT |"))
	assert.Equal(t, out, Compose(m, []types.AnalysisRecord{b, a}))
	assert.Contains(t, out, "\nRecent Headlines:\n- ETF inflows rise\n- Exchange outage\n\n")
}

func TestCountTokensCl100k(t *testing.T) {
	n, err := CountTokens("hello world")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = CountTokens("tiktoken is great!")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = CountTokens("")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCountTokensNumbersCostMoreThanEstimate(t *testing.T) {
	// digits are split into groups of at most three
	digits := strings.Repeat("1234567890", 10)
	n, err := CountTokens(digits)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 34)
	assert.Greater(t, n, EstimateTokens(digits))
}

func TestCheckBudget(t *testing.T) {
	n, err := CheckBudget("tiktoken is great!", 6)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = CheckBudget("tiktoken is great!", 5)
	assert.ErrorIs(t, err, ErrTooLong)
	assert.Equal(t, 6, n)

	_, err = CheckBudget(strings.Repeat("x ", 50000), 0)
	assert.NoError(t, err)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}
