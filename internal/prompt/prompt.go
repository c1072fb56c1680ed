// Package prompt renders global metrics and analysis records into the text
// sent to the model.
package prompt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"crypto-llm-analyst/internal/types"
)

// ErrTooLong is returned by CheckBudget when a prompt exceeds the token cap.
var ErrTooLong = errors.New("prompt exceeds token budget")

const instructions = "Please analyze each of the following cryptocurrencies and provide actionable insights for each:\n" +
	"Each cryptocurrency symbol should be a key in a JSON object, and its value should include the recommendation and reasoning with actionable recommendations BUY, SELL, HOLD, SHORT, or LONG.\n\n" +
	"Ensure the response meets these criteria:\n" +
	"- **Complete**: Include analysis for all symbols.\n" +
	"- **Structured**: Use valid JSON format.\n" +
	"- **Concise**: Provide clear, actionable recommendations without excessive details.\n\n" +
	"Example:\n" +
	"{\n" +
	"    'SYMBOL': 'Reasoning for the symbol...'\n" +
	"}\n\n"

// Compose builds the prompt. Output depends only on its inputs; records are
// rendered one per line in the order given.
func Compose(metrics types.GlobalMetrics, records []types.AnalysisRecord) string {
	var b strings.Builder

	b.WriteString("Global Market Metrics:\n")
	fmt.Fprintf(&b, "- Fear & Greed Index: %s\n", fearGreed(metrics.FearGreed))
	fmt.Fprintf(&b, "- BTC Dominance: %s%%\n", Value(metrics.BTCDominance))
	fmt.Fprintf(&b, "- Bitcoin Sentiment: %s\n", orNA(metrics.Sentiment))
	if len(metrics.Headlines) > 0 {
		b.WriteString("\nRecent Headlines:\n")
		for _, h := range metrics.Headlines {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	b.WriteString("\n")
	b.WriteString(instructions)

	for _, r := range records {
		writeRecord(&b, r)
	}
	return b.String()
}

func writeRecord(b *strings.Builder, r types.AnalysisRecord) {
	fmt.Fprintf(b, "%s | Price: %s | RSI: %s | MACD: %s | ", r.Symbol, formatFloat(r.Price), Value(r.RSI), Value(r.MACD))
	fmt.Fprintf(b, "Signal: %s | Bollinger Bands: Upper: %s, Lower: %s | ", Value(r.Signal), Value(r.BollingerUpper), Value(r.BollingerLower))
	fmt.Fprintf(b, "VWAP: %s | ATR: %s | OBV: %s | ", Value(r.VWAP), Value(r.ATR), Value(r.OBV))
	fmt.Fprintf(b, "Stochastic: %s | ADX: %s | ", Value(r.Stochastic), Value(r.ADX))
	fmt.Fprintf(b, "Bid-Ask Spread: %s | Order Book Imbalance: %s | ", Value(r.BidAskSpread), Value(r.OrderBookImbalance))
	fmt.Fprintf(b, "Volume: %s | Liquidity: %s | CoinGecko Price: %s | CoinGecko Market Cap: %s\n",
		formatFloat(r.Volume), Value(r.Liquidity), Value(r.CoinGeckoPrice), Value(r.CoinGeckoMarketCap))
}

// Value renders an optional number, "N/A" when absent or not finite.
func Value(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return "N/A"
	}
	return formatFloat(*v)
}

// formatFloat prints the shortest exact decimal and keeps a trailing ".0"
// on whole numbers so prices never read as integers.
func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "N/A"
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func fearGreed(v *int) string {
	if v == nil {
		return "N/A"
	}
	return strconv.Itoa(*v)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
