package types

import (
	"errors"
	"time"
)

// ErrUnavailable marks data a collaborator could not provide (transport
// failure, empty payload). Callers treat it as "skip", not as a fault.
var ErrUnavailable = errors.New("data unavailable")

type Candle struct {
	OpenTime                       time.Time
	Open, High, Low, Close, Volume float64
}

type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderBook holds bids and asks best-first. Either side may be empty.
type OrderBook struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// CoinQuote is one entry of the external price index.
type CoinQuote struct {
	USD          *float64 `json:"usd,omitempty"`
	USDMarketCap *float64 `json:"usd_market_cap,omitempty"`
	USD24hVol    *float64 `json:"usd_24h_vol,omitempty"`
}

// PriceIndex maps external coin ids (e.g. "bitcoin") to quotes.
type PriceIndex map[string]CoinQuote

// GlobalMetrics is the market-wide context placed in the prompt header.
type GlobalMetrics struct {
	FearGreed    *int
	BTCDominance *float64
	Sentiment    string
	Headlines    []string
}

// AnalysisRecord is the per-symbol snapshot built during one pass.
// Nil pointer fields are unavailable values.
type AnalysisRecord struct {
	Symbol             string   `json:"symbol" parquet:"symbol"`
	Price              float64  `json:"price" parquet:"price"`
	RSI                *float64 `json:"rsi" parquet:"rsi,optional"`
	MACD               *float64 `json:"macd" parquet:"macd,optional"`
	Signal             *float64 `json:"signal" parquet:"signal,optional"`
	BollingerUpper     *float64 `json:"bollinger_upper" parquet:"bollinger_upper,optional"`
	BollingerLower     *float64 `json:"bollinger_lower" parquet:"bollinger_lower,optional"`
	VWAP               *float64 `json:"vwap" parquet:"vwap,optional"`
	ATR                *float64 `json:"atr" parquet:"atr,optional"`
	OBV                *float64 `json:"obv" parquet:"obv,optional"`
	Stochastic         *float64 `json:"stochastic" parquet:"stochastic,optional"`
	ADX                *float64 `json:"adx" parquet:"adx,optional"`
	BidAskSpread       *float64 `json:"bid_ask_spread" parquet:"bid_ask_spread,optional"`
	OrderBookImbalance *float64 `json:"order_book_imbalance" parquet:"order_book_imbalance,optional"`
	Volume             float64  `json:"volume" parquet:"volume"`
	Liquidity          *float64 `json:"liquidity" parquet:"liquidity,optional"`
	CoinGeckoPrice     *float64 `json:"coingecko_price" parquet:"coingecko_price,optional"`
	CoinGeckoMarketCap *float64 `json:"coingecko_market_cap" parquet:"coingecko_market_cap,optional"`
}

// ReasoningBlocks maps every requested symbol to its extracted reasoning.
// A nil value means the model response had nothing for that symbol.
type ReasoningBlocks map[string]*string

// Text returns the block for symbol, or fallback when it is missing.
func (b ReasoningBlocks) Text(symbol, fallback string) string {
	if v, ok := b[symbol]; ok && v != nil {
		return *v
	}
	return fallback
}

// Unmatched lists the symbols without a block, in the given order.
func (b ReasoningBlocks) Unmatched(symbols []string) []string {
	var out []string
	for _, s := range symbols {
		if v := b[s]; v == nil {
			out = append(out, s)
		}
	}
	return out
}

// HistoryEntry is one published per-symbol message.
type HistoryEntry struct {
	ID        int64     `db:"id" json:"id"`
	RunID     string    `db:"run_id" json:"run_id"`
	Symbol    string    `db:"symbol" json:"symbol"`
	Analysis  string    `db:"analysis" json:"analysis"`
	ChartPath string    `db:"img" json:"img"`
	CreatedAt time.Time `db:"timestamp" json:"timestamp"`
}

// NewsArticle is a scraped market headline.
type NewsArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}

// Float returns a pointer to v. Convenience for optional fields.
func Float(v float64) *float64 { return &v }
