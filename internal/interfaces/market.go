package interfaces

import (
	"context"

	"crypto-llm-analyst/internal/types"
)

// MarketData is the exchange side of a pass. Implementations wrap transport
// failures in types.ErrUnavailable.
type MarketData interface {
	Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
	OrderBook(ctx context.Context, symbol string, depth int) (*types.OrderBook, error)
	Volume24h(ctx context.Context, symbol string) (float64, error)
	Liquidity(ctx context.Context, symbol string) (*float64, error)
}

// PriceSource provides the external price index and market-wide dominance.
type PriceSource interface {
	Prices(ctx context.Context, ids []string) (types.PriceIndex, error)
	BitcoinDominance(ctx context.Context) (*float64, error)
}

// SentimentSource provides the fear and greed index and Bitcoin sentiment.
type SentimentSource interface {
	FearAndGreed(ctx context.Context) (*int, error)
	BitcoinSentiment(ctx context.Context) (string, error)
}

// HeadlineSource returns recent market headlines.
type HeadlineSource interface {
	Headlines(ctx context.Context, max int) ([]types.NewsArticle, error)
}
