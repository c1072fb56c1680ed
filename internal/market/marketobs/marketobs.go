package marketobs

import (
	"context"

	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/trace"
	"crypto-llm-analyst/internal/types"
)

// observableMarket wraps MarketData with logging and tracing
type observableMarket struct {
	market interfaces.MarketData
	log    *logger.Logger
}

// Compile-time interface check
var _ interfaces.MarketData = (*observableMarket)(nil)

// Wrap wraps a market data source with observability middleware
func Wrap(market interfaces.MarketData, log *logger.Logger) interfaces.MarketData {
	return &observableMarket{market: market, log: log}
}

func (om *observableMarket) Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "market.Candles")
	defer span.End()

	om.log.Debug(ctx, "Fetching candles", "symbol", symbol, "interval", interval, "limit", limit)

	candles, err := om.market.Candles(ctx, symbol, interval, limit)
	if err != nil {
		om.log.Warn(ctx, "Failed to fetch candles", "symbol", symbol, "interval", interval, "error", err)
		return nil, err
	}

	om.log.Debug(ctx, "Candles fetched", "symbol", symbol, "count", len(candles))
	return candles, nil
}

func (om *observableMarket) OrderBook(ctx context.Context, symbol string, depth int) (*types.OrderBook, error) {
	ctx, span := trace.StartSpan(ctx, "market.OrderBook")
	defer span.End()

	book, err := om.market.OrderBook(ctx, symbol, depth)
	if err != nil {
		om.log.Warn(ctx, "Failed to fetch order book", "symbol", symbol, "depth", depth, "error", err)
		return nil, err
	}

	om.log.Debug(ctx, "Order book fetched", "symbol", symbol, "bids", len(book.Bids), "asks", len(book.Asks))
	return book, nil
}

func (om *observableMarket) Volume24h(ctx context.Context, symbol string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "market.Volume24h")
	defer span.End()

	v, err := om.market.Volume24h(ctx, symbol)
	if err != nil {
		om.log.Warn(ctx, "Failed to fetch 24h volume", "symbol", symbol, "error", err)
		return 0, err
	}
	return v, nil
}

func (om *observableMarket) Liquidity(ctx context.Context, symbol string) (*float64, error) {
	ctx, span := trace.StartSpan(ctx, "market.Liquidity")
	defer span.End()

	v, err := om.market.Liquidity(ctx, symbol)
	if err != nil {
		om.log.Warn(ctx, "Failed to fetch liquidity", "symbol", symbol, "error", err)
		return nil, err
	}
	if v == nil {
		om.log.Info(ctx, "No sufficient depth to calculate liquidity", "symbol", symbol)
	}
	return v, nil
}
