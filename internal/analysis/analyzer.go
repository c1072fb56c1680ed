// Package analysis turns raw market data into per-symbol AnalysisRecords.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/store"
	"crypto-llm-analyst/internal/ta"
	"crypto-llm-analyst/internal/types"
)

// Params are the candle window and indicator windows used per symbol.
type Params struct {
	Interval       string
	Limit          int
	OrderBookDepth int

	RSIPeriod   int
	MACDFast    int
	MACDSlow    int
	MACDSignal  int
	StochPeriod int
	BBWindow    int
	BBStdDev    float64
	ATRPeriod   int
	ADXPeriod   int
}

func DefaultParams() Params {
	return Params{
		Interval:       "15m",
		Limit:          50,
		OrderBookDepth: 10,
		RSIPeriod:      14,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		StochPeriod:    14,
		BBWindow:       20,
		BBStdDev:       2,
		ATRPeriod:      14,
		ADXPeriod:      14,
	}
}

func ParamsFromConfig(cfg *store.Config) Params {
	ind := cfg.Indicators
	return Params{
		Interval:       cfg.Candles.Interval,
		Limit:          cfg.Candles.Limit,
		OrderBookDepth: cfg.OrderBookDepth,
		RSIPeriod:      ind.RSIPeriod,
		MACDFast:       ind.MACDFast,
		MACDSlow:       ind.MACDSlow,
		MACDSignal:     ind.MACDSignal,
		StochPeriod:    ind.StochPeriod,
		BBWindow:       ind.BBWindow,
		BBStdDev:       ind.BBStdDev,
		ATRPeriod:      ind.ATRPeriod,
		ADXPeriod:      ind.ADXPeriod,
	}
}

// Status tags an Outcome.
type Status int

const (
	StatusOK Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Outcome is the result of analyzing one symbol: a record, a skip (no
// candle data), or a failure carrying a *SymbolError.
type Outcome struct {
	Symbol string
	Status Status
	Record *types.AnalysisRecord
	Err    error
}

// SymbolError wraps an unexpected fault raised while analyzing Symbol.
type SymbolError struct {
	Symbol string
	Err    error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("error analyzing symbol %s: %v", e.Symbol, e.Err)
}

func (e *SymbolError) Unwrap() error { return e.Err }

func failed(symbol string, err error) Outcome {
	return Outcome{Symbol: symbol, Status: StatusFailed, Err: &SymbolError{Symbol: symbol, Err: err}}
}

// Analyzer builds one AnalysisRecord per call. It holds no per-symbol state.
type Analyzer struct {
	market    interfaces.MarketData
	prices    types.PriceIndex
	symbolMap map[string]string
	params    Params
	log       *logger.Logger
}

func NewAnalyzer(market interfaces.MarketData, prices types.PriceIndex, symbolMap map[string]string, params Params, log *logger.Logger) *Analyzer {
	return &Analyzer{market: market, prices: prices, symbolMap: symbolMap, params: params, log: log}
}

// Analyze fetches one candle window and the auxiliary market data for symbol
// and computes every indicator independently. Missing candles yield a
// skipped outcome; auxiliary fetch failures only blank their fields.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed(symbol, fmt.Errorf("panic: %v", r))
		}
	}()

	p := a.params
	candles, err := a.market.Candles(ctx, symbol, p.Interval, p.Limit)
	switch {
	case errors.Is(err, types.ErrUnavailable):
		return Outcome{Symbol: symbol, Status: StatusSkipped, Err: err}
	case err != nil:
		return failed(symbol, err)
	case len(candles) == 0:
		return Outcome{Symbol: symbol, Status: StatusSkipped}
	}

	highs, lows, closes, volumes := ta.Columns(candles)
	rec := &types.AnalysisRecord{Symbol: symbol, Price: closes[len(closes)-1]}

	a.guard(ctx, symbol, "rsi", func() { rec.RSI = last(ta.RSI(closes, p.RSIPeriod)) })
	a.guard(ctx, symbol, "macd", func() {
		macd, sig := ta.MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
		rec.MACD, rec.Signal = last(macd), last(sig)
	})
	a.guard(ctx, symbol, "bollinger", func() {
		_, upper, lower := ta.Bollinger(closes, p.BBWindow, p.BBStdDev)
		rec.BollingerUpper, rec.BollingerLower = last(upper), last(lower)
	})
	a.guard(ctx, symbol, "vwap", func() { rec.VWAP = last(ta.VWAP(closes, volumes)) })
	a.guard(ctx, symbol, "atr", func() { rec.ATR = last(ta.ATR(highs, lows, closes, p.ATRPeriod)) })
	a.guard(ctx, symbol, "obv", func() { rec.OBV = last(ta.OBV(closes, volumes)) })
	a.guard(ctx, symbol, "stochastic", func() { rec.Stochastic = last(ta.Stochastic(highs, lows, closes, p.StochPeriod)) })
	a.guard(ctx, symbol, "adx", func() { rec.ADX = last(ta.ADX(highs, lows, closes, p.ADXPeriod)) })

	book, err := a.market.OrderBook(ctx, symbol, p.OrderBookDepth)
	if err != nil {
		a.log.Warn(ctx, "Order book unavailable", "symbol", symbol, "error", err)
	}
	a.guard(ctx, symbol, "bid_ask_spread", func() { rec.BidAskSpread = optional(ta.BidAskSpread(book)) })
	a.guard(ctx, symbol, "order_book_imbalance", func() { rec.OrderBookImbalance = optional(ta.OrderBookImbalance(book)) })

	if v, err := a.market.Volume24h(ctx, symbol); err != nil {
		a.log.Warn(ctx, "24h volume unavailable, using 0", "symbol", symbol, "error", err)
	} else {
		rec.Volume = v
	}
	if v, err := a.market.Liquidity(ctx, symbol); err != nil {
		a.log.Warn(ctx, "Liquidity unavailable", "symbol", symbol, "error", err)
	} else if v != nil {
		rec.Liquidity = types.Float(*v)
	}

	if id, ok := a.symbolMap[symbol]; ok {
		if q, ok := a.prices[id]; ok {
			rec.CoinGeckoPrice = copyFloat(q.USD)
			rec.CoinGeckoMarketCap = copyFloat(q.USDMarketCap)
		}
	}

	return Outcome{Symbol: symbol, Status: StatusOK, Record: rec}
}

// guard runs one indicator computation; a panic blanks only that indicator.
func (a *Analyzer) guard(ctx context.Context, symbol, indicator string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Warn(ctx, "Indicator computation failed", "symbol", symbol, "indicator", indicator, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func last(s ta.Series) *float64 {
	if v, ok := s.Last(); ok {
		return &v
	}
	return nil
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return types.Float(*p)
}
