// Package ta computes technical indicators over candle columns.
//
// Every series function returns a Series the same length as its input, or
// nil when the input is unusable (empty, mismatched lengths, bad window).
// Division faults surface as NaN or ±Inf points, never as panics.
package ta

import (
	"math"

	"crypto-llm-analyst/internal/types"
)

// Columns splits candles into the float columns the indicators consume.
func Columns(candles []types.Candle) (highs, lows, closes, volumes []float64) {
	n := len(candles)
	highs, lows, closes, volumes = make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, c := range candles {
		highs[i], lows[i], closes[i], volumes[i] = c.High, c.Low, c.Close, c.Volume
	}
	return
}

// SMA is the full-window simple moving average.
func SMA(values []float64, n int) Series {
	if len(values) == 0 || n <= 0 {
		return nil
	}
	return rollingMean(values, n, n)
}

// RSI uses simple means of gains and losses with min_periods=1, so early
// points are defined as soon as one price change exists. A window with no
// losses gives 100; one with neither gains nor losses gives NaN.
func RSI(closes []float64, period int) Series {
	if len(closes) == 0 || period <= 0 {
		return nil
	}
	delta := diff(closes)
	gain := make([]float64, len(closes))
	loss := make([]float64, len(closes))
	for i, d := range delta {
		if d > 0 {
			gain[i] = d
		} else if d < 0 {
			loss[i] = -d
		}
	}
	avgGain := rollingMean(gain, period, 1)
	avgLoss := rollingMean(loss, period, 1)

	out := make(Series, len(closes))
	for i := range out {
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// EMA is the recursive exponential average with alpha = 2/(span+1), seeded
// with the first observation.
func EMA(values []float64, span int) Series {
	if len(values) == 0 || span <= 0 {
		return nil
	}
	alpha := 2.0 / float64(span+1)
	out := make(Series, len(values))
	prev := math.NaN()
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = prev
			continue
		case math.IsNaN(prev):
			prev = v
		default:
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// MACD returns the fast-minus-slow EMA line and its signal EMA.
func MACD(closes []float64, fast, slow, signal int) (macd, sig Series) {
	if len(closes) == 0 || fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, nil
	}
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	macd = make(Series, len(closes))
	for i := range macd {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	return macd, EMA(macd, signal)
}

// Stochastic is %K over full windows of period candles.
func Stochastic(highs, lows, closes []float64, period int) Series {
	n := len(closes)
	if n == 0 || period <= 0 || !sameLen(n, highs, lows) {
		return nil
	}
	lowest := rollingMin(lows, period, period)
	highest := rollingMax(highs, period, period)
	out := make(Series, n)
	for i := range out {
		out[i] = (closes[i] - lowest[i]) / (highest[i] - lowest[i]) * 100
	}
	return out
}

// Bollinger returns the middle band and the bands k sample standard
// deviations above and below it.
func Bollinger(closes []float64, window int, k float64) (mid, upper, lower Series) {
	if len(closes) == 0 || window <= 0 {
		return nil, nil, nil
	}
	mid = SMA(closes, window)
	sd := rollingStd(closes, window, window)
	upper = make(Series, len(closes))
	lower = make(Series, len(closes))
	for i := range mid {
		upper[i] = mid[i] + k*sd[i]
		lower[i] = mid[i] - k*sd[i]
	}
	return mid, upper, lower
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|). The first
// point has no previous close and reduces to high-low.
func TrueRange(highs, lows, closes []float64) Series {
	n := len(closes)
	if n == 0 || !sameLen(n, highs, lows) {
		return nil
	}
	out := make(Series, n)
	for i := range out {
		tr := highs[i] - lows[i]
		if i > 0 {
			tr = math.Max(tr, math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		}
		out[i] = tr
	}
	return out
}

// ATR is the simple mean of the true range over full windows.
func ATR(highs, lows, closes []float64, period int) Series {
	if period <= 0 {
		return nil
	}
	tr := TrueRange(highs, lows, closes)
	if tr == nil {
		return nil
	}
	return rollingMean(tr, period, period)
}

// OBV accumulates volume with the sign of each close-to-close move,
// starting from zero.
func OBV(closes, volumes []float64) Series {
	n := len(closes)
	if n == 0 || len(volumes) != n {
		return nil
	}
	out := make(Series, n)
	for i := 1; i < n; i++ {
		out[i] = out[i-1]
		switch {
		case closes[i] > closes[i-1]:
			out[i] += volumes[i]
		case closes[i] < closes[i-1]:
			out[i] -= volumes[i]
		}
	}
	return out
}

// VWAP is the cumulative volume-weighted close from the window start.
func VWAP(closes, volumes []float64) Series {
	n := len(closes)
	if n == 0 || len(volumes) != n {
		return nil
	}
	out := make(Series, n)
	var pv, vol float64
	for i := range out {
		pv += closes[i] * volumes[i]
		vol += volumes[i]
		out[i] = pv / vol
	}
	return out
}

// ADX averages the directional index over period points. Directional
// movements are clipped at zero, scaled by ATR, and any undefined
// intermediate propagates NaN into the averages that include it.
func ADX(highs, lows, closes []float64, period int) Series {
	n := len(closes)
	if n == 0 || period <= 0 || !sameLen(n, highs, lows) {
		return nil
	}
	upMove := diff(highs)
	downMove := diff(lows)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := range plusDM {
		plusDM[i] = clipLow(upMove[i])
		minusDM[i] = clipLow(-downMove[i])
	}

	atr := ATR(highs, lows, closes, period)
	plusMean := rollingMean(plusDM, period, period)
	minusMean := rollingMean(minusDM, period, period)

	dx := make([]float64, n)
	for i := range dx {
		plusDI := 100 * plusMean[i] / atr[i]
		minusDI := 100 * minusMean[i] / atr[i]
		dx[i] = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}
	return rollingMean(dx, period, period)
}

// clipLow is max(v, 0) that keeps NaN.
func clipLow(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// BidAskSpread is best ask minus best bid.
func BidAskSpread(book *types.OrderBook) (float64, bool) {
	if book == nil || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return 0, false
	}
	v := book.Asks[0].Price - book.Bids[0].Price
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// OrderBookImbalance is the bid share of the listed depth. It is unavailable
// when either side of the book is empty or the depth sums to zero.
func OrderBookImbalance(book *types.OrderBook) (float64, bool) {
	if book == nil || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return 0, false
	}
	var bids, asks float64
	for _, l := range book.Bids {
		bids += l.Size
	}
	for _, l := range book.Asks {
		asks += l.Size
	}
	total := bids + asks
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return 0, false
	}
	return bids / total, true
}
