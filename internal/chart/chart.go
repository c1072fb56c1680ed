// Package chart renders per-symbol PNG charts of the recent candle window.
package chart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/trace"
	"crypto-llm-analyst/internal/types"
)

// ErrTooFewCandles is returned when fewer than two candles are available.
var ErrTooFewCandles = errors.New("chart needs at least two candles")

const projectionPoints = 5

var (
	colorBackground = drawing.ColorBlack
	colorText       = drawing.ColorWhite
	colorClose      = drawing.ColorFromHex("32cd32")
	colorTrend      = drawing.ColorFromHex("ff00ff")
	colorProjection = drawing.ColorFromHex("ffa500")
	colorCurrent    = drawing.ColorFromHex("00ffff")
	colorVolume     = drawing.ColorFromHex("808080").WithAlpha(96)
)

// Renderer writes charts to <dir>/<YYYY-MM-DD>/<SYMBOL>-<HH-MM-SS>.png.
type Renderer struct {
	dir  string
	tail int
	now  func() time.Time
	log  *logger.Logger
}

var _ interfaces.ChartRenderer = (*Renderer)(nil)

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock replaces the clock used to name output files.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// New creates a renderer that plots the last tail candles.
func New(dir string, tail int, log *logger.Logger, opts ...Option) *Renderer {
	r := &Renderer{dir: dir, tail: tail, now: func() time.Time { return time.Now().UTC() }, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render draws close prices, a least-squares trend line of the candle
// midpoints with a short projection, the current price and volume on a
// secondary axis. It returns the written file path.
func (r *Renderer) Render(ctx context.Context, symbol, interval string, candles []types.Candle) (string, error) {
	_, span := trace.StartSpan(ctx, "chart.Render")
	defer span.End()

	if r.tail > 0 && len(candles) > r.tail {
		candles = candles[len(candles)-r.tail:]
	}
	if len(candles) < 2 {
		return "", ErrTooFewCandles
	}

	now := r.now()
	folder := filepath.Join(r.dir, now.Format("2006-01-02"))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}
	path := filepath.Join(folder, fmt.Sprintf("%s-%s.png", symbol, now.Format("15-04-05")))

	graph := build(symbol, interval, candles)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chart file: %w", err)
	}
	if err := graph.Render(chart.PNG, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("render chart for %s: %w", symbol, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write chart file: %w", err)
	}

	r.log.Info(ctx, "Chart saved", "symbol", symbol, "path", path)
	return path, nil
}

func build(symbol, interval string, candles []types.Candle) *chart.Chart {
	n := len(candles)
	times := make([]time.Time, n)
	closes := make([]float64, n)
	mids := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		times[i] = c.OpenTime
		closes[i] = c.Close
		mids[i] = (c.High + c.Low) / 2
		volumes[i] = c.Volume
	}

	slope, intercept := regress(times, mids)
	trend := make([]float64, n)
	for i, t := range times {
		trend[i] = slope*seconds(times[0], t) + intercept
	}

	step := times[n-1].Sub(times[n-2])
	futureTimes := []time.Time{times[n-1]}
	future := []float64{trend[n-1]}
	for i := 1; i <= projectionPoints; i++ {
		t := times[n-1].Add(time.Duration(i) * step)
		futureTimes = append(futureTimes, t)
		future = append(future, slope*seconds(times[0], t)+intercept)
	}

	current := closes[n-1]
	currentLine := []float64{current, current}
	currentTimes := []time.Time{times[0], futureTimes[len(futureTimes)-1]}

	textStyle := chart.Style{FontColor: colorText, StrokeColor: colorText}

	graph := &chart.Chart{
		Title:      fmt.Sprintf("%s - Last %d Candlesticks (%s Interval)", title(symbol), n, interval),
		TitleStyle: chart.Style{FontColor: colorText, FontSize: 14},
		Width:      1200,
		Height:     800,
		Background: chart.Style{
			FillColor: colorBackground,
			Padding:   chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: chart.Style{FillColor: colorBackground},
		XAxis: chart.XAxis{
			Style:          textStyle,
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04"),
		},
		YAxis: chart.YAxis{
			Name:      "Price",
			NameStyle: textStyle,
			Style:     textStyle,
			Range:     rangeFor(append(append(append([]float64{}, closes...), trend...), future...)),
		},
		YAxisSecondary: chart.YAxis{
			Name:      "Volume",
			NameStyle: textStyle,
			Style:     textStyle,
			Range:     volumeRange(volumes),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Volume",
				YAxis:   chart.YAxisSecondary,
				Style:   chart.Style{StrokeColor: colorVolume, FillColor: colorVolume},
				XValues: times,
				YValues: volumes,
			},
			chart.TimeSeries{
				Name:    "Close",
				Style:   chart.Style{StrokeColor: colorClose, StrokeWidth: 2},
				XValues: times,
				YValues: closes,
			},
			chart.TimeSeries{
				Name:    "Trend Line",
				Style:   chart.Style{StrokeColor: colorTrend, StrokeWidth: 1, StrokeDashArray: []float64{5, 5}},
				XValues: times,
				YValues: trend,
			},
			chart.TimeSeries{
				Name:    "Future Trend Line",
				Style:   chart.Style{StrokeColor: colorProjection, StrokeWidth: 1, StrokeDashArray: []float64{2, 3}},
				XValues: futureTimes,
				YValues: future,
			},
			chart.TimeSeries{
				Name:    fmt.Sprintf("Current Price: %.2f", current),
				Style:   chart.Style{StrokeColor: colorCurrent, StrokeWidth: 1, StrokeDashArray: []float64{5, 5}},
				XValues: currentTimes,
				YValues: currentLine,
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.LegendThin(graph, chart.Style{FillColor: colorBackground, FontColor: colorText, StrokeColor: colorText}),
	}
	return graph
}

// regress fits y = slope*x + intercept with x in seconds from the first time.
func regress(times []time.Time, ys []float64) (slope, intercept float64) {
	n := float64(len(ys))
	var sx, sy, sxx, sxy float64
	for i, y := range ys {
		x := seconds(times[0], times[i])
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0, sy / n
	}
	slope = (n*sxy - sx*sy) / den
	intercept = (sy - slope*sx) / n
	return slope, intercept
}

func seconds(origin, t time.Time) float64 {
	return t.Sub(origin).Seconds()
}

// rangeFor pads the data range so flat series still render.
func rangeFor(vals []float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.01, 1e-6)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func volumeRange(vols []float64) *chart.ContinuousRange {
	hi := 0.0
	for _, v := range vols {
		if v > hi {
			hi = v
		}
	}
	if hi == 0 {
		hi = 1
	}
	return &chart.ContinuousRange{Min: 0, Max: hi * 1.1}
}

func title(symbol string) string {
	if strings.Contains(symbol, "USD") {
		return strings.Replace(symbol, "USD", " / USD", 1)
	}
	return symbol
}
