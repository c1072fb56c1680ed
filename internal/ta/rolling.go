package ta

import "math"

// Series is an indicator output aligned with its input. NaN marks points
// where the value is not available (warm-up windows, 0/0 divisions).
type Series []float64

// Last returns the final point when it is finite.
func (s Series) Last() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	v := s[len(s)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func nanSeries(n int) Series {
	out := make(Series, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// window yields the non-NaN observations in x[i-w+1..i].
func window(x []float64, i, w int) []float64 {
	start := i - w + 1
	if start < 0 {
		start = 0
	}
	vals := make([]float64, 0, w)
	for _, v := range x[start : i+1] {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return vals
}

// rollingMean is a trailing mean over w points. A point is NaN when the
// window holds fewer than minPeriods non-NaN observations.
func rollingMean(x []float64, w, minPeriods int) Series {
	out := nanSeries(len(x))
	for i := range x {
		vals := window(x, i, w)
		if len(vals) < minPeriods || len(vals) == 0 {
			continue
		}
		var sum float64
		for _, v := range vals {
			sum += v
		}
		out[i] = sum / float64(len(vals))
	}
	return out
}

// rollingStd is the trailing sample standard deviation (ddof=1).
func rollingStd(x []float64, w, minPeriods int) Series {
	out := nanSeries(len(x))
	for i := range x {
		vals := window(x, i, w)
		if len(vals) < minPeriods || len(vals) < 2 {
			continue
		}
		var sum float64
		for _, v := range vals {
			sum += v
		}
		mean := sum / float64(len(vals))
		var ss float64
		for _, v := range vals {
			d := v - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(len(vals)-1))
	}
	return out
}

func rollingMin(x []float64, w, minPeriods int) Series {
	return rollingExtreme(x, w, minPeriods, math.Min)
}

func rollingMax(x []float64, w, minPeriods int) Series {
	return rollingExtreme(x, w, minPeriods, math.Max)
}

func rollingExtreme(x []float64, w, minPeriods int, pick func(a, b float64) float64) Series {
	out := nanSeries(len(x))
	for i := range x {
		vals := window(x, i, w)
		if len(vals) < minPeriods || len(vals) == 0 {
			continue
		}
		m := vals[0]
		for _, v := range vals[1:] {
			m = pick(m, v)
		}
		out[i] = m
	}
	return out
}

// diff returns x[i]-x[i-1] with NaN at index 0.
func diff(x []float64) Series {
	out := nanSeries(len(x))
	for i := 1; i < len(x); i++ {
		out[i] = x[i] - x[i-1]
	}
	return out
}

func sameLen(n int, xs ...[]float64) bool {
	for _, x := range xs {
		if len(x) != n {
			return false
		}
	}
	return true
}
