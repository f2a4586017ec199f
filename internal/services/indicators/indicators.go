package indicators

import (
	"math"

	"MarkWatch/internal/domain/models"
)

// EMA computes an exponential moving average with alpha = 2/(span+1),
// seeded from the first value. Returns a slice the same length as values,
// or nil if values is empty.
func EMA(values []float64, span int) []float64 {
	if len(values) == 0 || span < 1 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// ewma is EMA with an explicit alpha, used by the stochastic smoothing.
func ewma(values []float64, alpha float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACD computes the 12/26 moving average convergence divergence with a
// 9-period signal line. Returns macd, signal and histogram series.
func MACD(closes []float64) (macd, signal, hist []float64) {
	if len(closes) == 0 {
		return nil, nil, nil
	}
	fast := EMA(closes, 12)
	slow := EMA(closes, 26)
	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}
	signal = EMA(macd, 9)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}

// Bollinger computes a 20-period middle band with upper/lower bands two
// sample standard deviations away. Early bars use the available prefix so
// the series never contains NaN.
func Bollinger(closes []float64, window int, width float64) (mid, upper, lower []float64) {
	n := len(closes)
	if n == 0 || window < 1 {
		return nil, nil, nil
	}
	mid = make([]float64, n)
	upper = make([]float64, n)
	lower = make([]float64, n)
	for i := 0; i < n; i++ {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		cnt := float64(i - start + 1)
		sum := 0.0
		for j := start; j <= i; j++ {
			sum += closes[j]
		}
		mean := sum / cnt
		variance := 0.0
		if cnt > 1 {
			for j := start; j <= i; j++ {
				d := closes[j] - mean
				variance += d * d
			}
			variance /= cnt - 1
		}
		sd := math.Sqrt(variance)
		mid[i] = mean
		upper[i] = mean + width*sd
		lower[i] = mean - width*sd
	}
	return mid, upper, lower
}

// KDJ computes the 9/3/3 stochastic oscillator: RSV over a 9-bar high/low
// range, K and D smoothed with alpha = 1/3, and J = 3K - 2D. Bars where the
// range is zero carry an RSV of 50.
func KDJ(highs, lows, closes []float64, window int) (k, d, j []float64) {
	n := len(closes)
	if n == 0 || len(highs) != n || len(lows) != n || window < 1 {
		return nil, nil, nil
	}
	rsv := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		hi := highs[start]
		lo := lows[start]
		for m := start + 1; m <= i; m++ {
			if highs[m] > hi {
				hi = highs[m]
			}
			if lows[m] < lo {
				lo = lows[m]
			}
		}
		if hi == lo {
			rsv[i] = 50
			continue
		}
		rsv[i] = (closes[i] - lo) / (hi - lo) * 100
	}
	k = ewma(rsv, 1.0/3.0)
	d = ewma(k, 1.0/3.0)
	j = make([]float64, n)
	for i := 0; i < n; i++ {
		j[i] = 3*k[i] - 2*d[i]
	}
	return k, d, j
}

// Enrich fills the indicator columns of each kline in place. The slice is
// expected oldest-first; out-of-order input produces indicator values
// computed in the given order.
func Enrich(klines []models.Kline) {
	n := len(klines)
	if n == 0 {
		return
	}
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := range klines {
		closes[i] = klines[i].Close
		highs[i] = klines[i].High
		lows[i] = klines[i].Low
	}

	ema5 := EMA(closes, 5)
	ema10 := EMA(closes, 10)
	ema20 := EMA(closes, 20)
	macd, signal, hist := MACD(closes)
	mid, upper, lower := Bollinger(closes, 20, 2)
	k, d, j := KDJ(highs, lows, closes, 9)

	for i := range klines {
		klines[i].EMA5 = ema5[i]
		klines[i].EMA10 = ema10[i]
		klines[i].EMA20 = ema20[i]
		klines[i].MACD = macd[i]
		klines[i].MACDSignal = signal[i]
		klines[i].MACDHist = hist[i]
		klines[i].BollMid = mid[i]
		klines[i].BollUpper = upper[i]
		klines[i].BollLower = lower[i]
		klines[i].StochK = k[i]
		klines[i].StochD = d[i]
		klines[i].StochJ = j[i]
	}
}
