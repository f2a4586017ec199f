package indicators

import (
	"math"
	"testing"
	"time"

	"MarkWatch/internal/domain/models"
)

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEMAKnownValues(t *testing.T) {
	// span 3 gives alpha 0.5, so the series is easy to follow by hand.
	got := EMA([]float64{1, 2, 3}, 3)
	want := []float64{1, 1.5, 2.25}
	if len(got) != len(want) {
		t.Fatalf("length %d", len(got))
	}
	for i := range want {
		if !almost(got[i], want[i]) {
			t.Fatalf("ema[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEMAConstantSeries(t *testing.T) {
	got := EMA([]float64{10, 10, 10, 10}, 5)
	for i, v := range got {
		if !almost(v, 10) {
			t.Fatalf("ema[%d] = %v, want 10", i, v)
		}
	}
}

func TestEMAEmpty(t *testing.T) {
	if EMA(nil, 5) != nil {
		t.Fatalf("expected nil")
	}
}

func TestMACDConstantIsZero(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 50
	}
	macd, signal, hist := MACD(closes)
	for i := range closes {
		if !almost(macd[i], 0) || !almost(signal[i], 0) || !almost(hist[i], 0) {
			t.Fatalf("index %d: macd %v signal %v hist %v", i, macd[i], signal[i], hist[i])
		}
	}
}

func TestBollingerTwoBars(t *testing.T) {
	mid, upper, lower := Bollinger([]float64{1, 3}, 2, 2)
	if !almost(mid[0], 1) || !almost(upper[0], 1) || !almost(lower[0], 1) {
		t.Fatalf("first bar: %v %v %v", mid[0], upper[0], lower[0])
	}
	sd := math.Sqrt2
	if !almost(mid[1], 2) || !almost(upper[1], 2+2*sd) || !almost(lower[1], 2-2*sd) {
		t.Fatalf("second bar: %v %v %v", mid[1], upper[1], lower[1])
	}
}

func TestBollingerNoNaN(t *testing.T) {
	closes := []float64{5, 6, 4, 7, 5, 6}
	mid, upper, lower := Bollinger(closes, 20, 2)
	for i := range closes {
		if math.IsNaN(mid[i]) || math.IsNaN(upper[i]) || math.IsNaN(lower[i]) {
			t.Fatalf("NaN at %d", i)
		}
	}
}

func TestKDJSingleBar(t *testing.T) {
	k, d, j := KDJ([]float64{10}, []float64{0}, []float64{7.5}, 9)
	if !almost(k[0], 75) || !almost(d[0], 75) || !almost(j[0], 75) {
		t.Fatalf("got k %v d %v j %v", k[0], d[0], j[0])
	}
}

func TestKDJFlatRange(t *testing.T) {
	flat := []float64{100, 100, 100}
	k, d, j := KDJ(flat, flat, flat, 9)
	for i := range flat {
		if !almost(k[i], 50) || !almost(d[i], 50) || !almost(j[i], 50) {
			t.Fatalf("index %d: k %v d %v j %v", i, k[i], d[i], j[i])
		}
	}
}

func TestEnrichConstantKlines(t *testing.T) {
	klines := make([]models.Kline, 30)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range klines {
		klines[i] = models.Kline{
			Symbol:   "BTCUSDT",
			Interval: "1h",
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     100, High: 101, Low: 99, Close: 100,
		}
	}
	Enrich(klines)

	last := klines[len(klines)-1]
	if !almost(last.EMA5, 100) || !almost(last.EMA10, 100) || !almost(last.EMA20, 100) {
		t.Fatalf("ema: %v %v %v", last.EMA5, last.EMA10, last.EMA20)
	}
	if !almost(last.MACD, 0) || !almost(last.MACDHist, 0) {
		t.Fatalf("macd: %v hist %v", last.MACD, last.MACDHist)
	}
	if !almost(last.BollMid, 100) || !almost(last.BollUpper, 100) {
		t.Fatalf("boll: %v %v", last.BollMid, last.BollUpper)
	}
	// close sits mid-range, so the oscillator stays at 50
	if !almost(last.StochK, 50) || !almost(last.StochJ, 50) {
		t.Fatalf("stoch: k %v j %v", last.StochK, last.StochJ)
	}
}

func TestEnrichEmpty(t *testing.T) {
	Enrich(nil) // must not panic
}
