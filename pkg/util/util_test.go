package util

import (
	"reflect"
	"testing"
	"time"
)

func TestIntervalDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"1m", time.Minute, true},
		{"1h", time.Hour, true},
		{"4h", 4 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"7w", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := IntervalDuration(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("IntervalDuration(%q) = (%v, %v), want (%v, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNormalizeSymbols(t *testing.T) {
	in := []string{" btcusdt ", "ETHUSDT", "btcusdt", "", "solusdt"}
	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	if got := NormalizeSymbols(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeSymbols = %v, want %v", got, want)
	}
}
