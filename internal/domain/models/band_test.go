package models

import "testing"

func level(v float64) *float64 { return &v }

func TestEvaluateLongSide(t *testing.T) {
	band := &AlertBand{
		Asset:      "BTCUSDT",
		Side:       SideLong,
		StopLoss:   level(60000),
		TakeProfit: level(66000),
		EntryPrice: 63000,
	}

	cases := []struct {
		name      string
		price     float64
		wantTouch BandTouch
		wantLevel string
	}{
		{"between levels", 63000, TouchNone, ""},
		{"below stop", 59900, TouchHard, "stop_loss"},
		{"exactly at stop", 60000, TouchHard, "stop_loss"},
		{"above take profit", 66100, TouchHard, "take_profit"},
		{"exactly at take profit", 66000, TouchHard, "take_profit"},
		{"near stop", 60050, TouchNear, "stop_loss"},
		{"near take profit", 65950, TouchNear, "take_profit"},
	}
	for _, c := range cases {
		touch, lv := band.Evaluate(c.price, 0.002)
		if touch != c.wantTouch || lv != c.wantLevel {
			t.Errorf("%s: Evaluate(%g) = (%v, %q), want (%v, %q)",
				c.name, c.price, touch, lv, c.wantTouch, c.wantLevel)
		}
	}
}

func TestEvaluateShortSideInverts(t *testing.T) {
	band := &AlertBand{
		Asset:      "ETHUSDT",
		Side:       SideShort,
		StopLoss:   level(3300),
		TakeProfit: level(2700),
		EntryPrice: 3000,
	}

	cases := []struct {
		name      string
		price     float64
		wantTouch BandTouch
		wantLevel string
	}{
		{"between levels", 3000, TouchNone, ""},
		{"above stop", 3310, TouchHard, "stop_loss"},
		{"below take profit", 2690, TouchHard, "take_profit"},
		{"near stop from below", 3295, TouchNear, "stop_loss"},
		{"near take profit from above", 2705, TouchNear, "take_profit"},
	}
	for _, c := range cases {
		touch, lv := band.Evaluate(c.price, 0.002)
		if touch != c.wantTouch || lv != c.wantLevel {
			t.Errorf("%s: Evaluate(%g) = (%v, %q), want (%v, %q)",
				c.name, c.price, touch, lv, c.wantTouch, c.wantLevel)
		}
	}
}

func TestEvaluateHardBeatsNear(t *testing.T) {
	// Price crossed the stop and the tight take-profit is within the near
	// threshold at the same time; the crossed level must win.
	band := &AlertBand{
		Side:       SideLong,
		StopLoss:   level(60000),
		TakeProfit: level(60010),
	}
	touch, lv := band.Evaluate(59990, 0.01)
	if touch != TouchHard || lv != "stop_loss" {
		t.Fatalf("Evaluate = (%v, %q), want hard stop_loss", touch, lv)
	}

	// Same shape with the take-profit crossed and the stop merely near.
	band = &AlertBand{
		Side:       SideLong,
		StopLoss:   level(65980),
		TakeProfit: level(66000),
	}
	touch, lv = band.Evaluate(66010, 0.01)
	if touch != TouchHard || lv != "take_profit" {
		t.Fatalf("Evaluate = (%v, %q), want hard take_profit", touch, lv)
	}
}

func TestEvaluateSkipsNilLevels(t *testing.T) {
	band := &AlertBand{Side: SideLong, StopLoss: level(60000)}
	if touch, _ := band.Evaluate(100000, 0.002); touch != TouchNone {
		t.Fatalf("missing take-profit treated as a level, touch = %v", touch)
	}

	empty := &AlertBand{Side: SideLong}
	if touch, _ := empty.Evaluate(60000, 0.002); touch != TouchNone {
		t.Fatalf("band without levels fired, touch = %v", touch)
	}
}

func TestEvaluateRejectsBadPrice(t *testing.T) {
	band := &AlertBand{Side: SideLong, StopLoss: level(60000)}
	if touch, _ := band.Evaluate(0, 0.002); touch != TouchNone {
		t.Fatalf("zero price evaluated, touch = %v", touch)
	}
	if touch, _ := band.Evaluate(-1, 0.002); touch != TouchNone {
		t.Fatalf("negative price evaluated, touch = %v", touch)
	}
}
