package models

import "time"

// PositionSide is the direction of an open perpetual-futures position.
type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

// AlertBand is the price corridor watched for one asset while a position is
// open. Written when protection orders are placed, overwritten by the next
// open on the same asset, cleared when the position closes.
type AlertBand struct {
	Asset      string       `json:"asset"`
	Side       PositionSide `json:"side"`
	StopLoss   *float64     `json:"stop_loss,omitempty"`
	TakeProfit *float64     `json:"take_profit,omitempty"`
	EntryPrice float64      `json:"entry_price"`
	Leverage   int          `json:"leverage"`
	OpenedAt   time.Time    `json:"opened_at"`
}

// BandTouch classifies how the current mark price relates to a band.
type BandTouch int

const (
	TouchNone BandTouch = iota
	TouchNear
	TouchHard
)

// Evaluate compares price against the band's levels. A crossed level
// (at-or-beyond in the level's adverse/favorable direction) is a hard touch;
// a level within nearPct relative distance is a near touch. Hard wins over
// near when both levels qualify. Levels set to nil are skipped.
func (b *AlertBand) Evaluate(price, nearPct float64) (BandTouch, string) {
	if price <= 0 {
		return TouchNone, ""
	}

	touch, level := TouchNone, ""
	check := func(lv *float64, crossed bool, name string) {
		if lv == nil {
			return
		}
		if crossed {
			touch, level = TouchHard, name
			return
		}
		if touch == TouchHard {
			return
		}
		if dist(price, *lv)/price <= nearPct {
			touch, level = TouchNear, name
		}
	}

	switch b.Side {
	case SideShort:
		// Short: stop above entry, take-profit below.
		check(b.StopLoss, b.StopLoss != nil && price >= *b.StopLoss, "stop_loss")
		check(b.TakeProfit, b.TakeProfit != nil && price <= *b.TakeProfit, "take_profit")
	default:
		check(b.StopLoss, b.StopLoss != nil && price <= *b.StopLoss, "stop_loss")
		check(b.TakeProfit, b.TakeProfit != nil && price >= *b.TakeProfit, "take_profit")
	}
	return touch, level
}

func dist(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
