package models

import "time"

// Kline is one candle plus the indicator columns recomputed on every refresh.
type Kline struct {
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	QuoteVol  float64   `json:"quote_volume"`
	Trades    int64     `json:"trades"`
	TakerBuy  float64   `json:"taker_buy_volume"`

	EMA5       float64 `json:"ema_5"`
	EMA10      float64 `json:"ema_10"`
	EMA20      float64 `json:"ema_20"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	BollMid    float64 `json:"boll_mid"`
	BollUpper  float64 `json:"boll_upper"`
	BollLower  float64 `json:"boll_lower"`
	StochK     float64 `json:"stoch_k"`
	StochD     float64 `json:"stoch_d"`
	StochJ     float64 `json:"stoch_j"`
}

// NewsSource distinguishes the two upstream feeds.
type NewsSource string

const (
	NewsFlash   NewsSource = "newsflash"
	NewsArticle NewsSource = "article"
)

// NewsItem is one fetched news record, deduplicated by (source, external id).
type NewsItem struct {
	Source      NewsSource `json:"source"`
	ExternalID  string     `json:"external_id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Link        string     `json:"link,omitempty"`
	PublishedAt time.Time  `json:"published_at"`
}

// MarkPriceTick is one event from the futures mark-price stream.
type MarkPriceTick struct {
	Symbol      string    `json:"symbol"`
	MarkPrice   float64   `json:"mark_price"`
	IndexPrice  float64   `json:"index_price,omitempty"`
	FundingRate float64   `json:"funding_rate,omitempty"`
	EventTime   time.Time `json:"event_time"`
}

// Position is the exchange's view of one open perpetual position.
type Position struct {
	Symbol        string       `json:"symbol"`
	Side          PositionSide `json:"side"`
	Quantity      float64      `json:"quantity"` // absolute contracts
	EntryPrice    float64      `json:"entry_price"`
	MarkPrice     float64      `json:"mark_price"`
	Leverage      int          `json:"leverage"`
	UnrealizedPnL float64      `json:"unrealized_pnl"`
}

// LongformReport is the cached daily market summary used in round context.
type LongformReport struct {
	Content     string    `json:"content"`
	GeneratedAt time.Time `json:"generated_at"`
}
