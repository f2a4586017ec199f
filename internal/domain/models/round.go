package models

import "time"

// TriggerReason records why an analysis round was requested.
type TriggerReason string

const (
	ReasonHardTouch TriggerReason = "hard_touch"
	ReasonNearTouch TriggerReason = "near_touch"
	ReasonStale     TriggerReason = "stale"
	ReasonCatchUp   TriggerReason = "catch_up"
	ReasonManual    TriggerReason = "manual"
)

// RoundRequest asks the guard to run one analysis round over Assets.
type RoundRequest struct {
	Reason TriggerReason `json:"reason"`
	Detail string        `json:"detail,omitempty"` // e.g. "BTCUSDT stop_loss"
	Assets []string      `json:"assets"`
	Config RunConfig     `json:"config"`
}

// TradeAction is one of the verbs the analysis pipeline may return per asset.
type TradeAction string

const (
	ActionOpenLong   TradeAction = "open_long"
	ActionOpenShort  TradeAction = "open_short"
	ActionCloseLong  TradeAction = "close_long"
	ActionCloseShort TradeAction = "close_short"
	ActionHold       TradeAction = "hold"
	ActionWait       TradeAction = "wait"
)

// AssetDecision is the pipeline's verdict for a single asset.
type AssetDecision struct {
	Asset      string      `json:"asset"`
	Action     TradeAction `json:"action"`
	Leverage   int         `json:"leverage,omitempty"`
	StopLoss   *float64    `json:"stop_loss,omitempty"`
	TakeProfit *float64    `json:"take_profit,omitempty"`
	Confidence float64     `json:"confidence,omitempty"`
	Rationale  string      `json:"rationale,omitempty"`
}

// TradePlan is the full pipeline response applied by the executor.
type TradePlan struct {
	Decisions []AssetDecision `json:"decisions"`
	Summary   string          `json:"summary,omitempty"`
}

type RoundStatus string

const (
	RoundCompleted RoundStatus = "completed"
	RoundFailed    RoundStatus = "failed"
)

// RoundRecord is the append-only audit row for one analysis round.
type RoundRecord struct {
	ID         string        `json:"id"`
	Reason     TriggerReason `json:"reason"`
	Detail     string        `json:"detail,omitempty"`
	Assets     []string      `json:"assets"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Status     RoundStatus   `json:"status"`
	Plan       *TradePlan    `json:"plan,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// RoundResult is what RunOnce hands back to the caller.
type RoundResult struct {
	Accepted bool         `json:"accepted"`
	Record   *RoundRecord `json:"record,omitempty"`
}

// RoundContext is the briefing assembled for the analysis pipeline: market
// data, news, the longform summary and current exposure for every tracked
// asset. Klines are keyed "SYMBOL:interval".
type RoundContext struct {
	Request   RoundRequest          `json:"request"`
	Prices    map[string]float64    `json:"prices"`
	Klines    map[string][]Kline    `json:"klines"`
	News      []NewsItem            `json:"news"`
	Longform  *LongformReport       `json:"longform,omitempty"`
	Bands     map[string]*AlertBand `json:"bands"`
	Positions []Position            `json:"positions"`
	BuiltAt   time.Time             `json:"built_at"`
}
