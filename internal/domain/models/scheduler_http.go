package models

// Requests for the scheduler HTTP endpoints. Defined in domain for consistency and reuse.

// StartRequest carries the runtime configuration for POST /api/scheduler/start
// and POST /api/run. Omitted fields fall back to the file-config defaults.
type StartRequest struct {
	Assets      []string `json:"assets"`
	Capital     float64  `json:"capital" validate:"gte=0"`
	LeverageMin int      `json:"leverage_min" validate:"gte=0,lte=125"`
	LeverageMax int      `json:"leverage_max" validate:"gte=0,lte=125"`

	NearThresholdPct float64 `json:"near_threshold_pct" validate:"gte=0,lt=1"`
	CooldownSeconds  int64   `json:"cooldown_seconds" validate:"gte=0"`
	StalenessSeconds int64   `json:"staleness_seconds" validate:"gte=0"`
}

type KlinesRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	Interval string `query:"interval" json:"interval" default:"1h"`
	Limit    int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type NewsRequest struct {
	Source string `query:"source" json:"source" default:"newsflash" validate:"oneof=newsflash article"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type RoundsRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
}

type EventsRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}
