package models

import (
	"fmt"
	"time"

	"MarkWatch/pkg/util"
)

// RunConfig is the runtime configuration a caller passes to Scheduler.Start
// or RunOnce. It is explicit state, never read from the environment; file
// config only provides the defaults merged in by WithDefaults.
type RunConfig struct {
	Assets      []string `json:"assets"`
	Capital     float64  `json:"capital"`
	LeverageMin int      `json:"leverage_min"`
	LeverageMax int      `json:"leverage_max"`

	// Monitor overrides. Zero values mean "use defaults".
	NearThresholdPct float64       `json:"near_threshold_pct,omitempty"`
	Cooldown         time.Duration `json:"cooldown,omitempty"`
	Staleness        time.Duration `json:"staleness,omitempty"`
}

// WithDefaults fills zero fields from d and normalizes asset symbols.
func (c RunConfig) WithDefaults(d RunConfig) RunConfig {
	if len(c.Assets) == 0 {
		c.Assets = d.Assets
	}
	c.Assets = util.NormalizeSymbols(c.Assets)
	if c.Capital == 0 {
		c.Capital = d.Capital
	}
	if c.LeverageMin == 0 {
		c.LeverageMin = d.LeverageMin
	}
	if c.LeverageMax == 0 {
		c.LeverageMax = d.LeverageMax
	}
	if c.NearThresholdPct == 0 {
		c.NearThresholdPct = d.NearThresholdPct
	}
	if c.Cooldown == 0 {
		c.Cooldown = d.Cooldown
	}
	if c.Staleness == 0 {
		c.Staleness = d.Staleness
	}
	return c
}

func (c RunConfig) Validate() error {
	if len(c.Assets) == 0 {
		return fmt.Errorf("run config: at least one asset required")
	}
	if c.Capital <= 0 {
		return fmt.Errorf("run config: capital must be positive, got %v", c.Capital)
	}
	if c.LeverageMin < 1 {
		return fmt.Errorf("run config: leverage_min must be >= 1, got %d", c.LeverageMin)
	}
	if c.LeverageMax < c.LeverageMin {
		return fmt.Errorf("run config: leverage_max %d below leverage_min %d", c.LeverageMax, c.LeverageMin)
	}
	if c.NearThresholdPct <= 0 || c.NearThresholdPct >= 1 {
		return fmt.Errorf("run config: near_threshold_pct must be in (0, 1), got %v", c.NearThresholdPct)
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("run config: cooldown must be positive")
	}
	if c.Staleness <= 0 {
		return fmt.Errorf("run config: staleness must be positive")
	}
	// Staleness is the fallback heartbeat; shorter than the cooldown it
	// would override the cooldown on every tick.
	if c.Staleness < c.Cooldown {
		return fmt.Errorf("run config: staleness %v below cooldown %v", c.Staleness, c.Cooldown)
	}
	return nil
}

// JobSnapshot is the read-only view of one registered interval job.
type JobSnapshot struct {
	Name          string     `json:"name"`
	PeriodSeconds int64      `json:"period_seconds"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	NextDueAt     *time.Time `json:"next_due_at,omitempty"`
	Running       bool       `json:"running"`
	Runs          int64      `json:"runs"`
	Failures      int64      `json:"failures"`
	LastError     string     `json:"last_error,omitempty"`
	LastErrorAt   *time.Time `json:"last_error_at,omitempty"`
}

// AnalysisState mirrors the invocation guard for diagnostics.
type AnalysisState struct {
	InFlight    bool          `json:"in_flight"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	LastReason  TriggerReason `json:"last_reason,omitempty"`
	LastRoundID string        `json:"last_round_id,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
}

// SchedulerStatus is the full lifecycle snapshot served by the status API.
type SchedulerStatus struct {
	Running    bool          `json:"running"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	LastTickAt *time.Time    `json:"last_tick_at,omitempty"`
	Config     *RunConfig    `json:"config,omitempty"`
	Jobs       []JobSnapshot `json:"jobs"`
	Analysis   AnalysisState `json:"analysis"`
}

// Event is one entry in the in-memory diagnostics feed.
type Event struct {
	At     time.Time         `json:"at"`
	Kind   string            `json:"kind"` // trigger, round, job, scheduler
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}
