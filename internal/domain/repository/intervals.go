package repository

import "MarkWatch/pkg/util"

// IsValidInterval returns true if the kline interval token is supported.
func IsValidInterval(interval string) bool {
	_, ok := util.IntervalDuration(interval)
	return ok
}

// DefaultInterval returns the interval used when a caller omits one.
func DefaultInterval() string { return "1h" }

// DefaultIntervals is the refresh set used when config names none.
func DefaultIntervals() []string {
	return []string{"5m", "15m", "1h", "4h", "1d"}
}

// NormalizeInterval converts a raw token to a valid interval (or the default).
func NormalizeInterval(s string) string {
	if s == "" {
		return DefaultInterval()
	}
	if IsValidInterval(s) {
		return s
	}
	return DefaultInterval()
}
