package budget

import "time"

// Config holds the daily budget constants. The reset time-of-day is
// interpreted in Location.
type Config struct {
	DailyLimit  time.Duration
	ResetHour   int
	ResetMinute int
	Location    *time.Location
}

func (c Config) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.Local
}

// ResetBoundary returns the most recent reset instant at or before now.
func ResetBoundary(cfg Config, now time.Time) time.Time {
	local := now.In(cfg.location())
	reset := time.Date(local.Year(), local.Month(), local.Day(),
		cfg.ResetHour, cfg.ResetMinute, 0, 0, cfg.location())
	if local.Before(reset) {
		reset = reset.AddDate(0, 0, -1)
	}
	return reset
}

// DayKey returns the session-day key for an instant. The logical day rolls
// over at the configured reset time-of-day, not at midnight: before the
// reset, the instant still belongs to the previous calendar day.
func DayKey(cfg Config, now time.Time) string {
	return ResetBoundary(cfg, now).Format("2006-01-02")
}

// Consume subtracts an observed wall-clock delta from a remaining balance,
// clamped to [0, limit]. A huge delta (device asleep for hours) clamps to
// zero, and an over-limit stored value clamps down; the arithmetic never
// wraps.
func Consume(remaining, elapsed, limit time.Duration) time.Duration {
	if remaining > limit {
		remaining = limit
	}
	if elapsed <= 0 {
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	remaining -= elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
