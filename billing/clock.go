package billing

import "time"

// =============================================================================
// CLOCK - Injectable current time
// =============================================================================

// Clock supplies "now" to every date-dependent rule (due dates, dynamic
// penalty, early-payment bonus). Production uses SystemClock; tests pin
// time with FixedClock.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// DaysUntil returns whole days from now until t, negative when t is past.
func DaysUntil(now, t time.Time) int {
	return int(t.Sub(now).Hours() / 24)
}
