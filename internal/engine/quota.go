package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
	_ "time/tzdata" // quota reset zone must resolve on hosts without zoneinfo
)

// QuotaBreaker fails every upstream call fast once the daily quota is spent.
// It stays open until the next midnight in the upstream's reference timezone
// and then closes by itself on the next Check.
type QuotaBreaker struct {
	mu             sync.Mutex
	exhaustedUntil time.Time // zero = closed
	loc            *time.Location
	now            func() time.Time
}

// NewQuotaBreaker builds a breaker whose reset boundary is midnight in tz.
// clock may be nil for time.Now.
func NewQuotaBreaker(tz string, clock func() time.Time) (*QuotaBreaker, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("quota timezone %q: %w", tz, err)
	}
	if clock == nil {
		clock = time.Now
	}
	return &QuotaBreaker{loc: loc, now: clock}, nil
}

// Check returns a *QuotaExhaustedError while the breaker is open.
func (b *QuotaBreaker) Check() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exhaustedUntil.IsZero() {
		return nil
	}
	if !b.now().Before(b.exhaustedUntil) {
		slog.Info("quota: breaker reset", slog.Time("reset_at", b.exhaustedUntil))
		b.exhaustedUntil = time.Time{}
		return nil
	}
	metrics.QuotaRejections.Add(1)
	return &QuotaExhaustedError{ResetAt: b.exhaustedUntil}
}

// Trip opens the breaker until the next reset boundary and returns it.
// Tripping an already open breaker keeps the later of the two boundaries.
func (b *QuotaBreaker) Trip() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	resetAt := NextQuotaReset(b.now(), b.loc)
	if resetAt.After(b.exhaustedUntil) {
		b.exhaustedUntil = resetAt
		metrics.QuotaTrips.Add(1)
		slog.Warn("quota: exhausted, failing fast until reset", slog.Time("reset_at", resetAt))
	}
	return b.exhaustedUntil
}

// ResetAt reports the pending reset time, if the breaker is open.
func (b *QuotaBreaker) ResetAt() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.exhaustedUntil.IsZero() || !b.now().Before(b.exhaustedUntil) {
		return time.Time{}, false
	}
	return b.exhaustedUntil, true
}

// Now is the breaker's clock.
func (b *QuotaBreaker) Now() time.Time {
	return b.now()
}

// NextQuotaReset returns the first midnight in loc strictly after now.
// time.Date normalises day overflow and applies loc's offset for that date,
// so DST transitions land on the real local midnight.
func NextQuotaReset(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}
