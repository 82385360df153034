package rate

import (
	"time"
)

// WindowStore records an event and reports how many events the user has in
// the sliding window, pruning stale entries as it goes.
type WindowStore interface {
	Record(userID int64, now time.Time, window time.Duration) (int, error)
}

// Limiter is the sliding-window admission gate applied to every non-admin
// inbound message.
type Limiter struct {
	store     WindowStore
	enabled   bool
	window    time.Duration
	maxEvents int
	now       func() time.Time
}

func NewLimiter(store WindowStore, enabled bool, window time.Duration, maxEvents int) *Limiter {
	if window <= 0 {
		window = 10 * time.Second
	}
	if maxEvents < 0 {
		maxEvents = 0
	}

	return &Limiter{
		store:     store,
		enabled:   enabled,
		window:    window,
		maxEvents: maxEvents,
		now:       time.Now,
	}
}

// Hit records one event for userID and reports true when the user is over
// the limit. A disabled limiter never rejects and records nothing. The count
// from the store stays authoritative even when its persist step failed, so
// the rejection decision is returned alongside any storage error.
func (l *Limiter) Hit(userID int64) (bool, error) {
	if !l.enabled {
		return false, nil
	}

	count, err := l.store.Record(userID, l.now(), l.window)
	return count > l.maxEvents, err
}
