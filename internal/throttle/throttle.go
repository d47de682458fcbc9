// Package throttle enforces the global inter-buy cooldown and the rolling
// daily buy quota.
package throttle

import (
	"sync"
	"time"
)

// Throttle is the process-wide buy rate limiter. One instance exists per
// engine. Admit is the only mutating entry point besides the day rollover it
// performs internally.
type Throttle struct {
	mu         sync.Mutex
	cooldown   time.Duration
	dailyCap   int // 0 disables the cap
	lastBuy    time.Time
	buysToday  int
	currentDay time.Time // midnight of the day buysToday counts against
}

// New creates a Throttle. A zero dailyCap disables the quota.
func New(cooldown time.Duration, dailyCap int) *Throttle {
	return &Throttle{
		cooldown: cooldown,
		dailyCap: dailyCap,
	}
}

// Admit decides whether a buy may proceed at the given time. On admission it
// records the buy; a rejected call leaves all state untouched. The daily
// counter resets when the calendar day of now differs from the recorded
// period, independent of whether the call is admitted.
func (t *Throttle) Admit(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover(now)

	if !t.lastBuy.IsZero() && now.Sub(t.lastBuy) < t.cooldown {
		return false
	}
	if t.dailyCap > 0 && t.buysToday >= t.dailyCap {
		return false
	}

	t.lastBuy = now
	t.buysToday++
	return true
}

// BuysToday returns the number of buys admitted in the current period.
func (t *Throttle) BuysToday(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover(now)
	return t.buysToday
}

// rollover resets the daily counter on a calendar-day boundary.
// Caller holds t.mu.
func (t *Throttle) rollover(now time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !day.Equal(t.currentDay) {
		t.currentDay = day
		t.buysToday = 0
	}
}
