package watcher

import (
	"sync"
	"time"
)

// Scheduler fires a callback once per scheduled mint after a fixed delay.
// Unlike a bare time.AfterFunc per window, every timer is tracked and can be
// cancelled, so tearing down a window never leaks its timer.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	fire   func(mint string)
}

// NewScheduler creates a Scheduler that invokes fire when a deadline elapses.
// fire runs on the timer goroutine; callers are expected to hand the mint off
// to their own serialization point (the engine loop).
func NewScheduler(fire func(mint string)) *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		fire:   fire,
	}
}

// Schedule arms a timer for the mint. An existing timer for the same mint is
// left in place; a window has exactly one evaluation deadline.
func (s *Scheduler) Schedule(mint string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.timers[mint]; exists {
		return
	}
	s.timers[mint] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, mint)
		s.mu.Unlock()
		s.fire(mint)
	})
}

// Cancel disarms the mint's timer if one is pending. Returns true if a timer
// was stopped before firing.
func (s *Scheduler) Cancel(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[mint]
	if !ok {
		return false
	}
	delete(s.timers, mint)
	return timer.Stop()
}

// Stop cancels all pending timers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for mint, timer := range s.timers {
		timer.Stop()
		delete(s.timers, mint)
	}
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
