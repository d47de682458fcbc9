// Package watcher maintains one observation window per newly created token
// and aggregates order flow until the window expires.
package watcher

import (
	"time"

	"pump-sniper/internal/domain"
)

// BuyerStat accumulates per-address buy flow inside a window.
type BuyerStat struct {
	TokenQty float64 // total tokens bought
	SolValue float64 // estimated SOL value of those tokens
}

// Window is the transient observation state for one mint.
type Window struct {
	Mint          string
	StartedAtMs   int64
	DeadlineMs    int64
	BuyCount      int
	SellCount     int
	Buyers        map[string]*BuyerStat
	LastLiquidity float64 // last reported positive SOL reserve
	Pool          string
}

// Stats is the immutable summary handed to the scorer at evaluation.
type Stats struct {
	Mint         string
	Buys         int
	Sells        int
	UniqueBuyers int
	WhaleShare   float64 // largest buyer's share of total bought tokens
	Liquidity    float64
	Pool         string
}

// Tracker owns all live observation windows. It is not safe for concurrent
// use; the engine serializes all calls on its event loop.
type Tracker struct {
	windows map[string]*Window
	ttl     time.Duration
	now     func() time.Time
}

// NewTracker creates a Tracker with the given window duration.
func NewTracker(ttl time.Duration, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		windows: make(map[string]*Window),
		ttl:     ttl,
		now:     now,
	}
}

// Open creates a window for the mint unless one already exists.
// Returns true if a new window was created.
func (t *Tracker) Open(ev *domain.TradeEvent) bool {
	if _, exists := t.windows[ev.Mint]; exists {
		return false
	}
	nowMs := t.now().UnixMilli()
	w := &Window{
		Mint:        ev.Mint,
		StartedAtMs: nowMs,
		DeadlineMs:  nowMs + t.ttl.Milliseconds(),
		Buyers:      make(map[string]*BuyerStat),
		Pool:        ev.Pool,
	}
	if ev.VSolReserve > 0 {
		w.LastLiquidity = ev.VSolReserve
	}
	t.windows[ev.Mint] = w
	return true
}

// Observe folds a trade event into the mint's window. Events for unknown
// mints, or arriving after the deadline, are ignored.
func (t *Tracker) Observe(ev *domain.TradeEvent) {
	w, ok := t.windows[ev.Mint]
	if !ok || t.now().UnixMilli() > w.DeadlineMs {
		return
	}

	switch ev.Kind {
	case domain.EventBuy:
		w.BuyCount++
		if ev.Trader != "" && ev.TokenAmount > 0 {
			stat, ok := w.Buyers[ev.Trader]
			if !ok {
				stat = &BuyerStat{}
				w.Buyers[ev.Trader] = stat
			}
			stat.TokenQty += ev.TokenAmount
			if price, ok := ev.Price(); ok {
				stat.SolValue += ev.TokenAmount * price
			}
		}
	case domain.EventSell:
		w.SellCount++
	}

	if ev.VSolReserve > 0 {
		w.LastLiquidity = ev.VSolReserve
	}
}

// Evaluate removes the mint's window and returns its summary statistics.
// The second return is false if no window exists, which also guarantees a
// window can never be evaluated twice.
func (t *Tracker) Evaluate(mint string) (Stats, bool) {
	w, ok := t.windows[mint]
	if !ok {
		return Stats{}, false
	}
	delete(t.windows, mint)

	var totalQty, maxQty float64
	for _, stat := range w.Buyers {
		totalQty += stat.TokenQty
		if stat.TokenQty > maxQty {
			maxQty = stat.TokenQty
		}
	}
	whale := 0.0
	if totalQty > 0 {
		whale = maxQty / totalQty
	}

	return Stats{
		Mint:         w.Mint,
		Buys:         w.BuyCount,
		Sells:        w.SellCount,
		UniqueBuyers: len(w.Buyers),
		WhaleShare:   whale,
		Liquidity:    w.LastLiquidity,
		Pool:         w.Pool,
	}, true
}

// Cancel tears down the mint's window without evaluation.
func (t *Tracker) Cancel(mint string) {
	delete(t.windows, mint)
}

// Watching reports whether a live window exists for the mint.
func (t *Tracker) Watching(mint string) bool {
	_, ok := t.windows[mint]
	return ok
}

// Len returns the number of live windows.
func (t *Tracker) Len() int {
	return len(t.windows)
}
