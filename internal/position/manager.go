// Package position owns open positions and the exit state machine.
package position

import (
	"time"

	"github.com/sirupsen/logrus"

	"pump-sniper/internal/domain"
)

// ExitParams configure the exit rules, evaluated in fixed priority order:
// take-profit, trailing stop, stop-loss, time-to-live.
type ExitParams struct {
	TakeProfitPct   float64       // sell when value reaches entry * (1 + pct)
	TrailPct        float64       // 0 disables trailing; active only after TP seen
	StopLossPct     float64       // 0 disables the hard stop
	MaxHold         time.Duration // TTL for the forced exit
	MinTTLProfitPct float64       // TTL exit skipped if value >= entry * (1 + pct)
	AssumedFeePct   float64       // fee fraction used when estimating quantity
}

// ExitSignal reports that an exit rule fired for a position. At most one
// signal is produced per price tick.
type ExitSignal struct {
	Mint         string
	Reason       domain.ExitReason
	EstExitValue float64
}

// Manager tracks every position from buy submission to sell confirmation.
// It performs synchronous bookkeeping only and never suspends; the engine
// serializes all calls on its event loop.
type Manager struct {
	params    ExitParams
	positions map[string]*domain.Position
	now       func() time.Time
	log       *logrus.Entry
}

// NewManager creates a position Manager.
func NewManager(params ExitParams, now func() time.Time, log *logrus.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		params:    params,
		positions: make(map[string]*domain.Position),
		now:       now,
		log:       log.WithField("component", "position"),
	}
}

// OnBuySubmitted registers an Opening position before the submission
// suspends. It doubles as the per-mint in-flight marker: a false return
// means a position already exists and no second submission may start.
func (m *Manager) OnBuySubmitted(mint, pool string) bool {
	if _, exists := m.positions[mint]; exists {
		return false
	}
	m.positions[mint] = &domain.Position{
		Mint:  mint,
		State: domain.StateOpening,
		Pool:  pool,
	}
	return true
}

// OnBuyFailed removes the Opening placeholder after a failed submission.
func (m *Manager) OnBuyFailed(mint string) {
	pos, ok := m.positions[mint]
	if !ok || pos.State != domain.StateOpening {
		return
	}
	delete(m.positions, mint)
}

// OnBuyConfirmed transitions the position to Open. spend is the full entry
// cost including fees. When the venue reports no fills, entryPrice should
// carry the estimated fill price so the quantity can be derived immediately;
// pass 0 to wait for the first observed fill instead.
func (m *Manager) OnBuyConfirmed(mint string, spend, entryPrice float64) {
	pos, ok := m.positions[mint]
	if !ok {
		// Confirmation without a submission record; adopt the position
		// rather than lose track of held tokens.
		pos = &domain.Position{Mint: mint}
		m.positions[mint] = pos
	}
	pos.State = domain.StateOpen
	pos.EntryCostSOL = spend
	pos.PeakExitValue = 0
	pos.TakeProfitSeen = false
	pos.OpenedAtMs = m.now().UnixMilli()

	// A fill can reach the feed before the submission round-trip returns;
	// a quantity recorded on the Opening position is authoritative and the
	// estimate only fills the gap when no fill was seen.
	if pos.TokenQty == 0 && entryPrice > 0 {
		pos.TokenQty = spend * (1 - m.params.AssumedFeePct) / entryPrice
	}

	m.log.WithFields(logrus.Fields{
		"mint":  mint,
		"spend": spend,
		"qty":   pos.TokenQty,
	}).Info("position opened")
}

// OnFillObserved records the position's token quantity. Only the first
// nonzero observation is kept; later fill notifications are ignored.
func (m *Manager) OnFillObserved(mint string, qty float64) {
	pos, ok := m.positions[mint]
	if !ok || qty <= 0 || pos.TokenQty != 0 {
		return
	}
	pos.TokenQty = qty
	m.log.WithFields(logrus.Fields{"mint": mint, "qty": qty}).Info("fill observed")
}

// OnPriceTick re-evaluates the exit rules for the mint at the given price.
// It returns a non-nil signal when exactly one rule fired. No-op unless the
// position is Open with a known quantity and the price is positive.
func (m *Manager) OnPriceTick(mint string, price float64) *ExitSignal {
	pos, ok := m.positions[mint]
	if !ok || pos.State != domain.StateOpen || pos.TokenQty <= 0 || price <= 0 {
		return nil
	}

	estExit := price * pos.TokenQty
	if estExit > pos.PeakExitValue {
		pos.PeakExitValue = estExit
	}

	p := m.params
	entry := pos.EntryCostSOL

	// 1. Take-profit.
	if estExit >= entry*(1+p.TakeProfitPct) {
		pos.TakeProfitSeen = true
		return &ExitSignal{Mint: mint, Reason: domain.ExitTakeProfit, EstExitValue: estExit}
	}

	// 2. Trailing stop, armed only once take-profit has been reached.
	if pos.TakeProfitSeen && p.TrailPct > 0 && estExit <= pos.PeakExitValue*(1-p.TrailPct) {
		return &ExitSignal{Mint: mint, Reason: domain.ExitTrailingStop, EstExitValue: estExit}
	}

	// 3. Hard stop-loss, only when configured.
	if p.StopLossPct > 0 && estExit <= entry*(1-p.StopLossPct) {
		return &ExitSignal{Mint: mint, Reason: domain.ExitStopLoss, EstExitValue: estExit}
	}

	// 4. Time-to-live: force the exit if the hold ran too long without
	// reaching the minimum profit.
	age := m.now().UnixMilli() - pos.OpenedAtMs
	if age >= p.MaxHold.Milliseconds() && estExit < entry*(1+p.MinTTLProfitPct) {
		return &ExitSignal{Mint: mint, Reason: domain.ExitMaxHold, EstExitValue: estExit}
	}

	return nil
}

// OnSellSubmitted transitions the position to Exiting while the sell is in
// flight, suppressing further exit evaluation.
func (m *Manager) OnSellSubmitted(mint string) {
	if pos, ok := m.positions[mint]; ok {
		pos.State = domain.StateExiting
	}
}

// OnSellFailed returns the position to Open; the sell will be re-attempted
// opportunistically when the next tick trips an exit rule again.
func (m *Manager) OnSellFailed(mint string) {
	if pos, ok := m.positions[mint]; ok && pos.State == domain.StateExiting {
		pos.State = domain.StateOpen
	}
}

// OnSellConfirmed closes and removes the position.
func (m *Manager) OnSellConfirmed(mint string) {
	if _, ok := m.positions[mint]; !ok {
		return
	}
	delete(m.positions, mint)
	m.log.WithField("mint", mint).Info("position closed")
}

// Get returns the position for the mint, or nil.
func (m *Manager) Get(mint string) *domain.Position {
	return m.positions[mint]
}

// Has reports whether any position (in any state) exists for the mint.
func (m *Manager) Has(mint string) bool {
	_, ok := m.positions[mint]
	return ok
}

// Len returns the number of tracked positions.
func (m *Manager) Len() int {
	return len(m.positions)
}

// Mints returns the mints of all tracked positions.
func (m *Manager) Mints() []string {
	mints := make([]string, 0, len(m.positions))
	for mint := range m.positions {
		mints = append(mints, mint)
	}
	return mints
}
