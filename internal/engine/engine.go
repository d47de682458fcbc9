// Package engine wires the observation, scoring, throttling, submission,
// and position components into a single event-processing loop.
//
// All shared state (windows, positions, throttle counters) is owned by one
// goroutine: the Run loop. Network operations such as trade submissions and
// market polls run on their own goroutines and report back through the
// internal command channel, so bookkeeping never suspends and per-asset
// invariants hold without locks.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pump-sniper/internal/config"
	"pump-sniper/internal/domain"
	"pump-sniper/internal/market"
	"pump-sniper/internal/observability"
	"pump-sniper/internal/position"
	"pump-sniper/internal/scorer"
	"pump-sniper/internal/storage"
	"pump-sniper/internal/throttle"
	"pump-sniper/internal/trader"
	"pump-sniper/internal/watcher"
)

// SubscriptionControl is the subset of the stream client the engine uses to
// manage per-mint trade feeds.
type SubscriptionControl interface {
	SubscribeTokenTrades(mint string) error
	UnsubscribeTokenTrades(mint string) error
}

// Options configure an Engine. Events is required; Stream, Journal, Poller,
// and Metrics are optional collaborators.
type Options struct {
	Config    config.Config
	Events    <-chan *domain.TradeEvent
	Submitter trader.Submitter
	Stream    SubscriptionControl
	Journal   storage.JournalStore
	Poller    *market.Poller
	Metrics   *observability.Metrics
	Log       *logrus.Logger
	Now       func() time.Time
}

// command kinds posted back into the run loop.
type cmdKind int

const (
	cmdWindowExpired cmdKind = iota
	cmdBuyDone
	cmdSellDone
	cmdPriceTick
)

// command is a message on the engine's internal serialization channel.
type command struct {
	kind    cmdKind
	mint    string
	result  *domain.TradeResult
	spend   float64
	reason  domain.ExitReason
	price   float64
	estExit float64
}

// Engine is the decision core. Construct with New and drive with Run.
type Engine struct {
	cfg       config.Config
	events    <-chan *domain.TradeEvent
	submitter trader.Submitter
	stream    SubscriptionControl
	journal   storage.JournalStore
	poller    *market.Poller
	metrics   *observability.Metrics
	log       *logrus.Entry
	now       func() time.Time

	tracker   *watcher.Tracker
	scheduler *watcher.Scheduler
	scorer    *scorer.Scorer
	throttle  *throttle.Throttle
	positions *position.Manager

	commands    chan command
	inFlight    int  // outstanding submission/poll goroutines
	pollPending int  // market poll responses not yet processed
	draining    bool // shutdown in progress, no new buys
}

// New creates an Engine from Options.
func New(opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Config

	e := &Engine{
		cfg:       cfg,
		events:    opts.Events,
		submitter: opts.Submitter,
		stream:    opts.Stream,
		journal:   opts.Journal,
		poller:    opts.Poller,
		metrics:   opts.Metrics,
		log:       log.WithField("component", "engine"),
		now:       now,
		tracker:   watcher.NewTracker(cfg.WindowDuration, now),
		scorer: scorer.New(scorer.Thresholds{
			MinBuys:         cfg.MinBuys,
			MinUniqueBuyers: cfg.MinUniqueBuyers,
			MinBuySellRatio: cfg.MinBuySellRatio,
			MinLiquidity:    cfg.MinLiquiditySOL,
			MaxLiquidity:    cfg.MaxLiquiditySOL,
			MinWhaleShare:   cfg.MinWhaleShare,
			MaxWhaleShare:   cfg.MaxWhaleShare,
			MinScore:        cfg.MinScore,
		}),
		throttle: throttle.New(cfg.BuyCooldown, cfg.DailyBuyCap),
		positions: position.NewManager(position.ExitParams{
			TakeProfitPct:   cfg.TakeProfitPct,
			TrailPct:        cfg.TrailPct,
			StopLossPct:     cfg.StopLossPct,
			MaxHold:         cfg.MaxHoldDuration,
			MinTTLProfitPct: cfg.MinTTLProfitPct,
			AssumedFeePct:   cfg.AssumedFeePct,
		}, now, log),
		commands: make(chan command, 1024),
	}

	e.scheduler = watcher.NewScheduler(func(mint string) {
		e.commands <- command{kind: cmdWindowExpired, mint: mint}
	})

	return e
}

// Run processes events until ctx is cancelled or the event channel closes,
// then drains in-flight submissions before returning.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine started")

	var pollCh <-chan time.Time
	if e.poller != nil && e.cfg.MarketPollInterval > 0 {
		ticker := time.NewTicker(e.cfg.MarketPollInterval)
		defer ticker.Stop()
		pollCh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return e.shutdown()
		case ev, ok := <-e.events:
			if !ok {
				return e.shutdown()
			}
			e.handleEvent(ev)
		case cmd := <-e.commands:
			e.handleCommand(cmd)
		case <-pollCh:
			e.startPoll()
		}
	}
}

// shutdown stops timers and waits for outstanding submissions to report
// back, processing their results so confirmed trades are still journaled.
func (e *Engine) shutdown() error {
	e.log.WithField("in_flight", e.inFlight).Info("shutting down, draining in-flight work")
	e.scheduler.Stop()
	e.draining = true

	for e.inFlight > 0 {
		cmd := <-e.commands
		e.handleCommand(cmd)
	}
	e.log.Info("engine stopped")
	return nil
}

// handleEvent routes one inbound stream event. Events for a given mint are
// processed in arrival order.
func (e *Engine) handleEvent(ev *domain.TradeEvent) {
	if e.metrics != nil {
		e.metrics.EventsProcessed.WithLabelValues(string(ev.Kind)).Inc()
	}

	switch ev.Kind {
	case domain.EventCreate:
		e.onCreate(ev)
	case domain.EventBuy, domain.EventSell:
		e.onTrade(ev)
	}
}

// onCreate opens an observation window for a newly created token.
func (e *Engine) onCreate(ev *domain.TradeEvent) {
	if e.positions.Has(ev.Mint) {
		// A duplicate create for a mint we already hold must not trigger
		// a second submission.
		return
	}
	if !e.tracker.Open(ev) {
		return
	}

	e.log.WithField("mint", ev.Mint).Info("new token, observation window opened")
	e.scheduler.Schedule(ev.Mint, e.cfg.WindowDuration)

	if e.stream != nil {
		if err := e.stream.SubscribeTokenTrades(ev.Mint); err != nil {
			e.log.WithError(err).WithField("mint", ev.Mint).Warn("token trade subscription failed")
		}
	}
	if e.metrics != nil {
		e.metrics.WindowsOpened.Inc()
		e.metrics.LiveWindows.Set(float64(e.tracker.Len()))
	}
}

// onTrade handles buy/sell fills: the operator's own fills update position
// bookkeeping, everything else feeds windows and price ticks.
func (e *Engine) onTrade(ev *domain.TradeEvent) {
	if ev.Trader != "" && ev.Trader == e.cfg.PublicKey {
		e.onOwnFill(ev)
		return
	}

	e.tracker.Observe(ev)

	if price, ok := ev.Price(); ok {
		e.evaluateTick(ev.Mint, price)
	}
}

// onOwnFill processes fills of the operator account.
func (e *Engine) onOwnFill(ev *domain.TradeEvent) {
	switch ev.Kind {
	case domain.EventBuy:
		e.positions.OnFillObserved(ev.Mint, ev.TokenAmount)
	case domain.EventSell:
		// The venue reports our tokens gone; treat it as a best-effort
		// sell confirmation even if our own submission saw no signature.
		e.positions.OnSellConfirmed(ev.Mint)
		e.unsubscribeIfIdle(ev.Mint)
		e.updatePositionGauge()
	}
}

// evaluateTick runs the exit state machine for one price observation.
func (e *Engine) evaluateTick(mint string, price float64) {
	sig := e.positions.OnPriceTick(mint, price)
	if sig == nil {
		return
	}
	e.startSell(sig)
}

// handleCommand processes one internal command on the run loop.
func (e *Engine) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdWindowExpired:
		// Expiries already queued when shutdown began must not start
		// new buys during the drain.
		if !e.draining {
			e.onWindowExpired(cmd.mint)
		}
	case cmdBuyDone:
		e.inFlight--
		e.onBuyDone(cmd)
	case cmdSellDone:
		e.inFlight--
		e.onSellDone(cmd)
	case cmdPriceTick:
		e.inFlight--
		e.pollPending--
		e.evaluateTick(cmd.mint, cmd.price)
	}
}

// onWindowExpired evaluates the window exactly once and decides buy/no-buy.
func (e *Engine) onWindowExpired(mint string) {
	stats, ok := e.tracker.Evaluate(mint)
	if e.metrics != nil {
		e.metrics.LiveWindows.Set(float64(e.tracker.Len()))
	}
	if !ok {
		return
	}
	if e.metrics != nil {
		e.metrics.WindowsEvaluated.Inc()
	}

	result := e.scorer.Evaluate(stats)
	log := e.log.WithFields(logrus.Fields{
		"mint":   mint,
		"buys":   stats.Buys,
		"sells":  stats.Sells,
		"unique": stats.UniqueBuyers,
		"whale":  stats.WhaleShare,
		"liq":    stats.Liquidity,
		"score":  result.Score,
	})

	if !result.BuySignal {
		log.Info("window evaluated, skipped")
		e.unsubscribeIfIdle(mint)
		return
	}
	if e.metrics != nil {
		e.metrics.GatesPassed.Inc()
	}

	if !e.throttle.Admit(e.now()) {
		log.Info("buy signal rejected by throttle")
		if e.metrics != nil {
			e.metrics.ThrottleRejected.Inc()
		}
		e.unsubscribeIfIdle(mint)
		return
	}

	log.Info("buy signal")
	e.startBuy(mint, stats.Pool)
}

// startBuy registers the in-flight marker synchronously, then submits on a
// separate goroutine. The marker guarantees no concurrent duplicate
// submission for the same mint while the submitter suspends.
func (e *Engine) startBuy(mint, pool string) {
	if !e.positions.OnBuySubmitted(mint, pool) {
		return
	}
	e.updatePositionGauge()
	if e.metrics != nil {
		e.metrics.BuysSubmitted.Inc()
	}

	req := &domain.TradeRequest{
		Side:        domain.SideBuy,
		Mint:        mint,
		AmountSOL:   e.cfg.BuySOL,
		SlippageBps: e.cfg.SlippageBps,
		PriorityFee: e.cfg.PriorityFee,
		Pool:        pool,
	}
	spend := e.cfg.BuySOL + e.cfg.PriorityFee

	e.inFlight++
	go func() {
		start := time.Now()
		// Submission outlives Run's context so a cancelled engine still
		// drains to a definite result; per-attempt deadlines bound it.
		result := e.submitter.Submit(context.Background(), req)
		if e.metrics != nil {
			e.metrics.SubmitLatency.WithLabelValues("buy").Observe(time.Since(start).Seconds())
		}
		e.commands <- command{kind: cmdBuyDone, mint: mint, result: result, spend: spend}
	}()
}

// onBuyDone finalizes a buy submission.
func (e *Engine) onBuyDone(cmd command) {
	if !cmd.result.Confirmed() {
		e.positions.OnBuyFailed(cmd.mint)
		e.unsubscribeIfIdle(cmd.mint)
		e.updatePositionGauge()
		return
	}

	e.positions.OnBuyConfirmed(cmd.mint, cmd.spend, 0)
	if e.metrics != nil {
		e.metrics.BuysConfirmed.Inc()
	}
	e.journalTrade(&domain.JournalEntry{
		Mint:      cmd.mint,
		Side:      domain.SideBuy,
		AmountSOL: cmd.spend,
		Signature: cmd.result.Signature,
	})
}

// startSell marks the position Exiting and submits the sell.
func (e *Engine) startSell(sig *position.ExitSignal) {
	e.positions.OnSellSubmitted(sig.Mint)
	if e.metrics != nil {
		e.metrics.SellsSubmitted.WithLabelValues(string(sig.Reason)).Inc()
	}
	e.log.WithFields(logrus.Fields{
		"mint":     sig.Mint,
		"reason":   sig.Reason,
		"est_exit": sig.EstExitValue,
	}).Info("exit triggered, selling")

	req := &domain.TradeRequest{
		Side:        domain.SideSell,
		Mint:        sig.Mint,
		AmountPct:   "100%",
		SlippageBps: e.cfg.SlippageBps,
		PriorityFee: e.cfg.PriorityFee,
	}

	estExit := sig.EstExitValue
	reason := sig.Reason

	e.inFlight++
	go func() {
		start := time.Now()
		result := e.submitter.Submit(context.Background(), req)
		if e.metrics != nil {
			e.metrics.SubmitLatency.WithLabelValues("sell").Observe(time.Since(start).Seconds())
		}
		e.commands <- command{
			kind:    cmdSellDone,
			mint:    req.Mint,
			result:  result,
			reason:  reason,
			estExit: estExit,
		}
	}()
}

// onSellDone finalizes a sell submission. A failed sell leaves the position
// Open; the next tick that trips an exit rule re-attempts it.
func (e *Engine) onSellDone(cmd command) {
	if !cmd.result.Confirmed() {
		e.positions.OnSellFailed(cmd.mint)
		return
	}

	pos := e.positions.Get(cmd.mint)
	var qty float64
	if pos != nil {
		qty = pos.TokenQty
	}

	e.positions.OnSellConfirmed(cmd.mint)
	if e.metrics != nil {
		e.metrics.SellsConfirmed.Inc()
	}
	e.journalTrade(&domain.JournalEntry{
		Mint:       cmd.mint,
		Side:       domain.SideSell,
		AmountSOL:  cmd.estExit,
		TokenQty:   qty,
		Signature:  cmd.result.Signature,
		ExitReason: string(cmd.reason),
	})
	e.unsubscribeIfIdle(cmd.mint)
	e.updatePositionGauge()
}

// startPoll fetches market snapshots for all held mints off-loop. A single
// poll runs at a time.
func (e *Engine) startPoll() {
	if e.pollPending > 0 || e.poller == nil {
		return
	}
	mints := e.positions.Mints()
	if len(mints) == 0 {
		return
	}
	e.pollPending = len(mints)
	e.inFlight += len(mints)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.MarketPollInterval)
		defer cancel()
		for _, mint := range mints {
			var price float64
			snapshots, err := e.poller.Fetch(ctx, mint)
			if err == nil {
				if best := market.Best(snapshots); best != nil {
					price = best.PriceSOL
				}
			}
			e.commands <- command{kind: cmdPriceTick, mint: mint, price: price}
		}
	}()
}

// journalTrade persists a confirmed trade. Journal failures never block
// trading.
func (e *Engine) journalTrade(entry *domain.JournalEntry) {
	if e.journal == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.Mode = e.submitter.Mode()
	entry.TimestampMs = e.now().UnixMilli()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.journal.Insert(ctx, entry); err != nil {
		e.log.WithError(err).Warn("journal write failed")
		if e.metrics != nil {
			e.metrics.JournalErrors.Inc()
		}
	}
}

// unsubscribeIfIdle drops the per-mint trade feed once neither a window nor
// a position needs it.
func (e *Engine) unsubscribeIfIdle(mint string) {
	if e.stream == nil {
		return
	}
	if e.tracker.Watching(mint) || e.positions.Has(mint) {
		return
	}
	if err := e.stream.UnsubscribeTokenTrades(mint); err != nil {
		e.log.WithError(err).WithField("mint", mint).Debug("unsubscribe failed")
	}
}

// updatePositionGauge refreshes the open position gauge.
func (e *Engine) updatePositionGauge() {
	if e.metrics != nil {
		e.metrics.OpenPositions.Set(float64(e.positions.Len()))
	}
}
