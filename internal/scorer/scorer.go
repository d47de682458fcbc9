// Package scorer evaluates observation window statistics against hard risk
// gates and a weighted composite confidence score.
package scorer

import (
	"pump-sniper/internal/watcher"
)

// Thresholds are the gate and score parameters for window evaluation.
type Thresholds struct {
	MinBuys         int
	MinUniqueBuyers int
	MinBuySellRatio float64
	MinLiquidity    float64
	MaxLiquidity    float64
	MinWhaleShare   float64 // 0 disables the lower concentration bound
	MaxWhaleShare   float64
	MinScore        float64
}

// Result is the outcome of scoring one window. It is ephemeral; windows are
// never rescored.
type Result struct {
	BuysOK      bool
	UniqueOK    bool
	RatioOK     bool
	LiquidityOK bool
	WhaleOK     bool
	Score       float64
	Ratio       float64 // buys / max(1, sells), reported for logging
	GatesPassed bool
	BuySignal   bool // gates passed and score >= MinScore
}

// Composite score weights. They sum to 1.
const (
	weightBuys      = 0.25
	weightUnique    = 0.25
	weightRatio     = 0.20
	weightWhale     = 0.20
	weightLiquidity = 0.10
)

// Scorer applies Thresholds to window statistics.
type Scorer struct {
	t Thresholds
}

// New creates a Scorer.
func New(t Thresholds) *Scorer {
	return &Scorer{t: t}
}

// Evaluate scores the window statistics. The returned Result carries the
// individual gate verdicts, the composite score, and the final buy signal.
// The risk throttle is a separate, later check.
func (s *Scorer) Evaluate(stats watcher.Stats) Result {
	t := s.t

	sells := stats.Sells
	if sells < 1 {
		sells = 1
	}
	ratio := float64(stats.Buys) / float64(sells)

	r := Result{
		Ratio:       ratio,
		BuysOK:      stats.Buys >= t.MinBuys,
		UniqueOK:    stats.UniqueBuyers >= t.MinUniqueBuyers,
		RatioOK:     ratio >= t.MinBuySellRatio,
		LiquidityOK: stats.Liquidity >= t.MinLiquidity && stats.Liquidity <= t.MaxLiquidity,
	}

	if t.MinWhaleShare > 0 {
		r.WhaleOK = stats.WhaleShare >= t.MinWhaleShare && stats.WhaleShare <= t.MaxWhaleShare
	} else {
		r.WhaleOK = stats.WhaleShare <= t.MaxWhaleShare
	}

	r.Score = s.score(stats, ratio, r.LiquidityOK)
	r.GatesPassed = r.BuysOK && r.UniqueOK && r.RatioOK && r.LiquidityOK && r.WhaleOK
	r.BuySignal = r.GatesPassed && r.Score >= t.MinScore
	return r
}

// score computes the weighted composite confidence score in [0,1].
func (s *Scorer) score(stats watcher.Stats, ratio float64, liquidityOK bool) float64 {
	t := s.t

	score := weightBuys * clamp01(float64(stats.Buys)/float64(max(t.MinBuys, 1)))
	score += weightUnique * clamp01(float64(stats.UniqueBuyers)/float64(max(t.MinUniqueBuyers, 1)))
	if t.MinBuySellRatio > 0 {
		score += weightRatio * clamp01(ratio/t.MinBuySellRatio)
	} else {
		score += weightRatio
	}
	if t.MaxWhaleShare > 0 {
		score += weightWhale * (1 - clamp01(stats.WhaleShare/t.MaxWhaleShare))
	} else {
		score += weightWhale
	}
	if liquidityOK {
		score += weightLiquidity
	}
	return score
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
