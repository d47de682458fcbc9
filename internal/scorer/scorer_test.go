package scorer

import (
	"math"
	"testing"

	"pump-sniper/internal/watcher"
)

func defaultThresholds() Thresholds {
	return Thresholds{
		MinBuys:         12,
		MinUniqueBuyers: 10,
		MinBuySellRatio: 4,
		MinLiquidity:    30,
		MaxLiquidity:    200,
		MaxWhaleShare:   0.35,
		MinScore:        0.75,
	}
}

func passingStats() watcher.Stats {
	return watcher.Stats{
		Mint:         "MintAAA",
		Buys:         15,
		Sells:        3,
		UniqueBuyers: 11,
		WhaleShare:   0.10,
		Liquidity:    80,
	}
}

func TestEvaluate_BuySignal(t *testing.T) {
	s := New(defaultThresholds())

	r := s.Evaluate(passingStats())

	if !r.GatesPassed {
		t.Fatalf("expected all gates to pass, got %+v", r)
	}
	if !r.BuySignal {
		t.Errorf("expected buy signal at score %v", r.Score)
	}

	// 0.25 + 0.25 + 0.20 + 0.20*(1 - 0.10/0.35) + 0.10
	want := 0.9428571428571428
	if math.Abs(r.Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", r.Score, want)
	}
}

func TestEvaluate_Gates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*watcher.Stats)
		check  func(Result) bool
	}{
		{
			name:   "too few buys",
			mutate: func(s *watcher.Stats) { s.Buys = 11 },
			check:  func(r Result) bool { return !r.BuysOK },
		},
		{
			name:   "too few unique buyers",
			mutate: func(s *watcher.Stats) { s.UniqueBuyers = 9 },
			check:  func(r Result) bool { return !r.UniqueOK },
		},
		{
			name:   "ratio below minimum",
			mutate: func(s *watcher.Stats) { s.Sells = 5 },
			check:  func(r Result) bool { return !r.RatioOK },
		},
		{
			name:   "liquidity too low",
			mutate: func(s *watcher.Stats) { s.Liquidity = 10 },
			check:  func(r Result) bool { return !r.LiquidityOK },
		},
		{
			name:   "liquidity too high",
			mutate: func(s *watcher.Stats) { s.Liquidity = 500 },
			check:  func(r Result) bool { return !r.LiquidityOK },
		},
		{
			name:   "whale concentration too high",
			mutate: func(s *watcher.Stats) { s.WhaleShare = 0.50 },
			check:  func(r Result) bool { return !r.WhaleOK },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(defaultThresholds())
			stats := passingStats()
			tt.mutate(&stats)

			r := s.Evaluate(stats)
			if !tt.check(r) {
				t.Errorf("gate verdict not as expected: %+v", r)
			}
			if r.GatesPassed {
				t.Error("GatesPassed should be false when a gate fails")
			}
			if r.BuySignal {
				t.Error("no buy signal may be produced when a gate fails")
			}
		})
	}
}

func TestEvaluate_ZeroSellsRatio(t *testing.T) {
	s := New(defaultThresholds())
	stats := passingStats()
	stats.Sells = 0

	r := s.Evaluate(stats)
	if r.Ratio != float64(stats.Buys) {
		t.Errorf("ratio with zero sells = %v, want %v", r.Ratio, float64(stats.Buys))
	}
	if !r.RatioOK {
		t.Error("ratio gate should pass with zero sells")
	}
}

func TestEvaluate_MinWhaleShareBound(t *testing.T) {
	th := defaultThresholds()
	th.MinWhaleShare = 0.05
	s := New(th)

	stats := passingStats()
	stats.WhaleShare = 0.01 // suspiciously flat distribution

	r := s.Evaluate(stats)
	if r.WhaleOK {
		t.Error("whale gate should fail below the lower concentration bound")
	}
}

func TestEvaluate_ZeroMaxWhaleShare(t *testing.T) {
	th := defaultThresholds()
	th.MaxWhaleShare = 0
	s := New(th)

	r := s.Evaluate(passingStats())
	if math.IsNaN(r.Score) {
		t.Fatal("score must stay finite with a zero whale-share limit")
	}
	if r.WhaleOK {
		t.Error("whale gate should fail any nonzero share at a zero limit")
	}
}

func TestEvaluate_ScoreBelowMinimum(t *testing.T) {
	th := defaultThresholds()
	th.MinScore = 0.99
	s := New(th)

	r := s.Evaluate(passingStats())
	if !r.GatesPassed {
		t.Fatal("gates should still pass")
	}
	if r.BuySignal {
		t.Errorf("no buy signal below min score, got score %v", r.Score)
	}
}
