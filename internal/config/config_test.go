package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PUBLIC_KEY", "Pub111")
	t.Setenv("WALLET_PRIVATE_KEY", "Secret111")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.BuySOL != 0.005 {
		t.Errorf("BuySOL = %v", cfg.BuySOL)
	}
	if cfg.WindowDuration != 20*time.Second {
		t.Errorf("WindowDuration = %v", cfg.WindowDuration)
	}
	if cfg.MinBuys != 12 || cfg.MinUniqueBuyers != 10 {
		t.Errorf("gates = %d/%d", cfg.MinBuys, cfg.MinUniqueBuyers)
	}
	if len(cfg.TradeURLs) != 2 {
		t.Errorf("TradeURLs = %v", cfg.TradeURLs)
	}
	if cfg.PublicKey != "Pub111" || cfg.SecretKey != "Secret111" {
		t.Error("environment secrets not applied")
	}
}

func TestLoad_YAMLOverrides(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
buy_sol: 0.01
window_duration: 30s
min_buys: 20
buy_cooldown: 2m
take_profit_pct: 0.8
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BuySOL != 0.01 {
		t.Errorf("BuySOL = %v", cfg.BuySOL)
	}
	if cfg.WindowDuration != 30*time.Second {
		t.Errorf("WindowDuration = %v", cfg.WindowDuration)
	}
	if cfg.MinBuys != 20 {
		t.Errorf("MinBuys = %d", cfg.MinBuys)
	}
	if cfg.BuyCooldown != 2*time.Minute {
		t.Errorf("BuyCooldown = %v", cfg.BuyCooldown)
	}
	if cfg.TakeProfitPct != 0.8 {
		t.Errorf("TakeProfitPct = %v", cfg.TakeProfitPct)
	}
	// Untouched keys keep their defaults.
	if cfg.SlippageBps != 1500 {
		t.Errorf("SlippageBps = %d", cfg.SlippageBps)
	}
}

func TestLoad_TradeURLOverridePrepends(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRADE_URL", "https://example.com/trade")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TradeURLs[0] != "https://example.com/trade" {
		t.Errorf("TradeURLs[0] = %q", cfg.TradeURLs[0])
	}
	if len(cfg.TradeURLs) != 3 {
		t.Errorf("TradeURLs = %v", cfg.TradeURLs)
	}
}

func TestLoad_LightningRequiresAPIKey(t *testing.T) {
	t.Setenv("PUBLIC_KEY", "Pub111")
	t.Setenv("WALLET_PRIVATE_KEY", "")
	t.Setenv("PP_API_KEY", "")
	t.Setenv("USE_LIGHTNING", "true")

	if _, err := Load(""); err == nil {
		t.Error("lightning mode without an API key should fail validation")
	}

	t.Setenv("PP_API_KEY", "apikey")
	if _, err := Load(""); err != nil {
		t.Errorf("Load with API key: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg := Default()
		cfg.PublicKey = "Pub111"
		cfg.SecretKey = "Secret111"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing public key", func(c *Config) { c.PublicKey = "" }},
		{"missing secret in local mode", func(c *Config) { c.SecretKey = "" }},
		{"non-positive buy amount", func(c *Config) { c.BuySOL = 0 }},
		{"zero window", func(c *Config) { c.WindowDuration = 0 }},
		{"inverted liquidity bounds", func(c *Config) { c.MaxLiquiditySOL = c.MinLiquiditySOL - 1 }},
		{"whale share above one", func(c *Config) { c.MaxWhaleShare = 1.5 }},
		{"min whale above max", func(c *Config) { c.MinWhaleShare = 0.9 }},
		{"score out of range", func(c *Config) { c.MinScore = 1.2 }},
		{"zero take profit", func(c *Config) { c.TakeProfitPct = 0 }},
		{"zero max hold", func(c *Config) { c.MaxHoldDuration = 0 }},
		{"no trade endpoints", func(c *Config) { c.TradeURLs = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
