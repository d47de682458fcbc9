// Package config loads engine configuration from a YAML file with
// environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the full configuration surface of the engine.
type Config struct {
	// Wallet and connectivity. Secrets come from the environment, never YAML.
	PublicKey    string   `yaml:"-"` // PUBLIC_KEY
	SecretKey    string   `yaml:"-"` // WALLET_PRIVATE_KEY (base58, local mode only)
	APIKey       string   `yaml:"-"` // PP_API_KEY (lightning mode only)
	RPCURL       string   `yaml:"rpc_url"`
	StreamURL    string   `yaml:"stream_url"`
	TradeURLs    []string `yaml:"trade_urls"` // ordered candidate build endpoints
	UseLightning bool     `yaml:"use_lightning"`
	LightningURL string   `yaml:"lightning_url"`

	// Order parameters.
	BuySOL        float64 `yaml:"buy_sol"`
	SlippageBps   int     `yaml:"slippage_bps"`
	PriorityFee   float64 `yaml:"priority_fee"`
	AssumedFeePct float64 `yaml:"assumed_fee_pct"` // fee fraction used for qty estimation

	// Observation window and scoring gates.
	WindowDuration  time.Duration `yaml:"window_duration"`
	MinBuys         int           `yaml:"min_buys"`
	MinUniqueBuyers int           `yaml:"min_unique_buyers"`
	MinBuySellRatio float64       `yaml:"min_buy_sell_ratio"`
	MinLiquiditySOL float64       `yaml:"min_liquidity_sol"`
	MaxLiquiditySOL float64       `yaml:"max_liquidity_sol"`
	MinWhaleShare   float64       `yaml:"min_whale_share"` // 0 disables the lower bound
	MaxWhaleShare   float64       `yaml:"max_whale_share"`
	MinScore        float64       `yaml:"min_score"`

	// Risk throttle.
	BuyCooldown time.Duration `yaml:"buy_cooldown"`
	DailyBuyCap int           `yaml:"daily_buy_cap"` // 0 disables the cap

	// Exit policy.
	TakeProfitPct   float64       `yaml:"take_profit_pct"`
	TrailPct        float64       `yaml:"trail_pct"`     // 0 disables trailing
	StopLossPct     float64       `yaml:"stop_loss_pct"` // 0 disables stop-loss
	MaxHoldDuration time.Duration `yaml:"max_hold_duration"`
	MinTTLProfitPct float64       `yaml:"min_ttl_profit_pct"`

	// Market snapshot polling (0 disables polling).
	MarketPollInterval time.Duration `yaml:"market_poll_interval"`
	MarketAPIURL       string        `yaml:"market_api_url"`

	// Infrastructure.
	PostgresDSN string `yaml:"postgres_dsn"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"` // empty disables file output
}

// Default endpoint constants, matching the hosted execution service.
const (
	DefaultStreamURL    = "wss://pumpportal.fun/api/data"
	DefaultTradeURL     = "https://pumpportal.fun/api/trade-local"
	DefaultTradeURLAlt  = "https://www.pumpportal.fun/api/trade-local"
	DefaultLightningURL = "https://pumpportal.fun/api/trade"
	DefaultRPCURL       = "https://api.mainnet-beta.solana.com"
)

// Default returns a Config populated with conservative defaults.
func Default() Config {
	return Config{
		RPCURL:             DefaultRPCURL,
		StreamURL:          DefaultStreamURL,
		TradeURLs:          []string{DefaultTradeURL, DefaultTradeURLAlt},
		LightningURL:       DefaultLightningURL,
		BuySOL:             0.005,
		SlippageBps:        1500,
		PriorityFee:        0.0,
		AssumedFeePct:      0.01,
		WindowDuration:     20 * time.Second,
		MinBuys:            12,
		MinUniqueBuyers:    10,
		MinBuySellRatio:    4,
		MinLiquiditySOL:    30,
		MaxLiquiditySOL:    200,
		MaxWhaleShare:      0.35,
		MinScore:           0.75,
		BuyCooldown:        45 * time.Second,
		DailyBuyCap:        0,
		TakeProfitPct:      0.5,
		TrailPct:           0.12,
		MaxHoldDuration:    7 * time.Minute,
		MinTTLProfitPct:    0.05,
		MarketPollInterval: 0,
		MarketAPIURL:       "https://api.dexscreener.com/latest/dex/tokens",
		MetricsAddr:        ":9090",
		LogLevel:           "info",
	}
}

// Load reads configuration from the YAML file at path (optional) and applies
// environment overrides. A .env file in the working directory is honored.
func Load(path string) (Config, error) {
	// Missing .env is fine; explicit environment still applies.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() {
	c.PublicKey = envString("PUBLIC_KEY", c.PublicKey)
	c.SecretKey = envString("WALLET_PRIVATE_KEY", c.SecretKey)
	c.APIKey = envString("PP_API_KEY", c.APIKey)
	c.RPCURL = envString("RPC_URL", c.RPCURL)
	c.StreamURL = envString("STREAM_URL", c.StreamURL)
	c.PostgresDSN = envString("POSTGRES_DSN", c.PostgresDSN)
	if v := os.Getenv("TRADE_URL"); v != "" {
		c.TradeURLs = append([]string{v}, c.TradeURLs...)
	}
	if v := os.Getenv("USE_LIGHTNING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			c.UseLightning = b
		}
	}
	if v := os.Getenv("BUY_SOL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			c.BuySOL = f
		}
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate checks invariants that would otherwise surface deep in the engine.
func (c *Config) Validate() error {
	if c.PublicKey == "" {
		return fmt.Errorf("config: PUBLIC_KEY is required")
	}
	if c.UseLightning {
		if c.APIKey == "" {
			return fmt.Errorf("config: lightning mode requires PP_API_KEY")
		}
	} else if c.SecretKey == "" {
		return fmt.Errorf("config: local mode requires WALLET_PRIVATE_KEY")
	}
	if c.BuySOL <= 0 {
		return fmt.Errorf("config: buy_sol must be positive, got %v", c.BuySOL)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("config: window_duration must be positive")
	}
	if c.MaxLiquiditySOL < c.MinLiquiditySOL {
		return fmt.Errorf("config: max_liquidity_sol %v below min_liquidity_sol %v",
			c.MaxLiquiditySOL, c.MinLiquiditySOL)
	}
	if c.MaxWhaleShare <= 0 || c.MaxWhaleShare > 1 {
		return fmt.Errorf("config: max_whale_share must be in (0,1], got %v", c.MaxWhaleShare)
	}
	if c.MinWhaleShare < 0 || c.MinWhaleShare > c.MaxWhaleShare {
		return fmt.Errorf("config: min_whale_share must be in [0, max_whale_share]")
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("config: min_score must be in [0,1], got %v", c.MinScore)
	}
	if c.TakeProfitPct <= 0 {
		return fmt.Errorf("config: take_profit_pct must be positive")
	}
	if c.MaxHoldDuration <= 0 {
		return fmt.Errorf("config: max_hold_duration must be positive")
	}
	if len(c.TradeURLs) == 0 && !c.UseLightning {
		return fmt.Errorf("config: at least one trade endpoint is required")
	}
	return nil
}
