package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"pump-sniper/internal/config"
	"pump-sniper/internal/engine"
	"pump-sniper/internal/market"
	"pump-sniper/internal/observability"
	"pump-sniper/internal/solana"
	"pump-sniper/internal/storage"
	"pump-sniper/internal/storage/memory"
	pgstore "pump-sniper/internal/storage/postgres"
	"pump-sniper/internal/stream"
	"pump-sniper/internal/trader"
	"pump-sniper/internal/wallet"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	logger := setupLogger(cfg)
	logger.WithFields(logrus.Fields{
		"mode":    modeName(cfg),
		"buy_sol": cfg.BuySOL,
		"window":  cfg.WindowDuration,
	}).Info("starting sniper")

	metrics := observability.NewMetrics("pump_sniper")

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal starts a graceful drain, second one forces exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig).Info("shutdown signal received, draining")
		cancel()
		sig = <-sigCh
		logger.WithField("signal", sig).Warn("second signal, forcing exit")
		os.Exit(1)
	}()

	if err := run(ctx, cfg, logger, metrics); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("sniper exited with error")
	}
	logger.Info("sniper stopped")
}

// run wires the components and drives the engine until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, logger *logrus.Logger, metrics *observability.Metrics) error {
	submitter, err := buildSubmitter(cfg, logger)
	if err != nil {
		return err
	}

	journal, cleanup, err := buildJournal(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	client, err := stream.NewClient(ctx, cfg.StreamURL, nil, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.SubscribeNewTokens(); err != nil {
		return err
	}
	if err := client.SubscribeAccountTrades(cfg.PublicKey); err != nil {
		return err
	}

	var poller *market.Poller
	if cfg.MarketPollInterval > 0 && cfg.MarketAPIURL != "" {
		poller = market.NewPoller(cfg.MarketAPIURL, 1)
	}

	go syncStreamMetrics(ctx, client, metrics)

	eng := engine.New(engine.Options{
		Config:    cfg,
		Events:    client.Events(),
		Submitter: submitter,
		Stream:    client,
		Journal:   journal,
		Poller:    poller,
		Metrics:   metrics,
		Log:       logger,
	})
	return eng.Run(ctx)
}

// buildSubmitter selects local or delegated execution from the config.
func buildSubmitter(cfg config.Config, logger *logrus.Logger) (trader.Submitter, error) {
	if cfg.UseLightning {
		return trader.NewLightning(trader.LightningOptions{
			Endpoint: cfg.LightningURL,
			APIKey:   cfg.APIKey,
			Log:      logger,
		}), nil
	}

	w, err := wallet.NewFromBase58(cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	rpc := solana.NewClient(cfg.RPCURL)

	return trader.NewLocal(trader.LocalOptions{
		Endpoints: cfg.TradeURLs,
		Wallet:    w,
		RPC:       rpc,
		Log:       logger,
	}), nil
}

// buildJournal returns the postgres-backed journal store when a DSN is
// configured, and the in-memory store otherwise.
func buildJournal(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.JournalStore, func(), error) {
	if cfg.PostgresDSN == "" {
		logger.Info("no postgres DSN, journaling in memory")
		return memory.NewJournalStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := pgstore.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("journaling to postgres")
	return pgstore.NewJournalStore(pool), pool.Close, nil
}

// setupLogger configures logrus from the config, with optional rotating
// file output.
func setupLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}
	return logger
}

// serveMetrics exposes /metrics and /health.
func serveMetrics(addr string, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.WithField("addr", addr).Info("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("metrics server failed")
	}
}

// syncStreamMetrics mirrors the stream client's internal counters into
// Prometheus every few seconds.
func syncStreamMetrics(ctx context.Context, client *stream.Client, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	var lastReconnects, lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r := client.Reconnects(); r > lastReconnects {
				metrics.StreamReconnects.Add(float64(r - lastReconnects))
				lastReconnects = r
			}
			if d := client.Dropped(); d > lastDropped {
				metrics.EventsDropped.Add(float64(d - lastDropped))
				lastDropped = d
			}
		}
	}
}

func modeName(cfg config.Config) string {
	if cfg.UseLightning {
		return "lightning"
	}
	return "local"
}
