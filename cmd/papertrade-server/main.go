// papertrade-server runs the limit-order evaluation loop against the SQLite
// ledger, pricing symbols through the Alpaca market-data API. It evaluates
// pending orders on a fixed interval until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrade/internal/config"
	"papertrade/internal/engine"
	"papertrade/internal/ledger"
	"papertrade/internal/quote"
	"papertrade/internal/util"
)

func main() {
	// Load config.
	cfgPath := "config/papertrade.yaml"
	if p := os.Getenv("PAPERTRADE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Setup logging: stdout plus a daily file.
	logFileName := fmt.Sprintf("/tmp/papertrade-server-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	defer logFile.Close()

	w := io.MultiWriter(os.Stdout, logFile)
	logger := util.NewLoggerTo(w, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	// Open the ledger.
	l, err := ledger.NewSQLiteLedger(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening ledger: %v", err)
	}
	defer l.Close()

	// Price oracle.
	oracle := quote.NewAlpacaOracle(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		time.Duration(cfg.Engine.PriceTimeoutSec)*time.Second,
		cfg.Engine.RateLimitPerMin,
	)

	monitor := engine.NewMonitor(l, oracle,
		time.Duration(cfg.Engine.PollIntervalSec)*time.Second,
		time.Duration(cfg.Engine.PriceTimeoutSec)*time.Second,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("papertrade server starting",
		"ledger", cfg.Storage.SQLitePath,
		"interval", cfg.Engine.PollIntervalSec)

	if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("monitor exited", "error", err)
		os.Exit(1)
	}
	logger.Info("papertrade server stopped")
}
