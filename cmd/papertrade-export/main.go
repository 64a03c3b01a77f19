// One-shot tool: export a user's transaction history from the SQLite ledger
// into the Parquet archive. Re-running is safe: records merge by ID.
//
// Usage:
//
//	go run cmd/papertrade-export/main.go -user 1 [-config config/papertrade.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"papertrade/internal/archive"
	"papertrade/internal/config"
	"papertrade/internal/ledger"
	"papertrade/internal/util"
)

func main() {
	userID := flag.Int64("user", 0, "user ID to export (required)")
	cfgPath := flag.String("config", "config/papertrade.yaml", "config file path")
	flag.Parse()

	if *userID == 0 {
		fmt.Fprintln(os.Stderr, "usage: papertrade-export -user ID [-config PATH]")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail("loading config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	l, err := ledger.NewSQLiteLedger(cfg.Storage.SQLitePath)
	if err != nil {
		fail("opening ledger: %v", err)
	}
	defer l.Close()

	ctx := context.Background()
	if _, err := l.GetUser(ctx, *userID); err != nil {
		fail("looking up user %d: %v", *userID, err)
	}

	txs, err := l.ListTransactions(ctx, *userID)
	if err != nil {
		fail("listing transactions: %v", err)
	}
	if len(txs) == 0 {
		fmt.Printf("user %d has no transactions, nothing to export\n", *userID)
		return
	}

	a := archive.New(cfg.Storage.DataDir)
	if err := a.WriteTransactions(ctx, txs); err != nil {
		fail("archiving: %v", err)
	}
	fmt.Printf("exported %d transactions for user %d to %s\n", len(txs), *userID, a.DataDir)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
