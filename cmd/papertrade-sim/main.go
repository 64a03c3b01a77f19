// One-shot tool: run a deterministic trading scenario against the in-memory
// ledger and a static price oracle, printing each step. Useful for
// demonstrating the limit-order lifecycle without credentials or a database.
//
// Usage:
//
//	go run cmd/papertrade-sim/main.go [-cash 100000] [-v]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"papertrade/internal/domain"
	"papertrade/internal/engine"
	"papertrade/internal/ledger"
	"papertrade/internal/quote"
	"papertrade/internal/util"
)

func main() {
	cash := flag.Float64("cash", 100000, "starting cash")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	util.SetDefault(util.NewLogger(level, "text"))

	ctx := context.Background()
	l := ledger.NewMemoryLedger()
	oracle := quote.NewStaticOracle()
	exec := engine.NewExecutor(l, oracle)
	monitor := engine.NewMonitor(l, oracle, time.Minute, time.Second)
	valuator := engine.NewValuator(l, oracle)

	user, err := l.CreateUser(ctx, "sim", *cash)
	if err != nil {
		fail("creating user: %v", err)
	}
	fmt.Printf("=== papertrade simulation (user %d, cash %.2f) ===\n\n", user.ID, user.Cash)

	// Market buy at the current price.
	oracle.Set("AAPL", 200)
	oracle.SetPrevClose("AAPL", 195)
	tx, err := exec.Execute(ctx, user.ID, "AAPL", domain.SideBuy, 50)
	if err != nil {
		fail("market buy: %v", err)
	}
	fmt.Printf("market buy:    %d AAPL @ %.2f (tx %d)\n", tx.Quantity, tx.Price, tx.ID)

	// Place a limit buy below the market; the first pass does nothing.
	order, err := exec.PlaceLimitOrder(ctx, user.ID, "AAPL", domain.SideBuy, 190, 25)
	if err != nil {
		fail("placing limit order: %v", err)
	}
	fmt.Printf("limit buy:     %d AAPL @ %.2f placed (order %d)\n", order.Quantity, order.TargetPrice, order.ID)

	monitor.RunOnce(ctx)
	status := orderStatus(ctx, l, order.ID)
	fmt.Printf("pass 1:        price 200.00, order %s\n", status)

	// The price dips through the target; the next pass fills it.
	oracle.Set("AAPL", 188.5)
	monitor.RunOnce(ctx)
	status = orderStatus(ctx, l, order.ID)
	fmt.Printf("pass 2:        price 188.50, order %s\n", status)

	// Portfolio valuation at the dipped price.
	p, err := valuator.Value(ctx, user.ID)
	if err != nil {
		fail("valuing portfolio: %v", err)
	}
	fmt.Printf("\nportfolio:     cash %.2f, total %.2f\n", p.Cash, p.Total)
	for _, h := range p.Holdings {
		fmt.Printf("  %-6s %6d @ %.2f = %.2f (%+.2f%%)\n",
			h.Symbol, h.Quantity, h.Price, h.Value, h.ChangePercent)
	}

	txs, _ := l.ListTransactions(ctx, user.ID)
	fmt.Printf("\ntransactions:  %d\n", len(txs))
	for _, t := range txs {
		fmt.Printf("  #%d %s %d %s @ %.2f\n", t.ID, t.Side, t.Quantity, t.Symbol, t.Price)
	}
}

func orderStatus(ctx context.Context, l ledger.Ledger, orderID int64) domain.OrderStatus {
	o, err := l.GetLimitOrder(ctx, orderID)
	if err != nil {
		fail("reading order: %v", err)
	}
	return o.Status
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
