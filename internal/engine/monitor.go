package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/quote"
)

// Monitor is the background limit-order evaluation loop. Each pass it
// snapshots all PENDING orders, prices each order's symbol, and executes the
// triggered ones through the ledger's atomic trade primitive.
//
// The loop is deliberately steady: a fixed interval with no backoff, and no
// per-order state between passes. Orders that cannot be priced or afforded
// simply stay pending and are re-evaluated next pass.
type Monitor struct {
	ledger       ledger.Ledger
	oracle       quote.Oracle
	interval     time.Duration
	priceTimeout time.Duration
	log          *slog.Logger
}

// NewMonitor creates a monitor that evaluates pending orders every interval,
// bounding each price lookup by priceTimeout.
func NewMonitor(l ledger.Ledger, o quote.Oracle, interval, priceTimeout time.Duration) *Monitor {
	return &Monitor{
		ledger:       l,
		oracle:       o,
		interval:     interval,
		priceTimeout: priceTimeout,
		log:          slog.Default().With("component", "monitor"),
	}
}

// Run evaluates orders until ctx is cancelled. The first pass runs
// immediately; later passes follow the configured interval.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("limit order monitor started", "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.RunOnce(ctx)

		select {
		case <-ctx.Done():
			m.log.Info("limit order monitor stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single evaluation pass. Failures are per-order: one
// broken order never prevents the rest of the snapshot from being evaluated.
func (m *Monitor) RunOnce(ctx context.Context) {
	orders, err := m.ledger.ListPendingLimitOrders(ctx)
	if err != nil {
		m.log.Error("listing pending orders", "error", err)
		return
	}
	if len(orders) == 0 {
		return
	}
	m.log.Debug("evaluating pending orders", "count", len(orders))

	for _, o := range orders {
		if ctx.Err() != nil {
			return
		}

		priceCtx, cancel := context.WithTimeout(ctx, m.priceTimeout)
		price, err := m.oracle.Price(priceCtx, o.Symbol)
		cancel()
		if err != nil {
			m.log.Warn("price unavailable, order stays pending",
				"order", o.ID, "symbol", o.Symbol, "error", err)
			continue
		}

		if !o.Triggered(price) {
			continue
		}

		// Execute at the trigger price, not a re-fetched one: the price
		// that satisfied the condition is the price the fill gets.
		_, err = m.ledger.ApplyTrade(ctx, ledger.TradeMutation{
			UserID:   o.UserID,
			Symbol:   o.Symbol,
			Side:     o.Side,
			Quantity: o.Quantity,
			Price:    price,
			OrderID:  o.ID,
		})
		switch {
		case err == nil:
			m.log.Info("limit order executed",
				"order", o.ID, "user", o.UserID, "symbol", o.Symbol,
				"side", o.Side, "quantity", o.Quantity, "price", price,
				"target", o.TargetPrice)
		case errors.Is(err, ledger.ErrInsufficientFunds):
			// The order stays pending and is retried next pass.
			m.log.Debug("limit order unaffordable, will retry",
				"order", o.ID, "user", o.UserID, "price", price)
		case errors.Is(err, ledger.ErrOrderNotPending):
			// Lost the race against a cancel (or a concurrent pass).
			m.log.Debug("limit order no longer pending", "order", o.ID)
		default:
			m.log.Error("executing limit order",
				"order", o.ID, "user", o.UserID, "error", err)
		}
	}
}
