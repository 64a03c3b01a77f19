// Package engine holds the trading core: market-order execution, the
// background limit-order evaluation loop, and portfolio valuation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"papertrade/internal/domain"
	"papertrade/internal/ledger"
	"papertrade/internal/quote"
)

// Validation errors returned before any state is touched.
var (
	// ErrInvalidQuantity indicates a non-positive share quantity.
	ErrInvalidQuantity = errors.New("engine: quantity must be positive")

	// ErrInvalidSide indicates an order side other than BUY or SELL.
	ErrInvalidSide = errors.New("engine: side must be BUY or SELL")

	// ErrInvalidPrice indicates a non-positive limit target price.
	ErrInvalidPrice = errors.New("engine: target price must be positive")

	// ErrInvalidAmount indicates a non-positive cash amount.
	ErrInvalidAmount = errors.New("engine: amount must be positive")
)

// Executor performs user-initiated trading operations against the ledger,
// pricing market orders through the oracle.
type Executor struct {
	ledger ledger.Ledger
	oracle quote.Oracle
	log    *slog.Logger
}

// NewExecutor creates an executor over the given ledger and oracle.
func NewExecutor(l ledger.Ledger, o quote.Oracle) *Executor {
	return &Executor{
		ledger: l,
		oracle: o,
		log:    slog.Default().With("component", "executor"),
	}
}

// Execute performs a market order at the oracle's current price. The
// resulting cash, position, and transaction mutations are atomic.
func (e *Executor) Execute(ctx context.Context, userID int64, symbol string, side domain.Side, quantity int64) (*domain.Transaction, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !side.Valid() {
		return nil, ErrInvalidSide
	}
	symbol = normalizeSymbol(symbol)

	price, err := e.oracle.Price(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("pricing %s: %w", symbol, err)
	}

	tx, err := e.ledger.ApplyTrade(ctx, ledger.TradeMutation{
		UserID:   userID,
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Price:    price,
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("market order executed",
		"user", userID, "symbol", symbol, "side", side,
		"quantity", quantity, "price", price)
	return tx, nil
}

// AddFunds credits cash to a user's account.
func (e *Executor) AddFunds(ctx context.Context, userID int64, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return e.ledger.UpdateCash(ctx, userID, amount)
}

// WithdrawFunds debits cash from a user's account. Withdrawing more than the
// balance fails with ledger.ErrInsufficientFunds.
func (e *Executor) WithdrawFunds(ctx context.Context, userID int64, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return e.ledger.UpdateCash(ctx, userID, -amount)
}

// PlaceLimitOrder records a PENDING limit order for the evaluation loop. No
// funds are reserved: affordability is checked only at execution time.
func (e *Executor) PlaceLimitOrder(ctx context.Context, userID int64, symbol string, side domain.Side, targetPrice float64, quantity int64) (*domain.LimitOrder, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !side.Valid() {
		return nil, ErrInvalidSide
	}
	if targetPrice <= 0 {
		return nil, ErrInvalidPrice
	}

	order := &domain.LimitOrder{
		UserID:      userID,
		Symbol:      normalizeSymbol(symbol),
		Side:        side,
		TargetPrice: targetPrice,
		Quantity:    quantity,
		Status:      domain.OrderPending,
		CreatedAt:   time.Now(),
	}
	if err := e.ledger.CreateLimitOrder(ctx, order); err != nil {
		return nil, err
	}

	e.log.Info("limit order placed",
		"user", userID, "order", order.ID, "symbol", order.Symbol,
		"side", side, "target", targetPrice, "quantity", quantity)
	return order, nil
}

// CancelLimitOrder cancels a user's pending order. If the evaluation loop
// executes the order first, the cancel silently loses the race and the
// executed state stands. Orders belonging to other users are reported as not
// found.
func (e *Executor) CancelLimitOrder(ctx context.Context, userID, orderID int64) error {
	order, err := e.ledger.GetLimitOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ledger.ErrOrderNotFound
	}
	if order.Status != domain.OrderPending {
		return ledger.ErrOrderNotPending
	}

	won, err := e.ledger.TryTransitionOrder(ctx, orderID, domain.OrderPending, domain.OrderCancelled)
	if err != nil {
		return err
	}
	if !won {
		e.log.Debug("cancel lost the race", "user", userID, "order", orderID)
	}
	return nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
