// Package ledger defines the transactional store of cash balances, positions,
// transaction history, and limit orders, plus SQLite and in-memory
// implementations.
//
// All trade paths — market orders and limit-order fills alike — mutate state
// through ApplyTrade, the single atomic primitive. Callers must never
// read-modify-write balances or positions around it.
package ledger

import (
	"context"
	"errors"

	"papertrade/internal/domain"
)

// Sentinel errors returned by ledger implementations.
var (
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("ledger: user not found")

	// ErrDuplicateUser indicates the username is already taken.
	ErrDuplicateUser = errors.New("ledger: username already exists")

	// ErrOrderNotFound indicates the referenced limit order does not exist.
	ErrOrderNotFound = errors.New("ledger: limit order not found")

	// ErrOrderNotPending indicates a trade tied to a limit order lost the
	// PENDING transition race: the order was already executed or cancelled.
	// Callers treat this as a no-op, not a failure.
	ErrOrderNotPending = errors.New("ledger: limit order is not pending")

	// ErrInsufficientFunds indicates the user's cash cannot cover a buy or
	// a withdrawal.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
)

// TradeMutation describes one trade to apply atomically: the cash delta,
// position change, and transaction append happen together or not at all.
type TradeMutation struct {
	UserID   int64
	Symbol   string
	Side     domain.Side
	Quantity int64
	Price    float64

	// OrderID, when non-zero, ties the trade to a limit order: the order's
	// PENDING→EXECUTED transition is applied in the same atomic scope, and
	// the whole mutation is abandoned with ErrOrderNotPending if the order
	// is no longer pending.
	OrderID int64
}

// UserStore persists and retrieves user accounts and cash balances.
type UserStore interface {
	// CreateUser inserts a new user with the given starting cash.
	CreateUser(ctx context.Context, username string, cash float64) (*domain.User, error)

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID int64) (*domain.User, error)

	// UpdateCash adjusts a user's cash balance by delta. A negative delta
	// that would take the balance below zero fails with ErrInsufficientFunds
	// and leaves the balance unchanged.
	UpdateCash(ctx context.Context, userID int64, delta float64) error
}

// PositionStore persists and retrieves positions. At most one row exists per
// (user, symbol); a row with quantity zero is never stored.
type PositionStore interface {
	// GetPosition retrieves the position for a symbol, or nil if the user
	// holds none.
	GetPosition(ctx context.Context, userID int64, symbol string) (*domain.Position, error)

	// ListPositions returns all of a user's positions, ordered by symbol.
	ListPositions(ctx context.Context, userID int64) ([]domain.Position, error)

	// UpsertPosition sets the position quantity for a symbol, deleting the
	// row when quantity is zero.
	UpsertPosition(ctx context.Context, userID int64, symbol string, quantity int64) error
}

// TransactionStore persists and retrieves the append-only trade history.
type TransactionStore interface {
	// AppendTransaction inserts a transaction record and fills in its ID.
	AppendTransaction(ctx context.Context, tx *domain.Transaction) error

	// ListTransactions returns a user's transactions, most recent first.
	ListTransactions(ctx context.Context, userID int64) ([]domain.Transaction, error)
}

// OrderStore persists and retrieves limit orders.
type OrderStore interface {
	// CreateLimitOrder inserts a new order and fills in its ID.
	CreateLimitOrder(ctx context.Context, order *domain.LimitOrder) error

	// GetLimitOrder retrieves a single order by ID.
	GetLimitOrder(ctx context.Context, orderID int64) (*domain.LimitOrder, error)

	// ListLimitOrders returns a user's orders, most recent first.
	ListLimitOrders(ctx context.Context, userID int64) ([]domain.LimitOrder, error)

	// ListPendingLimitOrders returns every PENDING order across all users,
	// oldest first. The result is a snapshot for one evaluation pass.
	ListPendingLimitOrders(ctx context.Context) ([]domain.LimitOrder, error)

	// TryTransitionOrder atomically moves an order from one status to
	// another. It returns false when the order is missing or its current
	// status differs from the expected one. This check-and-set is the race
	// resolution primitive: of a concurrent cancel and execute, exactly one
	// transition wins.
	TryTransitionOrder(ctx context.Context, orderID int64, from, to domain.OrderStatus) (bool, error)
}

// WatchlistStore persists a user's watched symbols.
type WatchlistStore interface {
	// AddWatch adds a symbol to the watchlist. Adding a duplicate is a no-op.
	AddWatch(ctx context.Context, userID int64, symbol string) error

	// RemoveWatch removes a symbol from the watchlist.
	RemoveWatch(ctx context.Context, userID int64, symbol string) error

	// ListWatchlist returns the watched symbols, ordered by symbol.
	ListWatchlist(ctx context.Context, userID int64) ([]string, error)
}

// Ledger combines all stores with the atomic trade primitive.
type Ledger interface {
	UserStore
	PositionStore
	TransactionStore
	OrderStore
	WatchlistStore

	// ApplyTrade applies one trade as a single atomic mutation, serialized
	// with respect to all other trades for the same user:
	//
	//   1. if m.OrderID is set, CAS the order PENDING→EXECUTED
	//      (ErrOrderNotPending if lost);
	//   2. for a BUY, verify cash >= price*quantity (ErrInsufficientFunds);
	//   3. debit (BUY) or credit (SELL) cash by price*quantity;
	//   4. adjust the position by ±quantity, deleting the row at zero;
	//   5. append the transaction record.
	//
	// On any failure nothing is applied and no partial state is observable.
	// A SELL never checks holdings or cash: the position may go negative.
	ApplyTrade(ctx context.Context, m TradeMutation) (*domain.Transaction, error)

	// Close releases underlying resources.
	Close() error
}
