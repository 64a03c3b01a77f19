// Package domain defines the core types shared across the papertrade
// platform: users, positions, transactions, limit orders, and market data.
package domain

import "time"

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// Side is the direction of a trade or order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is a known trade side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderStatus is the lifecycle state of a limit order. EXECUTED and
// CANCELLED are terminal; an order never re-enters PENDING.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderExecuted  OrderStatus = "EXECUTED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether the status is a final state.
func (s OrderStatus) Terminal() bool {
	return s == OrderExecuted || s == OrderCancelled
}

// ---------------------------------------------------------------------------
// Ledger records
// ---------------------------------------------------------------------------

// User is a registered account holding a cash balance. Registration and
// authentication happen outside this system; the ledger only tracks identity
// and cash.
type User struct {
	ID       int64
	Username string
	Cash     float64
}

// Position is the net signed share count a user holds in a symbol. A short
// position is negative. Zero-quantity positions are never stored — the row
// is removed instead.
type Position struct {
	UserID   int64
	Symbol   string
	Quantity int64
}

// Transaction is an immutable record of one executed trade, market or limit.
// Exactly one is appended per execution; transactions are never updated or
// deleted.
type Transaction struct {
	ID        int64
	UserID    int64
	Symbol    string
	Side      Side
	Quantity  int64
	Price     float64
	Timestamp time.Time
}

// LimitOrder is a standing instruction to buy or sell at or better than a
// target price. Created PENDING by the user; moved to EXECUTED by the order
// monitor or to CANCELLED by the user, never both.
type LimitOrder struct {
	ID          int64
	UserID      int64
	Symbol      string
	Side        Side
	TargetPrice float64
	Quantity    int64
	Status      OrderStatus
	CreatedAt   time.Time
}

// Triggered reports whether the order's price condition holds at the given
// market price. The comparison is inclusive: a BUY with target 100 fires at
// 100, a SELL with target 100 fires at 100.
func (o *LimitOrder) Triggered(price float64) bool {
	switch o.Side {
	case SideBuy:
		return price <= o.TargetPrice
	case SideSell:
		return price >= o.TargetPrice
	}
	return false
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Quote is a point-in-time view of a symbol's price relative to the previous
// close.
type Quote struct {
	Symbol        string
	Price         float64
	PrevClose     float64
	Change        float64
	ChangePercent float64
}

// Bar is a single OHLCV bar of daily history.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Headline is one news item for a symbol.
type Headline struct {
	Time   time.Time
	Source string
	Title  string
	URL    string
}

// ---------------------------------------------------------------------------
// Valuation
// ---------------------------------------------------------------------------

// Holding is one priced position inside a portfolio valuation. Price is 0
// when the symbol could not be priced (best-effort reporting).
type Holding struct {
	Symbol        string
	Quantity      int64
	Price         float64
	Value         float64
	ChangePercent float64
}

// Portfolio is the result of valuing a user's account: cash plus all
// holdings priced at current market.
type Portfolio struct {
	Cash     float64
	Holdings []Holding
	Total    float64
}
