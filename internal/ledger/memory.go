package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"papertrade/internal/domain"
)

// Compile-time interface check.
var _ Ledger = (*MemoryLedger)(nil)

// MemoryLedger implements Ledger in memory. It backs the simulator and the
// test suite, and doubles as the reference for the atomicity contract: each
// user has a dedicated mutex, so trades for one user are fully serialized
// while different users proceed independently.
type MemoryLedger struct {
	mu           sync.RWMutex
	users        map[int64]*domain.User
	usernames    map[string]int64
	positions    map[int64]map[string]int64 // userID → symbol → quantity
	transactions []domain.Transaction
	orders       map[int64]*domain.LimitOrder
	watch        map[int64]map[string]bool

	nextUserID  int64
	nextTxID    int64
	nextOrderID int64

	userMu map[int64]*sync.Mutex
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		users:     make(map[int64]*domain.User),
		usernames: make(map[string]int64),
		positions: make(map[int64]map[string]int64),
		orders:    make(map[int64]*domain.LimitOrder),
		watch:     make(map[int64]map[string]bool),
		userMu:    make(map[int64]*sync.Mutex),
	}
}

// Close is a no-op for the in-memory ledger.
func (l *MemoryLedger) Close() error { return nil }

// userLock returns the per-user mutex, creating it on first use.
func (l *MemoryLedger) userLock(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.userMu[userID]
	if !ok {
		mu = &sync.Mutex{}
		l.userMu[userID] = mu
	}
	return mu
}

// ---------------------------------------------------------------------------
// UserStore implementation
// ---------------------------------------------------------------------------

// CreateUser inserts a new user with the given starting cash.
func (l *MemoryLedger) CreateUser(_ context.Context, username string, cash float64) (*domain.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.usernames[username]; exists {
		return nil, ErrDuplicateUser
	}
	l.nextUserID++
	u := &domain.User{ID: l.nextUserID, Username: username, Cash: cash}
	l.users[u.ID] = u
	l.usernames[username] = u.ID
	return copyUser(u), nil
}

// GetUser retrieves a user by ID.
func (l *MemoryLedger) GetUser(_ context.Context, userID int64) (*domain.User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	u, ok := l.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

// UpdateCash adjusts a user's cash balance by delta, rejecting overdrafts.
func (l *MemoryLedger) UpdateCash(_ context.Context, userID int64, delta float64) error {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if u.Cash+delta < 0 {
		return ErrInsufficientFunds
	}
	u.Cash += delta
	return nil
}

// ---------------------------------------------------------------------------
// PositionStore implementation
// ---------------------------------------------------------------------------

// GetPosition retrieves the position for a symbol, or nil if none is held.
func (l *MemoryLedger) GetPosition(_ context.Context, userID int64, symbol string) (*domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	qty, ok := l.positions[userID][symbol]
	if !ok {
		return nil, nil
	}
	return &domain.Position{UserID: userID, Symbol: symbol, Quantity: qty}, nil
}

// ListPositions returns all of a user's positions, ordered by symbol.
func (l *MemoryLedger) ListPositions(_ context.Context, userID int64) ([]domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var positions []domain.Position
	for symbol, qty := range l.positions[userID] {
		positions = append(positions, domain.Position{UserID: userID, Symbol: symbol, Quantity: qty})
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions, nil
}

// UpsertPosition sets the position quantity, deleting the entry at zero.
func (l *MemoryLedger) UpsertPosition(_ context.Context, userID int64, symbol string, quantity int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setPositionLocked(userID, symbol, quantity)
	return nil
}

// setPositionLocked stores quantity for (user, symbol); zero deletes the
// entry. Caller must hold mu.
func (l *MemoryLedger) setPositionLocked(userID int64, symbol string, quantity int64) {
	if quantity == 0 {
		if m, ok := l.positions[userID]; ok {
			delete(m, symbol)
			if len(m) == 0 {
				delete(l.positions, userID)
			}
		}
		return
	}
	if l.positions[userID] == nil {
		l.positions[userID] = make(map[string]int64)
	}
	l.positions[userID][symbol] = quantity
}

// ---------------------------------------------------------------------------
// TransactionStore implementation
// ---------------------------------------------------------------------------

// AppendTransaction inserts a transaction record and fills in its ID.
func (l *MemoryLedger) AppendTransaction(_ context.Context, t *domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendTransactionLocked(t)
	return nil
}

// appendTransactionLocked assigns an ID and stores the record. Caller must
// hold mu.
func (l *MemoryLedger) appendTransactionLocked(t *domain.Transaction) {
	l.nextTxID++
	t.ID = l.nextTxID
	l.transactions = append(l.transactions, *t)
}

// ListTransactions returns a user's transactions, most recent first.
func (l *MemoryLedger) ListTransactions(_ context.Context, userID int64) ([]domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var txs []domain.Transaction
	for i := len(l.transactions) - 1; i >= 0; i-- {
		if l.transactions[i].UserID == userID {
			txs = append(txs, l.transactions[i])
		}
	}
	return txs, nil
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

// CreateLimitOrder inserts a new order and fills in its ID.
func (l *MemoryLedger) CreateLimitOrder(_ context.Context, o *domain.LimitOrder) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextOrderID++
	o.ID = l.nextOrderID
	stored := *o
	l.orders[o.ID] = &stored
	return nil
}

// GetLimitOrder retrieves a single order by ID.
func (l *MemoryLedger) GetLimitOrder(_ context.Context, orderID int64) (*domain.LimitOrder, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

// ListLimitOrders returns a user's orders, most recent first.
func (l *MemoryLedger) ListLimitOrders(_ context.Context, userID int64) ([]domain.LimitOrder, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var orders []domain.LimitOrder
	for _, o := range l.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// ListPendingLimitOrders returns every PENDING order, oldest first.
func (l *MemoryLedger) ListPendingLimitOrders(_ context.Context) ([]domain.LimitOrder, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var orders []domain.LimitOrder
	for _, o := range l.orders {
		if o.Status == domain.OrderPending {
			orders = append(orders, *o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

// TryTransitionOrder atomically moves an order between statuses.
func (l *MemoryLedger) TryTransitionOrder(_ context.Context, orderID int64, from, to domain.OrderStatus) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transitionOrderLocked(orderID, from, to), nil
}

// transitionOrderLocked performs the check-and-set. Caller must hold mu.
func (l *MemoryLedger) transitionOrderLocked(orderID int64, from, to domain.OrderStatus) bool {
	o, ok := l.orders[orderID]
	if !ok || o.Status != from {
		return false
	}
	o.Status = to
	return true
}

// ---------------------------------------------------------------------------
// WatchlistStore implementation
// ---------------------------------------------------------------------------

// AddWatch adds a symbol to the watchlist; duplicates are ignored.
func (l *MemoryLedger) AddWatch(_ context.Context, userID int64, symbol string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watch[userID] == nil {
		l.watch[userID] = make(map[string]bool)
	}
	l.watch[userID][symbol] = true
	return nil
}

// RemoveWatch removes a symbol from the watchlist.
func (l *MemoryLedger) RemoveWatch(_ context.Context, userID int64, symbol string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.watch[userID], symbol)
	return nil
}

// ListWatchlist returns the watched symbols, ordered by symbol.
func (l *MemoryLedger) ListWatchlist(_ context.Context, userID int64) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var symbols []string
	for s := range l.watch[userID] {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// Atomic trade primitive
// ---------------------------------------------------------------------------

// ApplyTrade applies one trade under the user's mutex. See the Ledger
// interface for the full contract.
func (l *MemoryLedger) ApplyTrade(_ context.Context, m TradeMutation) (*domain.Transaction, error) {
	lock := l.userLock(m.UserID)
	lock.Lock()
	defer lock.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Order transition first: a non-pending order aborts the mutation
	// before any state changes.
	if m.OrderID != 0 {
		if !l.transitionOrderLocked(m.OrderID, domain.OrderPending, domain.OrderExecuted) {
			return nil, ErrOrderNotPending
		}
	}

	u, ok := l.users[m.UserID]
	if !ok {
		// Roll the order transition back; nothing else has changed.
		if m.OrderID != 0 {
			l.transitionOrderLocked(m.OrderID, domain.OrderExecuted, domain.OrderPending)
		}
		return nil, ErrUserNotFound
	}

	cost := m.Price * float64(m.Quantity)
	delta := cost
	qtyDelta := -m.Quantity
	if m.Side == domain.SideBuy {
		if u.Cash < cost {
			if m.OrderID != 0 {
				l.transitionOrderLocked(m.OrderID, domain.OrderExecuted, domain.OrderPending)
			}
			return nil, ErrInsufficientFunds
		}
		delta = -cost
		qtyDelta = m.Quantity
	}

	u.Cash += delta
	l.setPositionLocked(m.UserID, m.Symbol, l.positions[m.UserID][m.Symbol]+qtyDelta)

	record := &domain.Transaction{
		UserID:    m.UserID,
		Symbol:    m.Symbol,
		Side:      m.Side,
		Quantity:  m.Quantity,
		Price:     m.Price,
		Timestamp: time.Now(),
	}
	l.appendTransactionLocked(record)
	return record, nil
}

func copyUser(u *domain.User) *domain.User {
	cp := *u
	return &cp
}
