package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"papertrade/internal/domain"
)

// Compile-time interface check.
var _ Ledger = (*SQLiteLedger)(nil)

// SQLiteLedger implements Ledger backed by a SQLite database.
//
// The connection pool is capped at one connection and transactions are
// opened immediate, so every ApplyTrade runs as a serialized write
// transaction — per-user ordering falls out of whole-database ordering.
type SQLiteLedger struct {
	db *sql.DB
}

// schema mirrors the ledger data model: users, positions, append-only
// transactions, limit orders, and watchlist. Timestamps are Unix ms.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT UNIQUE NOT NULL,
	cash     REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS positions (
	user_id  INTEGER NOT NULL,
	symbol   TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	PRIMARY KEY (user_id, symbol)
);

CREATE TABLE IF NOT EXISTS transactions (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id   INTEGER NOT NULL,
	symbol    TEXT NOT NULL,
	side      TEXT NOT NULL,
	quantity  INTEGER NOT NULL,
	price     REAL NOT NULL,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, timestamp);

CREATE TABLE IF NOT EXISTS limit_orders (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      INTEGER NOT NULL,
	symbol       TEXT NOT NULL,
	side         TEXT NOT NULL,
	target_price REAL NOT NULL,
	quantity     INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'PENDING',
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_limit_orders_status ON limit_orders(status);
CREATE INDEX IF NOT EXISTS idx_limit_orders_user ON limit_orders(user_id, created_at);

CREATE TABLE IF NOT EXISTS watchlist (
	user_id INTEGER NOT NULL,
	symbol  TEXT NOT NULL,
	PRIMARY KEY (user_id, symbol)
);
`

// NewSQLiteLedger opens (or creates) a SQLite database at dbPath and returns
// a ready-to-use ledger.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	dsn := "file:" + dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Close closes the underlying database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// ---------------------------------------------------------------------------
// UserStore implementation
// ---------------------------------------------------------------------------

// CreateUser inserts a new user with the given starting cash.
func (l *SQLiteLedger) CreateUser(ctx context.Context, username string, cash float64) (*domain.User, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO users (username, cash) VALUES (?, ?)`, username, cash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("creating user %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.User{ID: id, Username: username, Cash: cash}, nil
}

// GetUser retrieves a user by ID.
func (l *SQLiteLedger) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	var u domain.User
	err := l.db.QueryRowContext(ctx,
		`SELECT id, username, cash FROM users WHERE id = ?`, userID).
		Scan(&u.ID, &u.Username, &u.Cash)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateCash adjusts a user's cash balance by delta, rejecting overdrafts.
func (l *SQLiteLedger) UpdateCash(ctx context.Context, userID int64, delta float64) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var cash float64
	err = tx.QueryRowContext(ctx, `SELECT cash FROM users WHERE id = ?`, userID).Scan(&cash)
	if err == sql.ErrNoRows {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if cash+delta < 0 {
		return ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET cash = cash + ? WHERE id = ?`, delta, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// PositionStore implementation
// ---------------------------------------------------------------------------

// GetPosition retrieves the position for a symbol, or nil if none is held.
func (l *SQLiteLedger) GetPosition(ctx context.Context, userID int64, symbol string) (*domain.Position, error) {
	var p domain.Position
	err := l.db.QueryRowContext(ctx,
		`SELECT user_id, symbol, quantity FROM positions WHERE user_id = ? AND symbol = ?`,
		userID, symbol).
		Scan(&p.UserID, &p.Symbol, &p.Quantity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPositions returns all of a user's positions, ordered by symbol.
func (l *SQLiteLedger) ListPositions(ctx context.Context, userID int64) ([]domain.Position, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT user_id, symbol, quantity FROM positions WHERE user_id = ? ORDER BY symbol`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.UserID, &p.Symbol, &p.Quantity); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// UpsertPosition sets the position quantity, deleting the row at zero.
func (l *SQLiteLedger) UpsertPosition(ctx context.Context, userID int64, symbol string, quantity int64) error {
	if quantity == 0 {
		_, err := l.db.ExecContext(ctx,
			`DELETE FROM positions WHERE user_id = ? AND symbol = ?`, userID, symbol)
		return err
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO positions (user_id, symbol, quantity) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, symbol) DO UPDATE SET quantity = excluded.quantity`,
		userID, symbol, quantity)
	return err
}

// ---------------------------------------------------------------------------
// TransactionStore implementation
// ---------------------------------------------------------------------------

// AppendTransaction inserts a transaction record and fills in its ID.
func (l *SQLiteLedger) AppendTransaction(ctx context.Context, t *domain.Transaction) error {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, symbol, side, quantity, price, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Symbol, string(t.Side), t.Quantity, t.Price, t.Timestamp.UnixMilli())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// ListTransactions returns a user's transactions, most recent first.
func (l *SQLiteLedger) ListTransactions(ctx context.Context, userID int64) ([]domain.Transaction, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, user_id, symbol, side, quantity, price, timestamp
		 FROM transactions WHERE user_id = ? ORDER BY timestamp DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

// CreateLimitOrder inserts a new order and fills in its ID.
func (l *SQLiteLedger) CreateLimitOrder(ctx context.Context, o *domain.LimitOrder) error {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO limit_orders (user_id, symbol, side, target_price, quantity, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.UserID, o.Symbol, string(o.Side), o.TargetPrice, o.Quantity,
		string(o.Status), o.CreatedAt.UnixMilli())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = id
	return nil
}

// GetLimitOrder retrieves a single order by ID.
func (l *SQLiteLedger) GetLimitOrder(ctx context.Context, orderID int64) (*domain.LimitOrder, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, user_id, symbol, side, target_price, quantity, status, created_at
		 FROM limit_orders WHERE id = ?`, orderID)
	o, err := scanLimitOrder(row)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListLimitOrders returns a user's orders, most recent first.
func (l *SQLiteLedger) ListLimitOrders(ctx context.Context, userID int64) ([]domain.LimitOrder, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, user_id, symbol, side, target_price, quantity, status, created_at
		 FROM limit_orders WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLimitOrders(rows)
}

// ListPendingLimitOrders returns every PENDING order, oldest first.
func (l *SQLiteLedger) ListPendingLimitOrders(ctx context.Context) ([]domain.LimitOrder, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, user_id, symbol, side, target_price, quantity, status, created_at
		 FROM limit_orders WHERE status = ? ORDER BY created_at, id`,
		string(domain.OrderPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLimitOrders(rows)
}

// TryTransitionOrder atomically moves an order between statuses. It returns
// false when the current status does not match the expected one.
func (l *SQLiteLedger) TryTransitionOrder(ctx context.Context, orderID int64, from, to domain.OrderStatus) (bool, error) {
	res, err := l.db.ExecContext(ctx,
		`UPDATE limit_orders SET status = ? WHERE id = ? AND status = ?`,
		string(to), orderID, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ---------------------------------------------------------------------------
// WatchlistStore implementation
// ---------------------------------------------------------------------------

// AddWatch adds a symbol to the watchlist; duplicates are ignored.
func (l *SQLiteLedger) AddWatch(ctx context.Context, userID int64, symbol string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO watchlist (user_id, symbol) VALUES (?, ?)
		 ON CONFLICT(user_id, symbol) DO NOTHING`, userID, symbol)
	return err
}

// RemoveWatch removes a symbol from the watchlist.
func (l *SQLiteLedger) RemoveWatch(ctx context.Context, userID int64, symbol string) error {
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM watchlist WHERE user_id = ? AND symbol = ?`, userID, symbol)
	return err
}

// ListWatchlist returns the watched symbols, ordered by symbol.
func (l *SQLiteLedger) ListWatchlist(ctx context.Context, userID int64) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT symbol FROM watchlist WHERE user_id = ? ORDER BY symbol`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// ---------------------------------------------------------------------------
// Atomic trade primitive
// ---------------------------------------------------------------------------

// ApplyTrade applies one trade in a single write transaction. See the
// Ledger interface for the full contract.
func (l *SQLiteLedger) ApplyTrade(ctx context.Context, m TradeMutation) (*domain.Transaction, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// The order transition comes first: if the order is no longer PENDING,
	// the whole mutation is abandoned before any money moves.
	if m.OrderID != 0 {
		res, err := tx.ExecContext(ctx,
			`UPDATE limit_orders SET status = ? WHERE id = ? AND status = ?`,
			string(domain.OrderExecuted), m.OrderID, string(domain.OrderPending))
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrOrderNotPending
		}
	}

	var cash float64
	err = tx.QueryRowContext(ctx, `SELECT cash FROM users WHERE id = ?`, m.UserID).Scan(&cash)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	cost := m.Price * float64(m.Quantity)
	delta := cost
	qtyDelta := -m.Quantity
	if m.Side == domain.SideBuy {
		if cash < cost {
			return nil, ErrInsufficientFunds
		}
		delta = -cost
		qtyDelta = m.Quantity
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET cash = cash + ? WHERE id = ?`, delta, m.UserID); err != nil {
		return nil, err
	}

	var current int64
	held := true
	err = tx.QueryRowContext(ctx,
		`SELECT quantity FROM positions WHERE user_id = ? AND symbol = ?`,
		m.UserID, m.Symbol).Scan(&current)
	if err == sql.ErrNoRows {
		held = false
	} else if err != nil {
		return nil, err
	}

	newQty := current + qtyDelta
	switch {
	case newQty == 0 && held:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM positions WHERE user_id = ? AND symbol = ?`, m.UserID, m.Symbol)
	case held:
		_, err = tx.ExecContext(ctx,
			`UPDATE positions SET quantity = ? WHERE user_id = ? AND symbol = ?`,
			newQty, m.UserID, m.Symbol)
	default:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO positions (user_id, symbol, quantity) VALUES (?, ?, ?)`,
			m.UserID, m.Symbol, newQty)
	}
	if err != nil {
		return nil, err
	}

	record := &domain.Transaction{
		UserID:    m.UserID,
		Symbol:    m.Symbol,
		Side:      m.Side,
		Quantity:  m.Quantity,
		Price:     m.Price,
		Timestamp: time.Now(),
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, symbol, side, quantity, price, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.UserID, record.Symbol, string(record.Side), record.Quantity,
		record.Price, record.Timestamp.UnixMilli())
	if err != nil {
		return nil, err
	}
	if record.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return record, nil
}

// ---------------------------------------------------------------------------
// Scan helpers
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(r rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var side string
	var ts int64
	if err := r.Scan(&t.ID, &t.UserID, &t.Symbol, &side, &t.Quantity, &t.Price, &ts); err != nil {
		return nil, err
	}
	t.Side = domain.Side(side)
	t.Timestamp = time.UnixMilli(ts)
	return &t, nil
}

func scanLimitOrder(r rowScanner) (*domain.LimitOrder, error) {
	var o domain.LimitOrder
	var side, status string
	var created int64
	if err := r.Scan(&o.ID, &o.UserID, &o.Symbol, &side, &o.TargetPrice,
		&o.Quantity, &status, &created); err != nil {
		return nil, err
	}
	o.Side = domain.Side(side)
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = time.UnixMilli(created)
	return &o, nil
}

func collectLimitOrders(rows *sql.Rows) ([]domain.LimitOrder, error) {
	var orders []domain.LimitOrder
	for rows.Next() {
		o, err := scanLimitOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE")
}
