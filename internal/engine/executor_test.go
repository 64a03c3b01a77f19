package engine

import (
	"context"
	"errors"
	"testing"

	"papertrade/internal/domain"
	"papertrade/internal/ledger"
	"papertrade/internal/quote"
)

func newTestExecutor(t *testing.T) (*Executor, ledger.Ledger, *quote.StaticOracle, *domain.User) {
	t.Helper()
	l := ledger.NewMemoryLedger()
	o := quote.NewStaticOracle()
	u, err := l.CreateUser(context.Background(), "trader", 10000)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return NewExecutor(l, o), l, o, u
}

func TestExecuteMarketBuy(t *testing.T) {
	ctx := context.Background()
	e, l, o, u := newTestExecutor(t)
	o.Set("AAPL", 200)

	tx, err := e.Execute(ctx, u.ID, "aapl", domain.SideBuy, 10)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if tx.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want normalized AAPL", tx.Symbol)
	}
	if tx.Price != 200 {
		t.Errorf("Price = %v, want 200", tx.Price)
	}

	user, _ := l.GetUser(ctx, u.ID)
	if user.Cash != 8000 {
		t.Errorf("Cash = %v, want 8000", user.Cash)
	}
}

func TestExecuteValidation(t *testing.T) {
	ctx := context.Background()
	e, _, o, u := newTestExecutor(t)
	o.Set("AAPL", 200)

	if _, err := e.Execute(ctx, u.ID, "AAPL", domain.SideBuy, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("zero quantity error = %v, want ErrInvalidQuantity", err)
	}
	if _, err := e.Execute(ctx, u.ID, "AAPL", domain.SideBuy, -5); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("negative quantity error = %v, want ErrInvalidQuantity", err)
	}
	if _, err := e.Execute(ctx, u.ID, "AAPL", domain.Side("HOLD"), 1); !errors.Is(err, ErrInvalidSide) {
		t.Errorf("bad side error = %v, want ErrInvalidSide", err)
	}
	if _, err := e.Execute(ctx, u.ID, "NOPE", domain.SideBuy, 1); !errors.Is(err, quote.ErrPriceUnavailable) {
		t.Errorf("unknown symbol error = %v, want ErrPriceUnavailable", err)
	}
}

func TestExecuteInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	e, l, o, u := newTestExecutor(t)
	o.Set("BRK", 5000)

	if _, err := e.Execute(ctx, u.ID, "BRK", domain.SideBuy, 3); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("Execute error = %v, want ErrInsufficientFunds", err)
	}
	user, _ := l.GetUser(ctx, u.ID)
	if user.Cash != 10000 {
		t.Errorf("Cash = %v, want 10000 (unchanged)", user.Cash)
	}
}

func TestFunds(t *testing.T) {
	ctx := context.Background()
	e, l, _, u := newTestExecutor(t)

	if err := e.AddFunds(ctx, u.ID, 500); err != nil {
		t.Fatalf("AddFunds: %v", err)
	}
	if err := e.WithdrawFunds(ctx, u.ID, 10500); err != nil {
		t.Fatalf("WithdrawFunds: %v", err)
	}
	user, _ := l.GetUser(ctx, u.ID)
	if user.Cash != 0 {
		t.Errorf("Cash = %v, want 0", user.Cash)
	}

	if err := e.WithdrawFunds(ctx, u.ID, 1); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("overdraw error = %v, want ErrInsufficientFunds", err)
	}
	if err := e.AddFunds(ctx, u.ID, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero deposit error = %v, want ErrInvalidAmount", err)
	}
	if err := e.WithdrawFunds(ctx, u.ID, -5); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative withdrawal error = %v, want ErrInvalidAmount", err)
	}
}

func TestPlaceLimitOrder(t *testing.T) {
	ctx := context.Background()
	e, l, _, u := newTestExecutor(t)

	o, err := e.PlaceLimitOrder(ctx, u.ID, "tsla", domain.SideBuy, 150, 5)
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}
	if o.ID == 0 || o.Status != domain.OrderPending || o.Symbol != "TSLA" {
		t.Errorf("order = %+v, want pending TSLA order with ID", o)
	}

	// Placement reserves nothing.
	user, _ := l.GetUser(ctx, u.ID)
	if user.Cash != 10000 {
		t.Errorf("Cash after placement = %v, want 10000", user.Cash)
	}

	if _, err := e.PlaceLimitOrder(ctx, u.ID, "TSLA", domain.SideBuy, 0, 5); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("zero target error = %v, want ErrInvalidPrice", err)
	}
	if _, err := e.PlaceLimitOrder(ctx, u.ID, "TSLA", domain.SideBuy, 150, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("zero quantity error = %v, want ErrInvalidQuantity", err)
	}
	if _, err := e.PlaceLimitOrder(ctx, u.ID, "TSLA", domain.Side("HOLD"), 150, 5); !errors.Is(err, ErrInvalidSide) {
		t.Errorf("bad side error = %v, want ErrInvalidSide", err)
	}
}

func TestCancelLimitOrder(t *testing.T) {
	ctx := context.Background()
	e, l, _, u := newTestExecutor(t)

	o, err := e.PlaceLimitOrder(ctx, u.ID, "MSFT", domain.SideSell, 400, 2)
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}

	if err := e.CancelLimitOrder(ctx, u.ID, o.ID); err != nil {
		t.Fatalf("CancelLimitOrder: %v", err)
	}
	got, _ := l.GetLimitOrder(ctx, o.ID)
	if got.Status != domain.OrderCancelled {
		t.Errorf("Status = %s, want CANCELLED", got.Status)
	}

	// Cancelling again: the order is already terminal.
	if err := e.CancelLimitOrder(ctx, u.ID, o.ID); !errors.Is(err, ledger.ErrOrderNotPending) {
		t.Errorf("second cancel error = %v, want ErrOrderNotPending", err)
	}

	// Another user's order looks like it does not exist.
	other, _ := l.CreateUser(ctx, "other", 0)
	o2, _ := e.PlaceLimitOrder(ctx, u.ID, "MSFT", domain.SideSell, 400, 2)
	if err := e.CancelLimitOrder(ctx, other.ID, o2.ID); !errors.Is(err, ledger.ErrOrderNotFound) {
		t.Errorf("cross-user cancel error = %v, want ErrOrderNotFound", err)
	}

	if err := e.CancelLimitOrder(ctx, u.ID, 999); !errors.Is(err, ledger.ErrOrderNotFound) {
		t.Errorf("missing order cancel error = %v, want ErrOrderNotFound", err)
	}
}
