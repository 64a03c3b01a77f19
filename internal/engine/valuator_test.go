package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"papertrade/internal/domain"
	"papertrade/internal/ledger"
	"papertrade/internal/quote"
)

func TestValuatorValue(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()
	o := quote.NewStaticOracle()
	u, _ := l.CreateUser(ctx, "trader", 100000)

	o.Set("AAPL", 200)
	o.Set("TSLA", 250)
	if _, err := l.ApplyTrade(ctx, ledger.TradeMutation{
		UserID: u.ID, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 10, Price: 200,
	}); err != nil {
		t.Fatalf("buy AAPL: %v", err)
	}
	if _, err := l.ApplyTrade(ctx, ledger.TradeMutation{
		UserID: u.ID, Symbol: "TSLA", Side: domain.SideBuy, Quantity: 4, Price: 250,
	}); err != nil {
		t.Fatalf("buy TSLA: %v", err)
	}

	v := NewValuator(l, o)
	p, err := v.Value(ctx, u.ID)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	wantCash := 100000 - 10*200.0 - 4*250.0
	if p.Cash != wantCash {
		t.Errorf("Cash = %v, want %v", p.Cash, wantCash)
	}
	if len(p.Holdings) != 2 {
		t.Fatalf("len(Holdings) = %d, want 2", len(p.Holdings))
	}
	// Ordered by symbol.
	if p.Holdings[0].Symbol != "AAPL" || p.Holdings[1].Symbol != "TSLA" {
		t.Errorf("holding order = %s,%s, want AAPL,TSLA", p.Holdings[0].Symbol, p.Holdings[1].Symbol)
	}
	if p.Holdings[0].Value != 2000 || p.Holdings[1].Value != 1000 {
		t.Errorf("holding values = %v,%v, want 2000,1000", p.Holdings[0].Value, p.Holdings[1].Value)
	}
	wantTotal := wantCash + 2000 + 1000
	if math.Abs(p.Total-wantTotal) > 1e-9 {
		t.Errorf("Total = %v, want %v", p.Total, wantTotal)
	}
}

func TestValuatorUnpriceableHoldingIsZero(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()
	o := quote.NewStaticOracle()
	u, _ := l.CreateUser(ctx, "trader", 10000)

	o.Set("GONE", 50)
	if _, err := l.ApplyTrade(ctx, ledger.TradeMutation{
		UserID: u.ID, Symbol: "GONE", Side: domain.SideBuy, Quantity: 10, Price: 50,
	}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	o.Remove("GONE")

	p, err := NewValuator(l, o).Value(ctx, u.ID)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if len(p.Holdings) != 1 {
		t.Fatalf("len(Holdings) = %d, want 1", len(p.Holdings))
	}
	h := p.Holdings[0]
	if h.Quantity != 10 || h.Price != 0 || h.Value != 0 {
		t.Errorf("holding = %+v, want quantity 10 with zero price and value", h)
	}
	if p.Total != p.Cash {
		t.Errorf("Total = %v, want cash-only %v", p.Total, p.Cash)
	}
}

func TestValuatorShortPositionSubtracts(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()
	o := quote.NewStaticOracle()
	u, _ := l.CreateUser(ctx, "trader", 1000)

	o.Set("GME", 20)
	if _, err := l.ApplyTrade(ctx, ledger.TradeMutation{
		UserID: u.ID, Symbol: "GME", Side: domain.SideSell, Quantity: 5, Price: 20,
	}); err != nil {
		t.Fatalf("short sell: %v", err)
	}

	p, err := NewValuator(l, o).Value(ctx, u.ID)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if p.Holdings[0].Value != -100 {
		t.Errorf("short holding value = %v, want -100", p.Holdings[0].Value)
	}
	if p.Total != 1100-100 {
		t.Errorf("Total = %v, want 1000", p.Total)
	}
}

func TestValuatorUnknownUser(t *testing.T) {
	v := NewValuator(ledger.NewMemoryLedger(), quote.NewStaticOracle())
	if _, err := v.Value(context.Background(), 42); !errors.Is(err, ledger.ErrUserNotFound) {
		t.Errorf("Value error = %v, want ErrUserNotFound", err)
	}
}

func TestValuatorWatchlist(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()
	o := quote.NewStaticOracle()
	u, _ := l.CreateUser(ctx, "trader", 0)

	for _, s := range []string{"TSLA", "AAPL", "NOPE"} {
		if err := l.AddWatch(ctx, u.ID, s); err != nil {
			t.Fatalf("AddWatch(%s): %v", s, err)
		}
	}
	o.Set("AAPL", 200)
	o.Set("TSLA", 250)

	quotes, err := NewValuator(l, o).Watchlist(ctx, u.ID)
	if err != nil {
		t.Fatalf("Watchlist: %v", err)
	}
	// NOPE cannot be priced and is skipped; the rest come back sorted.
	if len(quotes) != 2 {
		t.Fatalf("len(quotes) = %d, want 2", len(quotes))
	}
	if quotes[0].Symbol != "AAPL" || quotes[1].Symbol != "TSLA" {
		t.Errorf("quote order = %s,%s, want AAPL,TSLA", quotes[0].Symbol, quotes[1].Symbol)
	}
}
