package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"papertrade/internal/domain"
)

func tx(id, userID int64, symbol string, side domain.Side, qty int64, price float64, ts time.Time) domain.Transaction {
	return domain.Transaction{
		ID: id, UserID: userID, Symbol: symbol, Side: side,
		Quantity: qty, Price: price, Timestamp: ts,
	}
}

func TestWriteTransactionsLayout(t *testing.T) {
	ctx := context.Background()
	a := New(t.TempDir())

	jan := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	dec := time.Date(2025, 12, 31, 10, 0, 0, 0, time.UTC)
	err := a.WriteTransactions(ctx, []domain.Transaction{
		tx(1, 7, "AAPL", domain.SideBuy, 10, 200, jan),
		tx(2, 7, "AAPL", domain.SideSell, 5, 210, dec),
		tx(3, 9, "TSLA", domain.SideBuy, 1, 250, jan),
	})
	if err != nil {
		t.Fatalf("WriteTransactions: %v", err)
	}

	for _, want := range []string{
		filepath.Join("ledger", "7", "2026.parquet"),
		filepath.Join("ledger", "7", "2025.parquet"),
		filepath.Join("ledger", "9", "2026.parquet"),
	} {
		if _, err := os.Stat(filepath.Join(a.DataDir, want)); err != nil {
			t.Errorf("expected file %s: %v", want, err)
		}
	}
}

func TestWriteReadRoundTripAndMerge(t *testing.T) {
	ctx := context.Background()
	a := New(t.TempDir())

	base := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	first := []domain.Transaction{
		tx(1, 7, "AAPL", domain.SideBuy, 10, 200, base),
		tx(2, 7, "AAPL", domain.SideSell, 5, 210, base.Add(time.Hour)),
	}
	if err := a.WriteTransactions(ctx, first); err != nil {
		t.Fatalf("first write: %v", err)
	}

	// Re-archiving an overlapping batch must not duplicate ID 2.
	second := []domain.Transaction{
		tx(2, 7, "AAPL", domain.SideSell, 5, 210, base.Add(time.Hour)),
		tx(3, 7, "TSLA", domain.SideBuy, 2, 250, base.Add(2 * time.Hour)),
	}
	if err := a.WriteTransactions(ctx, second); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := a.ReadTransactions(ctx, 7, base.Add(-time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("ReadTransactions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 deduplicated records", len(got))
	}
	// Oldest first.
	for i, wantID := range []int64{1, 2, 3} {
		if got[i].ID != wantID {
			t.Errorf("got[%d].ID = %d, want %d", i, got[i].ID, wantID)
		}
	}
	if got[2].Symbol != "TSLA" || got[2].Side != domain.SideBuy || got[2].Price != 250 {
		t.Errorf("got[2] = %+v, want the TSLA buy", got[2])
	}
}

func TestReadTransactionsWindowAndMissingYears(t *testing.T) {
	ctx := context.Background()
	a := New(t.TempDir())

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := a.WriteTransactions(ctx, []domain.Transaction{
		tx(1, 7, "AAPL", domain.SideBuy, 1, 100, base),
		tx(2, 7, "AAPL", domain.SideBuy, 1, 100, base.AddDate(0, 1, 0)),
	}); err != nil {
		t.Fatalf("WriteTransactions: %v", err)
	}

	// Window covering years with no files must not fail.
	got, err := a.ReadTransactions(ctx, 7, base.AddDate(-2, 0, 0), base.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ReadTransactions: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("got = %+v, want only transaction 1 inside the window", got)
	}

	// Unknown user reads as empty.
	got, err = a.ReadTransactions(ctx, 42, base, base.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("ReadTransactions(42): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0 for unknown user", len(got))
	}
}
