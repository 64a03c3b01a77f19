// Package archive exports transaction history to Parquet files on disk, one
// file per user and year. Exports are idempotent: records are merged with
// whatever is already on disk and deduplicated by transaction ID.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"papertrade/internal/domain"
)

// Archive writes and reads transaction Parquet files under a data directory.
type Archive struct {
	DataDir string
}

// New creates an Archive rooted at the given data directory.
func New(dataDir string) *Archive {
	return &Archive{DataDir: dataDir}
}

// Record is the Parquet schema for an archived transaction.
type Record struct {
	ID        int64   `parquet:"id"`
	UserID    int64   `parquet:"user_id"`
	Symbol    string  `parquet:"symbol"`
	Side      string  `parquet:"side"`
	Quantity  int64   `parquet:"quantity"`
	Price     float64 `parquet:"price"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
}

// WriteTransactions archives transactions grouped by user and year. Each
// group file is merged with its existing contents.
//
// Layout: <DataDir>/ledger/<userID>/<YYYY>.parquet
func (a *Archive) WriteTransactions(_ context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	type key struct {
		userID int64
		year   int
	}
	groups := make(map[key][]Record)
	for _, tx := range txs {
		k := key{userID: tx.UserID, year: tx.Timestamp.Year()}
		groups[k] = append(groups[k], Record{
			ID:        tx.ID,
			UserID:    tx.UserID,
			Symbol:    tx.Symbol,
			Side:      string(tx.Side),
			Quantity:  tx.Quantity,
			Price:     tx.Price,
			Timestamp: tx.Timestamp.UnixMilli(),
		})
	}

	for k, records := range groups {
		path := a.path(k.userID, k.year)

		existing, _ := readParquetFile[Record](path)
		merged := mergeRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("archiving transactions for user %d/%d: %w", k.userID, k.year, err)
		}
	}
	return nil
}

// ReadTransactions reads a user's archived transactions in the given time
// range, oldest first. Missing year files are skipped.
func (a *Archive) ReadTransactions(_ context.Context, userID int64, start, end time.Time) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readParquetFile[Record](a.path(userID, year))
		if err != nil {
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp)
			if ts.Before(start) || ts.After(end) {
				continue
			}
			txs = append(txs, domain.Transaction{
				ID:        r.ID,
				UserID:    r.UserID,
				Symbol:    r.Symbol,
				Side:      domain.Side(r.Side),
				Quantity:  r.Quantity,
				Price:     r.Price,
				Timestamp: ts,
			})
		}
	}
	return txs, nil
}

// path returns the Parquet file path for one user-year.
func (a *Archive) path(userID int64, year int) string {
	return filepath.Join(a.DataDir, "ledger", fmt.Sprintf("%d", userID), fmt.Sprintf("%d.parquet", year))
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeRecords deduplicates by transaction ID, preferring incoming records,
// and sorts by timestamp then ID.
func mergeRecords(existing, incoming []Record) []Record {
	seen := make(map[int64]Record, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.ID] = r
	}
	for _, r := range incoming {
		seen[r.ID] = r
	}

	merged := make([]Record, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
