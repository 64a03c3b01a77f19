package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"papertrade/internal/domain"
	"papertrade/internal/ledger"
	"papertrade/internal/quote"
)

// Valuator prices portfolios and watchlists. Pricing is best-effort: a
// symbol that cannot be priced contributes zero value rather than failing
// the whole valuation.
type Valuator struct {
	ledger ledger.Ledger
	oracle quote.Oracle
	log    *slog.Logger
}

// NewValuator creates a valuator over the given ledger and oracle.
func NewValuator(l ledger.Ledger, o quote.Oracle) *Valuator {
	return &Valuator{
		ledger: l,
		oracle: o,
		log:    slog.Default().With("component", "valuator"),
	}
}

// Value prices every position concurrently and returns the portfolio with
// total = cash + sum(quantity * price). Holdings are ordered by symbol.
func (v *Valuator) Value(ctx context.Context, userID int64) (*domain.Portfolio, error) {
	user, err := v.ledger.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	positions, err := v.ledger.ListPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	holdings := make([]domain.Holding, len(positions))
	g, gctx := errgroup.WithContext(ctx)
	for i, pos := range positions {
		g.Go(func() error {
			h := domain.Holding{Symbol: pos.Symbol, Quantity: pos.Quantity}
			q, err := v.oracle.Quote(gctx, pos.Symbol)
			if err != nil {
				v.log.Warn("pricing holding failed",
					"user", userID, "symbol", pos.Symbol, "error", err)
			} else {
				h.Price = q.Price
				h.Value = float64(pos.Quantity) * q.Price
				h.ChangePercent = q.ChangePercent
			}
			holdings[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p := &domain.Portfolio{Cash: user.Cash, Holdings: holdings, Total: user.Cash}
	for _, h := range holdings {
		p.Total += h.Value
	}
	return p, nil
}

// Watchlist returns quotes for every symbol on the user's watchlist, ordered
// by symbol. Symbols that cannot be priced are skipped.
func (v *Valuator) Watchlist(ctx context.Context, userID int64) ([]domain.Quote, error) {
	symbols, err := v.ledger.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	quotes := make([]domain.Quote, 0, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		g.Go(func() error {
			q, err := v.oracle.Quote(gctx, symbol)
			if err != nil {
				v.log.Warn("pricing watched symbol failed",
					"user", userID, "symbol", symbol, "error", err)
				return nil
			}
			mu.Lock()
			quotes = append(quotes, *q)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Symbol < quotes[j].Symbol })
	return quotes, nil
}
