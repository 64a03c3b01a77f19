// Package quote provides price discovery: the Oracle interface over market
// data, an Alpaca-backed implementation, and a static in-memory oracle for
// simulation and tests.
package quote

import (
	"context"
	"errors"

	"papertrade/internal/domain"
)

// ErrPriceUnavailable indicates no price could be obtained for a symbol.
// Unknown symbols, upstream outages, and empty responses all collapse into
// this error: callers only need to know the symbol cannot be priced right
// now.
var ErrPriceUnavailable = errors.New("quote: price unavailable")

// Oracle answers price queries. Implementations must be safe for concurrent
// use.
type Oracle interface {
	// Price returns the current trade price for a symbol, or
	// ErrPriceUnavailable.
	Price(ctx context.Context, symbol string) (float64, error)

	// Quote returns the current price together with the previous close and
	// day change, or ErrPriceUnavailable.
	Quote(ctx context.Context, symbol string) (*domain.Quote, error)
}
