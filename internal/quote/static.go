package quote

import (
	"context"
	"fmt"
	"sync"

	"papertrade/internal/domain"
)

var _ Oracle = (*StaticOracle)(nil)

// StaticOracle serves prices from an in-memory table. It backs simulations
// and tests where market data must be deterministic.
type StaticOracle struct {
	mu        sync.RWMutex
	prices    map[string]float64
	prevClose map[string]float64
}

// NewStaticOracle creates an empty static oracle.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{
		prices:    make(map[string]float64),
		prevClose: make(map[string]float64),
	}
}

// Set sets the current price for a symbol.
func (o *StaticOracle) Set(symbol string, price float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[symbol] = price
}

// SetPrevClose sets the previous close for a symbol, used by Quote to derive
// the day change.
func (o *StaticOracle) SetPrevClose(symbol string, price float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prevClose[symbol] = price
}

// Remove deletes a symbol so subsequent lookups fail with
// ErrPriceUnavailable.
func (o *StaticOracle) Remove(symbol string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.prices, symbol)
	delete(o.prevClose, symbol)
}

// Price returns the stored price for a symbol.
func (o *StaticOracle) Price(_ context.Context, symbol string) (float64, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	return p, nil
}

// Quote returns the stored price with day change derived from the stored
// previous close, when one is set.
func (o *StaticOracle) Quote(_ context.Context, symbol string) (*domain.Quote, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	q := &domain.Quote{Symbol: symbol, Price: p}
	if prev, ok := o.prevClose[symbol]; ok && prev > 0 {
		q.PrevClose = prev
		q.Change = p - prev
		q.ChangePercent = q.Change / prev * 100
	}
	return q, nil
}
