// Package registry creates order-book markets and fixes their tick
// parameters. Once a market exists its parameters never change; everything
// downstream trusts them as immutable.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"lob/internal/book"
	"lob/internal/tick"
	"lob/internal/token"
)

var (
	ErrMarketNotFound = errors.New("registry: market not found")
	ErrPairExists     = errors.New("registry: pair already has a market")
	ErrTooManyMarkets = errors.New("registry: market id space exhausted")
	ErrSameToken      = errors.New("registry: base and quote must differ")
)

type Registry struct {
	mu      sync.RWMutex
	ledger  token.Ledger
	markets []*book.Market
}

func New(ledger token.Ledger) *Registry {
	return &Registry{ledger: ledger}
}

// CreateOrderBook registers a market for the pair and returns its id.
// Both assets must exist in the ledger; the tick exponents must cover the
// base asset's decimals so settlement stays integer-exact.
func (r *Registry) CreateOrderBook(token0, token1 string, sizeTickExp, priceTickExp uint8) (uint8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token0 == token1 {
		return 0, ErrSameToken
	}
	dec0, err := r.ledger.Decimals(token0)
	if err != nil {
		return 0, fmt.Errorf("base asset %q: %w", token0, err)
	}
	if _, err := r.ledger.Decimals(token1); err != nil {
		return 0, fmt.Errorf("quote asset %q: %w", token1, err)
	}
	// A reversed market would split the pair's liquidity across two books,
	// so both orientations claim the pair.
	for _, m := range r.markets {
		if (m.Token0 == token0 && m.Token1 == token1) ||
			(m.Token0 == token1 && m.Token1 == token0) {
			return 0, ErrPairExists
		}
	}
	if len(r.markets) > 255 {
		return 0, ErrTooManyMarkets
	}

	params, err := tick.NewParams(sizeTickExp, priceTickExp, dec0)
	if err != nil {
		return 0, err
	}

	id := uint8(len(r.markets))
	r.markets = append(r.markets, book.NewMarket(id, token0, token1, params))
	return id, nil
}

// Market returns the market for id, nil if it does not exist.
func (r *Registry) Market(id uint8) *book.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(id) >= len(r.markets) {
		return nil
	}
	return r.markets[id]
}

// All returns every registered market in creation order.
func (r *Registry) All() []*book.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*book.Market, len(r.markets))
	copy(out, r.markets)
	return out
}
