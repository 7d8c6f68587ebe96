package router

import (
	"lob/internal/book"
)

// OrdersView is the full resting order set of one market as parallel
// sequences: asks in priority order, then bids in priority order.
type OrdersView struct {
	IDs      []uint32 `json:"ids"`
	Owners   []string `json:"owners"`
	Amount0s []uint64 `json:"amount0s"`
	Amount1s []uint64 `json:"amount1s"`
	IsAsks   []bool   `json:"is_asks"`
}

// GetLimitOrders returns every resting order of a market.
func (r *Router) GetLimitOrders(marketID uint8) (OrdersView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.market(marketID)
	if err != nil {
		return OrdersView{}, err
	}

	var v OrdersView
	collect := func(o *book.Order) bool {
		v.IDs = append(v.IDs, o.ID)
		v.Owners = append(v.Owners, o.Owner)
		v.Amount0s = append(v.Amount0s, m.Ticks.Amount0(o.Amount0Base))
		v.Amount1s = append(v.Amount1s, m.Ticks.Amount1(o.Amount0Base, o.PriceBase))
		v.IsAsks = append(v.IsAsks, o.IsAsk)
		return true
	}
	m.Each(true, collect)
	m.Each(false, collect)
	return v, nil
}

// BooksView describes every registered market as parallel sequences.
type BooksView struct {
	IDs        []uint8  `json:"ids"`
	Token0s    []string `json:"token0s"`
	Token1s    []string `json:"token1s"`
	SizeTicks  []uint64 `json:"size_ticks"`
	PriceTicks []uint64 `json:"price_ticks"`
}

// AllOrderBooks lists every market and its tick parameters.
func (r *Router) AllOrderBooks() BooksView {
	var v BooksView
	for _, m := range r.registry.All() {
		v.IDs = append(v.IDs, m.ID)
		v.Token0s = append(v.Token0s, m.Token0)
		v.Token1s = append(v.Token1s, m.Token1)
		v.SizeTicks = append(v.SizeTicks, m.Ticks.SizeTick)
		v.PriceTicks = append(v.PriceTicks, m.Ticks.PriceTick)
	}
	return v
}

// SuggestHint returns the order id to pass as the insertion hint for a new
// order at priceBase; sentinel ids mean "front of the list".
func (r *Router) SuggestHint(marketID uint8, priceBase uint64, isAsk bool) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.market(marketID)
	if err != nil {
		return 0, err
	}
	return m.SuggestHint(priceBase, isAsk), nil
}

// Depth returns both sides of a market aggregated by price level.
func (r *Router) Depth(marketID uint8) (asks, bids []book.Level, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.market(marketID)
	if err != nil {
		return nil, nil, err
	}
	asks, bids = m.Depth()
	return asks, bids, nil
}
