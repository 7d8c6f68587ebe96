package book

import (
	"lob/internal/tick"
)

// Market is the order book for a single token pair: one ask list, one bid
// list, and the registry of resting orders shared between them. It carries no
// lock of its own; the router serializes every operation that reaches it.
type Market struct {
	ID     uint8
	Token0 string
	Token1 string
	Ticks  tick.Params

	orders map[uint32]*Order
	asks   *sideList
	bids   *sideList
	nextID uint32
}

func NewMarket(id uint8, token0, token1 string, ticks tick.Params) *Market {
	arena := make(map[uint32]*Order)
	return &Market{
		ID:     id,
		Token0: token0,
		Token1: token1,
		Ticks:  ticks,
		orders: arena,
		asks:   newSideList(arena, true),
		bids:   newSideList(arena, false),
		nextID: FirstOrderID,
	}
}

func (m *Market) side(isAsk bool) *sideList {
	if isAsk {
		return m.asks
	}
	return m.bids
}

// NewOrder allocates the next order id. The order is not resting until
// Insert links it in.
func (m *Market) NewOrder(owner string, isAsk bool, amount0Base, priceBase uint64) *Order {
	o := &Order{
		ID:          m.nextID,
		Owner:       owner,
		IsAsk:       isAsk,
		PriceBase:   priceBase,
		Amount0Base: amount0Base,
	}
	m.nextID++
	return o
}

// Get returns a resting order by id, nil if it no longer exists.
func (m *Market) Get(id uint32) *Order {
	return m.orders[id]
}

// Insert rests o on its side's list using hintID as the claimed predecessor.
func (m *Market) Insert(o *Order, hintID uint32) {
	m.side(o.IsAsk).insert(o, hintID)
}

// Remove takes a resting order off its list and out of the registry as one
// step. Removing an id that is already gone is a no-op; a cancel racing a
// fill must not fail the caller.
func (m *Market) Remove(id uint32) *Order {
	o := m.orders[id]
	if o == nil {
		return nil
	}
	m.side(o.IsAsk).remove(o)
	delete(m.orders, id)
	return o
}

// crosses reports whether the resting order's price satisfies the incoming
// order's limit price.
func crosses(incoming, resting *Order) bool {
	if incoming.IsAsk {
		return resting.PriceBase >= incoming.PriceBase
	}
	return resting.PriceBase <= incoming.PriceBase
}

// Match crosses an incoming order against the opposite list, best price
// first, decrementing both sides until the incoming quantity is exhausted,
// the list runs out, or the crossing test fails. Fully consumed resting
// orders are removed. The caller decides what happens to any remainder:
// a limit order rests, a market order's remainder is dropped.
func (m *Market) Match(incoming *Order) []Fill {
	opposite := m.side(!incoming.IsAsk)

	var fills []Fill
	for incoming.Amount0Base > 0 {
		best := opposite.first()
		if best == nil || !crosses(incoming, best) {
			break
		}

		take := incoming.Amount0Base
		if best.Amount0Base < take {
			take = best.Amount0Base
		}
		incoming.Amount0Base -= take
		best.Amount0Base -= take

		fill := Fill{
			MakerOrderID: best.ID,
			Maker:        best.Owner,
			Amount0Base:  take,
			PriceBase:    best.PriceBase,
		}
		if best.Amount0Base == 0 {
			m.Remove(best.ID)
			fill.MakerDone = true
		}
		fills = append(fills, fill)
	}
	return fills
}

// Each walks one side's resting orders in priority order until fn returns
// false. The callback must not mutate the book.
func (m *Market) Each(isAsk bool, fn func(*Order) bool) {
	m.side(isAsk).each(fn)
}

// SuggestHint returns the id a caller should pass as the insertion hint for
// a new order at priceBase.
func (m *Market) SuggestHint(priceBase uint64, isAsk bool) uint32 {
	return m.side(isAsk).predecessorFor(priceBase)
}

// BestPrice returns the best resting price on one side.
func (m *Market) BestPrice(isAsk bool) (uint64, bool) {
	o := m.side(isAsk).first()
	if o == nil {
		return 0, false
	}
	return o.PriceBase, true
}

// Level is one aggregated price level of a depth snapshot.
type Level struct {
	PriceBase   uint64 `json:"price"`
	Amount0Base uint64 `json:"quantity"`
}

// Depth aggregates both sides by price level in priority order.
func (m *Market) Depth() (asks, bids []Level) {
	collect := func(l *sideList) []Level {
		var out []Level
		l.each(func(o *Order) bool {
			if n := len(out); n > 0 && out[n-1].PriceBase == o.PriceBase {
				out[n-1].Amount0Base += o.Amount0Base
				return true
			}
			out = append(out, Level{PriceBase: o.PriceBase, Amount0Base: o.Amount0Base})
			return true
		})
		return out
	}
	return collect(m.asks), collect(m.bids)
}

// RestingTotals sums remaining escrow-backed size per side in raw units:
// base asset over resting asks, quote asset over resting bids. The router's
// escrow balances must equal these after every operation.
func (m *Market) RestingTotals() (askAmount0, bidAmount1 uint64) {
	m.asks.each(func(o *Order) bool {
		askAmount0 += m.Ticks.Amount0(o.Amount0Base)
		return true
	})
	m.bids.each(func(o *Order) bool {
		bidAmount1 += m.Ticks.Amount1(o.Amount0Base, o.PriceBase)
		return true
	})
	return askAmount0, bidAmount1
}
