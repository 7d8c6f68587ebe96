// Package router is the lifecycle surface of the exchange: it validates and
// escrows every incoming order, hands it to the market's matching walk, and
// settles the resulting fills. Custody never drifts: after every operation
// the escrow account of a market holds exactly the base asset backing its
// resting asks and the quote asset backing its resting bids.
package router

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"lob/internal/book"
	"lob/internal/registry"
	"lob/internal/token"
)

var (
	ErrMarketNotFound = errors.New("router: market not found")
	ErrNotOwner       = errors.New("router: caller does not own the order")
	ErrInvalidSize    = errors.New("router: size does not resolve to a whole tick")
	ErrInvalidPrice   = errors.New("router: price does not resolve to a whole tick")
	ErrAmountOverflow = errors.New("router: order value exceeds uint64 range")
	ErrBatchMismatch  = errors.New("router: batch market and order id lengths differ")
)

// Fill is one settled match, in raw token units, as reported to observers.
type Fill struct {
	ID           string `json:"id"`
	MarketID     uint8  `json:"market_id"`
	MakerOrderID uint32 `json:"maker_order_id"`
	TakerOrderID uint32 `json:"taker_order_id"`
	Maker        string `json:"maker"`
	Taker        string `json:"taker"`
	TakerIsAsk   bool   `json:"taker_is_ask"`
	Amount0      uint64 `json:"amount0"`
	Amount1      uint64 `json:"amount1"`
	PriceBase    uint64 `json:"price"`
}

// Router owns escrow movement and serializes every operation that touches a
// book. One mutex for all markets models a host environment where calls
// never interleave.
type Router struct {
	mu       sync.Mutex
	registry *registry.Registry
	ledger   token.Ledger
	onFill   []func(Fill)
}

func New(reg *registry.Registry, ledger token.Ledger) *Router {
	return &Router{registry: reg, ledger: ledger}
}

// OnFill registers a callback invoked for every settled fill. Callbacks run
// inside the operation; keep them cheap.
func (r *Router) OnFill(fn func(Fill)) {
	r.onFill = append(r.onFill, fn)
}

// EscrowAccount names the ledger account custodying a market's resting
// orders.
func EscrowAccount(marketID uint8) string {
	return fmt.Sprintf("escrow:%d", marketID)
}

func (r *Router) market(marketID uint8) (*book.Market, error) {
	m := r.registry.Market(marketID)
	if m == nil {
		return nil, ErrMarketNotFound
	}
	return m, nil
}

// checkAmounts rejects an order whose raw conversions would wrap. Both
// products are checked regardless of side: a fill against the order later
// computes the opposite-asset amount at this order's price, so an order that
// passes here can always be settled.
func checkAmounts(m *book.Market, amount0Base, priceBase uint64) error {
	if _, ok := m.Ticks.Amount0Checked(amount0Base); !ok {
		return ErrAmountOverflow
	}
	if _, ok := m.Ticks.Amount1Checked(amount0Base, priceBase); !ok {
		return ErrAmountOverflow
	}
	return nil
}

// CreateLimitOrder escrows the order's full value, crosses it against the
// opposite side, and rests any remainder at the hinted position. The
// returned id identifies the resting remainder; a fully filled order's id is
// already retired by the time it is returned.
func (r *Router) CreateLimitOrder(owner string, marketID uint8, amount0Base, priceBase uint64, isAsk bool, hintID uint32) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLimitOrder(owner, marketID, amount0Base, priceBase, isAsk, hintID)
}

func (r *Router) createLimitOrder(owner string, marketID uint8, amount0Base, priceBase uint64, isAsk bool, hintID uint32) (uint32, error) {
	m, err := r.market(marketID)
	if err != nil {
		return 0, err
	}
	if amount0Base == 0 {
		return 0, ErrInvalidSize
	}
	if priceBase == 0 {
		return 0, ErrInvalidPrice
	}
	if err := checkAmounts(m, amount0Base, priceBase); err != nil {
		return 0, err
	}

	// Pulling escrow is the only step that can fail; nothing is mutated
	// until it has succeeded.
	if err := r.escrow(m, owner, isAsk, amount0Base, priceBase); err != nil {
		return 0, err
	}

	o := m.NewOrder(owner, isAsk, amount0Base, priceBase)
	fills := m.Match(o)
	if err := r.settle(m, o, fills); err != nil {
		return 0, err
	}
	if o.Amount0Base > 0 {
		m.Insert(o, hintID)
	}
	return o.ID, nil
}

// CreateMarketOrder crosses immediately against the book and never rests.
// priceBase bounds the worst acceptable price; escrow is taken for the
// maximum possible consumption and the unconsumed part refunded once the
// walk resolves the actual fill. Returns the raw amounts traded.
func (r *Router) CreateMarketOrder(owner string, marketID uint8, amount0Base, priceBase uint64, isAsk bool) (filled0, filled1 uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createMarketOrder(owner, marketID, amount0Base, priceBase, isAsk)
}

func (r *Router) createMarketOrder(owner string, marketID uint8, amount0Base, priceBase uint64, isAsk bool) (filled0, filled1 uint64, err error) {
	m, err := r.market(marketID)
	if err != nil {
		return 0, 0, err
	}
	if amount0Base == 0 {
		return 0, 0, ErrInvalidSize
	}
	if priceBase == 0 {
		return 0, 0, ErrInvalidPrice
	}
	if err := checkAmounts(m, amount0Base, priceBase); err != nil {
		return 0, 0, err
	}

	if err := r.escrow(m, owner, isAsk, amount0Base, priceBase); err != nil {
		return 0, 0, err
	}

	o := m.NewOrder(owner, isAsk, amount0Base, priceBase)
	fills := m.Match(o)
	if err := r.settle(m, o, fills); err != nil {
		return 0, 0, err
	}

	// The unmatched remainder is dropped, not rested: hand its escrow back.
	if o.Amount0Base > 0 {
		esc := EscrowAccount(m.ID)
		if o.IsAsk {
			err = r.ledger.Transfer(esc, owner, m.Token0, m.Ticks.Amount0(o.Amount0Base))
		} else {
			err = r.ledger.Transfer(esc, owner, m.Token1, m.Ticks.Amount1(o.Amount0Base, o.PriceBase))
		}
		if err != nil {
			return 0, 0, fmt.Errorf("refund market order remainder: %w", err)
		}
	}

	for _, f := range fills {
		filled0 += m.Ticks.Amount0(f.Amount0Base)
		filled1 += m.Ticks.Amount1(f.Amount0Base, f.PriceBase)
	}
	return filled0, filled1, nil
}

// UpdateLimitOrder is cancel-then-recreate: the old order leaves the book,
// a new order with a fresh id is escrowed, matched, and rested. Callers must
// look the new id up from the return value; the old id is gone. Updating an
// order that no longer exists fails the ownership check, since no owner
// matches.
func (r *Router) UpdateLimitOrder(owner string, marketID uint8, orderID uint32, newAmount0Base, newPriceBase uint64, hintID uint32) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.market(marketID)
	if err != nil {
		return 0, err
	}
	o := m.Get(orderID)
	if o == nil || o.Owner != owner {
		return 0, ErrNotOwner
	}
	if newAmount0Base == 0 {
		return 0, ErrInvalidSize
	}
	if newPriceBase == 0 {
		return 0, ErrInvalidPrice
	}
	if err := checkAmounts(m, newAmount0Base, newPriceBase); err != nil {
		return 0, err
	}

	// The whole update must be all-or-nothing, so prove the new escrow is
	// coverable (old refund included) before touching the book.
	asset, refund := r.escrowHeld(m, o)
	var need uint64
	if o.IsAsk {
		need = m.Ticks.Amount0(newAmount0Base)
	} else {
		need = m.Ticks.Amount1(newAmount0Base, newPriceBase)
	}
	if need > refund+r.ledger.BalanceOf(owner, asset) {
		return 0, fmt.Errorf("update order %d: %w", orderID, token.ErrInsufficientBalance)
	}

	if err := r.cancel(m, o); err != nil {
		return 0, err
	}
	return r.createLimitOrder(owner, marketID, newAmount0Base, newPriceBase, o.IsAsk, hintID)
}

// CancelLimitOrder removes a resting order and refunds its remaining escrow.
// A missing id is success: the order was already filled or canceled, and a
// cancel chasing a fill must not fail.
func (r *Router) CancelLimitOrder(owner string, marketID uint8, orderID uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.market(marketID)
	if err != nil {
		return err
	}
	o := m.Get(orderID)
	if o == nil {
		return nil
	}
	if o.Owner != owner {
		return ErrNotOwner
	}
	return r.cancel(m, o)
}

// CancelLimitOrderBatch cancels several orders across markets. Ownership is
// verified for the whole batch before anything is removed, so a single
// foreign order aborts the batch with no effect; missing ids are skipped.
func (r *Router) CancelLimitOrderBatch(owner string, marketIDs []uint8, orderIDs []uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(marketIDs) != len(orderIDs) {
		return ErrBatchMismatch
	}
	for i := range orderIDs {
		m, err := r.market(marketIDs[i])
		if err != nil {
			return err
		}
		if o := m.Get(orderIDs[i]); o != nil && o.Owner != owner {
			return ErrNotOwner
		}
	}
	for i := range orderIDs {
		m, _ := r.market(marketIDs[i])
		if o := m.Get(orderIDs[i]); o != nil {
			if err := r.cancel(m, o); err != nil {
				return err
			}
		}
	}
	return nil
}

// escrow pulls the order's full value from the owner into the market's
// escrow account: the base asset for an ask, the quote asset at the order's
// own price for a bid.
func (r *Router) escrow(m *book.Market, owner string, isAsk bool, amount0Base, priceBase uint64) error {
	esc := EscrowAccount(m.ID)
	var err error
	if isAsk {
		err = r.ledger.Transfer(owner, esc, m.Token0, m.Ticks.Amount0(amount0Base))
	} else {
		err = r.ledger.Transfer(owner, esc, m.Token1, m.Ticks.Amount1(amount0Base, priceBase))
	}
	if err != nil {
		return fmt.Errorf("escrow: %w", err)
	}
	return nil
}

// escrowHeld reports the asset and raw amount currently escrowed for a
// resting order.
func (r *Router) escrowHeld(m *book.Market, o *book.Order) (asset string, amount uint64) {
	if o.IsAsk {
		return m.Token0, m.Ticks.Amount0(o.Amount0Base)
	}
	return m.Token1, m.Ticks.Amount1(o.Amount0Base, o.PriceBase)
}

// cancel removes o from the book and returns its remaining escrow.
func (r *Router) cancel(m *book.Market, o *book.Order) error {
	asset, amount := r.escrowHeld(m, o)
	m.Remove(o.ID)
	if err := r.ledger.Transfer(EscrowAccount(m.ID), o.Owner, asset, amount); err != nil {
		return fmt.Errorf("refund canceled order %d: %w", o.ID, err)
	}
	return nil
}

// settle releases escrow for every fill at the maker's price. An incoming
// bid that fills below its own price gets the difference back immediately,
// which keeps bid-side escrow exactly amount1-at-own-price over resting
// orders.
func (r *Router) settle(m *book.Market, taker *book.Order, fills []book.Fill) error {
	esc := EscrowAccount(m.ID)
	for _, f := range fills {
		amount0 := m.Ticks.Amount0(f.Amount0Base)
		amount1 := m.Ticks.Amount1(f.Amount0Base, f.PriceBase)

		if taker.IsAsk {
			// Maker bid paid its escrowed quote; taker hands over base.
			if err := r.ledger.Transfer(esc, f.Maker, m.Token0, amount0); err != nil {
				return fmt.Errorf("settle maker: %w", err)
			}
			if err := r.ledger.Transfer(esc, taker.Owner, m.Token1, amount1); err != nil {
				return fmt.Errorf("settle taker: %w", err)
			}
		} else {
			if err := r.ledger.Transfer(esc, f.Maker, m.Token1, amount1); err != nil {
				return fmt.Errorf("settle maker: %w", err)
			}
			if err := r.ledger.Transfer(esc, taker.Owner, m.Token0, amount0); err != nil {
				return fmt.Errorf("settle taker: %w", err)
			}
			if taker.PriceBase > f.PriceBase {
				improvement := m.Ticks.Amount1(f.Amount0Base, taker.PriceBase-f.PriceBase)
				if err := r.ledger.Transfer(esc, taker.Owner, m.Token1, improvement); err != nil {
					return fmt.Errorf("refund price improvement: %w", err)
				}
			}
		}

		r.emit(m, taker, f, amount0, amount1)
	}
	return nil
}

func (r *Router) emit(m *book.Market, taker *book.Order, f book.Fill, amount0, amount1 uint64) {
	if len(r.onFill) == 0 {
		return
	}
	fill := Fill{
		ID:           uuid.New().String(),
		MarketID:     m.ID,
		MakerOrderID: f.MakerOrderID,
		TakerOrderID: taker.ID,
		Maker:        f.Maker,
		Taker:        taker.Owner,
		TakerIsAsk:   taker.IsAsk,
		Amount0:      amount0,
		Amount1:      amount1,
		PriceBase:    f.PriceBase,
	}
	for _, fn := range r.onFill {
		fn(fill)
	}
}
