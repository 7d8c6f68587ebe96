// Package quote prices swaps against the resting book and executes them as
// market orders. Quotes are read-only walks: they never move funds and never
// fail on a thin book, they just report how much of the request the book can
// absorb after truncating to whole size ticks.
package quote

import (
	"errors"

	"lob/internal/book"
	"lob/internal/registry"
	"lob/internal/router"
)

var (
	ErrMarketNotFound        = errors.New("quote: market not found")
	ErrInvalidAmount         = errors.New("quote: amount must be positive")
	ErrSlippage              = errors.New("quote: bound violated")
	ErrInsufficientLiquidity = errors.New("quote: book cannot fill the requested output")
)

// Helper quotes and executes swaps. All amounts cross its API in raw token
// units; tick conversion is internal. isAsk follows the book's convention:
// true sells the base asset, false buys it.
type Helper struct {
	registry *registry.Registry
	router   *router.Router
}

func NewHelper(reg *registry.Registry, r *router.Router) *Helper {
	return &Helper{registry: reg, router: r}
}

// result of one pricing walk, in both tick and raw units.
type result struct {
	ticks      uint64 // base size ticks consumed from the book
	input      uint64 // raw units the swapper pays
	output     uint64 // raw units the swapper receives
	worstPrice uint64 // tick price of the last level touched
}

func (h *Helper) market(marketID uint8) (*book.Market, error) {
	m := h.registry.Market(marketID)
	if m == nil {
		return nil, ErrMarketNotFound
	}
	return m, nil
}

// QuoteExactInput prices spending up to exactInput of the sell-side asset.
// It returns the input the book can actually absorb and the output that buys.
// Input beyond the last whole tick, or beyond the book's liquidity, is simply
// not counted.
func (h *Helper) QuoteExactInput(marketID uint8, isAsk bool, exactInput uint64) (usedInput, output uint64, err error) {
	m, err := h.market(marketID)
	if err != nil {
		return 0, 0, err
	}
	if exactInput == 0 {
		return 0, 0, ErrInvalidAmount
	}
	res := h.quoteInput(m, isAsk, exactInput)
	return res.input, res.output, nil
}

// QuoteExactOutput prices receiving up to exactOutput of the buy-side asset.
// The realized output is truncated down to whole ticks and capped by the
// book, so it can fall short of the request; callers wanting a hard floor use
// SwapExactOutput.
func (h *Helper) QuoteExactOutput(marketID uint8, isAsk bool, exactOutput uint64) (input, realizedOutput uint64, err error) {
	m, err := h.market(marketID)
	if err != nil {
		return 0, 0, err
	}
	if exactOutput == 0 {
		return 0, 0, ErrInvalidAmount
	}
	res := h.quoteOutput(m, isAsk, exactOutput)
	return res.input, res.output, nil
}

// SwapExactInput spends up to exactInput and fails with ErrSlippage if the
// resulting output would undercut minOutput. An input too small to buy even
// one tick, or a side with nothing resting, fails with router.ErrInvalidSize
// rather than settling to nothing. The trade executes as a market order sized
// to the quote.
func (h *Helper) SwapExactInput(owner string, marketID uint8, isAsk bool, exactInput, minOutput uint64) (input, output uint64, err error) {
	m, err := h.market(marketID)
	if err != nil {
		return 0, 0, err
	}
	if exactInput == 0 {
		return 0, 0, ErrInvalidAmount
	}
	res := h.quoteInput(m, isAsk, exactInput)
	if res.ticks == 0 {
		return 0, 0, router.ErrInvalidSize
	}
	if res.output < minOutput {
		return 0, 0, ErrSlippage
	}
	return h.execute(m, owner, isAsk, res)
}

// SwapExactOutput buys exactly exactOutput, failing with
// ErrInsufficientLiquidity if the book cannot produce it whole and with
// ErrSlippage if doing so would cost more than maxInput.
//
// The underlying market order escrows the full size at the worst price the
// quote touched and refunds the price improvement as it settles, so the
// caller transiently needs that worst-case amount of the input asset even
// when the realized cost is lower.
func (h *Helper) SwapExactOutput(owner string, marketID uint8, isAsk bool, exactOutput, maxInput uint64) (input, output uint64, err error) {
	m, err := h.market(marketID)
	if err != nil {
		return 0, 0, err
	}
	if exactOutput == 0 {
		return 0, 0, ErrInvalidAmount
	}
	res := h.quoteOutput(m, isAsk, exactOutput)
	if res.output < exactOutput {
		return 0, 0, ErrInsufficientLiquidity
	}
	if res.input > maxInput {
		return 0, 0, ErrSlippage
	}
	return h.execute(m, owner, isAsk, res)
}

// quoteInput walks the opposite side best price first, converting the raw
// input budget to whole ticks at each level.
func (h *Helper) quoteInput(m *book.Market, isAsk bool, exactInput uint64) result {
	var res result
	if isAsk {
		// Selling base against the bids: the budget is base units, so
		// truncate it to ticks once up front.
		rem := m.Ticks.BaseFromAmount0(exactInput)
		m.Each(false, func(o *book.Order) bool {
			if rem == 0 {
				return false
			}
			take := o.Amount0Base
			if rem < take {
				take = rem
			}
			rem -= take
			res.add(m, take, o.PriceBase, false)
			return true
		})
		return res
	}

	// Buying base against the asks: at each level the remaining quote
	// budget affords a whole number of ticks; a level it cannot afford even
	// one tick of ends the walk.
	rem := exactInput
	m.Each(true, func(o *book.Order) bool {
		take := o.Amount0Base
		if afford := m.Ticks.BaseFromAmount1(rem, o.PriceBase); afford < take {
			take = afford
		}
		if take == 0 {
			return false
		}
		rem -= m.Ticks.Amount1(take, o.PriceBase)
		res.add(m, take, o.PriceBase, true)
		return true
	})
	return res
}

func (h *Helper) quoteOutput(m *book.Market, isAsk bool, exactOutput uint64) result {
	var res result
	if isAsk {
		// Selling base for an exact quote output: at each bid, the number
		// of ticks worth selling is the remaining output truncated at that
		// bid's price.
		rem := exactOutput
		m.Each(false, func(o *book.Order) bool {
			take := o.Amount0Base
			if want := m.Ticks.BaseFromAmount1(rem, o.PriceBase); want < take {
				take = want
			}
			if take == 0 {
				return false
			}
			rem -= m.Ticks.Amount1(take, o.PriceBase)
			res.add(m, take, o.PriceBase, false)
			return true
		})
		return res
	}

	// Buying an exact base output: the request truncates to ticks once.
	rem := m.Ticks.BaseFromAmount0(exactOutput)
	m.Each(true, func(o *book.Order) bool {
		if rem == 0 {
			return false
		}
		take := o.Amount0Base
		if rem < take {
			take = rem
		}
		rem -= take
		res.add(m, take, o.PriceBase, true)
		return true
	})
	return res
}

// add accumulates one touched level. buying reports which side of the trade
// the base asset lands on.
func (r *result) add(m *book.Market, take, priceBase uint64, buying bool) {
	amount0 := m.Ticks.Amount0(take)
	amount1 := m.Ticks.Amount1(take, priceBase)
	r.ticks += take
	r.worstPrice = priceBase
	if buying {
		r.input += amount1
		r.output += amount0
	} else {
		r.input += amount0
		r.output += amount1
	}
}

// execute turns a priced walk into a market order. The order is sized to the
// walk's tick count and bounded at the worst price the walk touched, so under
// serialized operation it consumes exactly the quoted levels.
func (h *Helper) execute(m *book.Market, owner string, isAsk bool, res result) (input, output uint64, err error) {
	if res.ticks == 0 {
		return 0, 0, router.ErrInvalidSize
	}
	// worstPrice is a floor for a sell and a cap for a buy; either way the
	// walk already proved every touched level clears it.
	filled0, filled1, err := h.router.CreateMarketOrder(owner, m.ID, res.ticks, res.worstPrice, isAsk)
	if err != nil {
		return 0, 0, err
	}
	if isAsk {
		return filled0, filled1, nil
	}
	return filled1, filled0, nil
}
