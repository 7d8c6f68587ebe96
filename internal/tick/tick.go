// Package tick holds the per-market scale factors that relate caller-supplied
// base units to raw token quantities. Everything here is pure integer math;
// the parameters are fixed when a market is created and never change.
package tick

import (
	"errors"
	"fmt"
	"math"
)

var ErrBadExponent = errors.New("tick: exponent out of range")

// Pow10 returns 10^exp for the small exponents a market can carry.
func Pow10(exp uint8) (uint64, error) {
	if exp > 18 {
		return 0, ErrBadExponent
	}
	v := uint64(1)
	for i := uint8(0); i < exp; i++ {
		v *= 10
	}
	return v, nil
}

// Params are the immutable scale factors of one market.
//
// A caller submits sizes as multiples of SizeTick and prices as multiples of
// PriceTick. The raw quantities are
//
//	amount0 = amount0Base * SizeTick
//	amount1 = amount0Base * priceBase * PriceMultiplier
//
// PriceMultiplier is chosen so amount1 lands in the quote asset's raw units
// without any fractional remainder.
type Params struct {
	SizeTick        uint64
	PriceTick       uint64
	PriceMultiplier uint64
}

// NewParams derives the scale factors from the two tick exponents and the
// base asset's decimals. The exponent sum must cover the decimals so the
// multiplier stays a positive integer; anything else would force rounding
// inside settlement.
func NewParams(sizeTickExp, priceTickExp, baseDecimals uint8) (Params, error) {
	sizeTick, err := Pow10(sizeTickExp)
	if err != nil {
		return Params{}, err
	}
	priceTick, err := Pow10(priceTickExp)
	if err != nil {
		return Params{}, err
	}
	if sizeTickExp+priceTickExp < baseDecimals {
		return Params{}, fmt.Errorf("tick: exponents %d+%d do not cover %d base decimals",
			sizeTickExp, priceTickExp, baseDecimals)
	}
	mult, err := Pow10(sizeTickExp + priceTickExp - baseDecimals)
	if err != nil {
		return Params{}, err
	}
	return Params{SizeTick: sizeTick, PriceTick: priceTick, PriceMultiplier: mult}, nil
}

// Amount0 converts a base size to raw base-asset units.
func (p Params) Amount0(amount0Base uint64) uint64 {
	return amount0Base * p.SizeTick
}

// Amount1 converts a base size at a tick price to raw quote-asset units.
func (p Params) Amount1(amount0Base, priceBase uint64) uint64 {
	return amount0Base * priceBase * p.PriceMultiplier
}

// Amount0Checked is Amount0 with overflow detection: ok is false when the
// raw quantity does not fit in uint64.
func (p Params) Amount0Checked(amount0Base uint64) (amount0 uint64, ok bool) {
	if amount0Base > math.MaxUint64/p.SizeTick {
		return 0, false
	}
	return amount0Base * p.SizeTick, true
}

// Amount1Checked is Amount1 with overflow detection. Both the per-tick cost
// and the full product must fit in uint64.
func (p Params) Amount1Checked(amount0Base, priceBase uint64) (amount1 uint64, ok bool) {
	if priceBase > math.MaxUint64/p.PriceMultiplier {
		return 0, false
	}
	unit := priceBase * p.PriceMultiplier
	if unit != 0 && amount0Base > math.MaxUint64/unit {
		return 0, false
	}
	return amount0Base * unit, true
}

// BaseFromAmount0 truncates a raw base-asset quantity down to whole size
// ticks. The remainder is never representable on the book.
func (p Params) BaseFromAmount0(amount0 uint64) uint64 {
	return amount0 / p.SizeTick
}

// BaseFromAmount1 truncates a raw quote-asset quantity down to the largest
// base size purchasable at priceBase.
func (p Params) BaseFromAmount1(amount1, priceBase uint64) uint64 {
	return amount1 / (priceBase * p.PriceMultiplier)
}

// Price converts a tick price to raw quote units per whole base unit.
func (p Params) Price(priceBase uint64) uint64 {
	return priceBase * p.PriceTick
}
