package router

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"lob/internal/token"
)

// Compact binary call surface. High-frequency callers submit a single
// fixed-layout payload instead of a structured call; the results must be
// bit-identical to the equivalent structured operations. All multi-byte
// fields are big-endian.
//
// Layouts:
//
//	0x01 create limit orders: marketID:1 count:1 then per order
//	     amount0Base:8 priceBase:8 isAsk:1 hintID:4
//	0x03 cancel limit orders: marketID:1 count:1 then per order orderID:4
//	0x04 create market order:  marketID:1 amount0Base:8 priceBase:8 isAsk:1
const (
	OpCreateLimitOrder  byte = 0x01
	OpCancelLimitOrder  byte = 0x03
	OpCreateMarketOrder byte = 0x04
)

const (
	limitOrderEntrySize  = 8 + 8 + 1 + 4
	cancelEntrySize      = 4
	marketOrderEntrySize = 8 + 8 + 1
)

var (
	ErrBadOpcode  = errors.New("router: unknown opcode")
	ErrBadPayload = errors.New("router: malformed payload")
)

// DispatchResult carries whatever the decoded operation produced.
type DispatchResult struct {
	OrderIDs []uint32
	Filled0  uint64
	Filled1  uint64
}

// Dispatch decodes and executes one compact payload on behalf of owner.
func (r *Router) Dispatch(owner string, payload []byte) (DispatchResult, error) {
	if len(payload) == 0 {
		return DispatchResult{}, ErrBadPayload
	}
	op, body := payload[0], payload[1:]

	switch op {
	case OpCreateLimitOrder:
		return r.dispatchCreateLimit(owner, body)
	case OpCancelLimitOrder:
		return r.dispatchCancel(owner, body)
	case OpCreateMarketOrder:
		return r.dispatchCreateMarket(owner, body)
	}
	return DispatchResult{}, fmt.Errorf("%w: 0x%02x", ErrBadOpcode, op)
}

type limitEntry struct {
	amount0Base uint64
	priceBase   uint64
	isAsk       bool
	hintID      uint32
}

func (r *Router) dispatchCreateLimit(owner string, body []byte) (DispatchResult, error) {
	if len(body) < 2 {
		return DispatchResult{}, ErrBadPayload
	}
	marketID, count := body[0], int(body[1])
	raw := body[2:]
	if count == 0 || len(raw) < count*limitOrderEntrySize {
		return DispatchResult{}, ErrBadPayload
	}

	entries := make([]limitEntry, count)
	for i := range entries {
		e := raw[i*limitOrderEntrySize:]
		entries[i] = limitEntry{
			amount0Base: binary.BigEndian.Uint64(e[0:8]),
			priceBase:   binary.BigEndian.Uint64(e[8:16]),
			isAsk:       e[16] != 0,
			hintID:      binary.BigEndian.Uint32(e[17:21]),
		}
	}
	ids, err := r.createLimitOrderBatch(owner, marketID, entries)
	if err != nil {
		return DispatchResult{}, err
	}
	return DispatchResult{OrderIDs: ids}, nil
}

// createLimitOrderBatch applies a decoded 0x01 batch all-or-nothing. Every
// entry is validated and the total escrow proved coverable before the first
// order touches the book, so a rejected batch has no effect. The balance
// check ignores proceeds earlier entries may earn by crossing, which makes
// it conservative: a batch that passes cannot fail part-way through.
func (r *Router) createLimitOrderBatch(owner string, marketID uint8, entries []limitEntry) ([]uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.market(marketID)
	if err != nil {
		return nil, err
	}
	var need0, need1 uint64
	for _, e := range entries {
		if e.amount0Base == 0 {
			return nil, ErrInvalidSize
		}
		if e.priceBase == 0 {
			return nil, ErrInvalidPrice
		}
		a0, ok := m.Ticks.Amount0Checked(e.amount0Base)
		if !ok {
			return nil, ErrAmountOverflow
		}
		a1, ok := m.Ticks.Amount1Checked(e.amount0Base, e.priceBase)
		if !ok {
			return nil, ErrAmountOverflow
		}
		if e.isAsk {
			if need0 > math.MaxUint64-a0 {
				return nil, ErrAmountOverflow
			}
			need0 += a0
		} else {
			if need1 > math.MaxUint64-a1 {
				return nil, ErrAmountOverflow
			}
			need1 += a1
		}
	}
	if need0 > r.ledger.BalanceOf(owner, m.Token0) || need1 > r.ledger.BalanceOf(owner, m.Token1) {
		return nil, fmt.Errorf("batch create: %w", token.ErrInsufficientBalance)
	}

	ids := make([]uint32, 0, len(entries))
	for _, e := range entries {
		id, err := r.createLimitOrder(owner, marketID, e.amount0Base, e.priceBase, e.isAsk, e.hintID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Router) dispatchCancel(owner string, body []byte) (DispatchResult, error) {
	if len(body) < 2 {
		return DispatchResult{}, ErrBadPayload
	}
	marketID, count := body[0], int(body[1])
	entries := body[2:]
	if count == 0 || len(entries) < count*cancelEntrySize {
		return DispatchResult{}, ErrBadPayload
	}

	marketIDs := make([]uint8, count)
	orderIDs := make([]uint32, count)
	for i := 0; i < count; i++ {
		marketIDs[i] = marketID
		orderIDs[i] = binary.BigEndian.Uint32(entries[i*cancelEntrySize:])
	}
	if err := r.CancelLimitOrderBatch(owner, marketIDs, orderIDs); err != nil {
		return DispatchResult{}, err
	}
	return DispatchResult{OrderIDs: orderIDs}, nil
}

func (r *Router) dispatchCreateMarket(owner string, body []byte) (DispatchResult, error) {
	if len(body) < 1+marketOrderEntrySize {
		return DispatchResult{}, ErrBadPayload
	}
	marketID := body[0]
	amount0Base := binary.BigEndian.Uint64(body[1:9])
	priceBase := binary.BigEndian.Uint64(body[9:17])
	isAsk := body[17] != 0

	filled0, filled1, err := r.CreateMarketOrder(owner, marketID, amount0Base, priceBase, isAsk)
	if err != nil {
		return DispatchResult{}, err
	}
	return DispatchResult{Filled0: filled0, Filled1: filled1}, nil
}

// EncodeCreateLimitOrder builds a 0x01 payload for a single order. Callers
// batching several orders can append further entries before submitting.
func EncodeCreateLimitOrder(marketID uint8, amount0Base, priceBase uint64, isAsk bool, hintID uint32) []byte {
	out := make([]byte, 3, 3+limitOrderEntrySize)
	out[0] = OpCreateLimitOrder
	out[1] = marketID
	return AppendLimitOrderEntry(out, amount0Base, priceBase, isAsk, hintID)
}

// AppendLimitOrderEntry appends one order entry to a 0x01 payload and bumps
// its count byte.
func AppendLimitOrderEntry(payload []byte, amount0Base, priceBase uint64, isAsk bool, hintID uint32) []byte {
	payload[2]++
	var e [limitOrderEntrySize]byte
	binary.BigEndian.PutUint64(e[0:8], amount0Base)
	binary.BigEndian.PutUint64(e[8:16], priceBase)
	if isAsk {
		e[16] = 1
	}
	binary.BigEndian.PutUint32(e[17:21], hintID)
	return append(payload, e[:]...)
}

// EncodeCancelLimitOrder builds a 0x03 payload.
func EncodeCancelLimitOrder(marketID uint8, orderIDs ...uint32) []byte {
	out := make([]byte, 3, 3+len(orderIDs)*cancelEntrySize)
	out[0] = OpCancelLimitOrder
	out[1] = marketID
	out[2] = byte(len(orderIDs))
	for _, id := range orderIDs {
		var e [cancelEntrySize]byte
		binary.BigEndian.PutUint32(e[:], id)
		out = append(out, e[:]...)
	}
	return out
}

// EncodeCreateMarketOrder builds a 0x04 payload.
func EncodeCreateMarketOrder(marketID uint8, amount0Base, priceBase uint64, isAsk bool) []byte {
	out := make([]byte, 1+1+marketOrderEntrySize)
	out[0] = OpCreateMarketOrder
	out[1] = marketID
	binary.BigEndian.PutUint64(out[2:10], amount0Base)
	binary.BigEndian.PutUint64(out[10:18], priceBase)
	if isAsk {
		out[18] = 1
	}
	return out
}
