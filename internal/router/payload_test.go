package router

import (
	"errors"
	"testing"

	"lob/internal/token"
)

// The compact surface must be indistinguishable from structured calls: the
// same operations produce the same books and the same balances either way.
func TestDispatchMatchesStructuredCalls(t *testing.T) {
	structured := newFixture(t)
	compact := newFixture(t)

	type op struct {
		owner   string
		payload []byte
	}

	// One batch of asks, a crossing market bid, then a batch cancel.
	askBatch := EncodeCreateLimitOrder(0, 2, 5, true, 0)
	askBatch = AppendLimitOrderEntry(askBatch, 3, 4, true, 0)
	askBatch = AppendLimitOrderEntry(askBatch, 1, 6, true, 0)
	ops := []op{
		{"alice", askBatch},
		{"bob", EncodeCreateMarketOrder(0, 4, 5, false)},
		{"carol", EncodeCreateLimitOrder(0, 5, 3, false, 0)},
		{"alice", EncodeCancelLimitOrder(0, 2, 4)},
	}

	for i, o := range ops {
		if _, err := compact.router.Dispatch(o.owner, o.payload); err != nil {
			t.Fatalf("dispatch op %d: %v", i, err)
		}
	}

	structured.router.CreateLimitOrder("alice", 0, 2, 5, true, 0)
	structured.router.CreateLimitOrder("alice", 0, 3, 4, true, 0)
	structured.router.CreateLimitOrder("alice", 0, 1, 6, true, 0)
	structured.router.CreateMarketOrder("bob", 0, 4, 5, false)
	structured.router.CreateLimitOrder("carol", 0, 5, 3, false, 0)
	structured.router.CancelLimitOrderBatch("alice", []uint8{0, 0}, []uint32{2, 4})

	sv, _ := structured.router.GetLimitOrders(0)
	cv, _ := compact.router.GetLimitOrders(0)
	if !equalIDs(sv.IDs, cv.IDs) {
		t.Errorf("book ids diverge: structured %v, compact %v", sv.IDs, cv.IDs)
	}
	for i := range sv.IDs {
		if sv.Amount0s[i] != cv.Amount0s[i] || sv.Owners[i] != cv.Owners[i] {
			t.Errorf("order %d diverges: %+v vs %+v", sv.IDs[i], sv, cv)
		}
	}
	for _, owner := range []string{"alice", "bob", "carol"} {
		for _, asset := range []string{"BASE", "QUOTE"} {
			s := structured.bank.BalanceOf(owner, asset)
			c := compact.bank.BalanceOf(owner, asset)
			if s != c {
				t.Errorf("%s %s balance diverges: structured %d, compact %d", owner, asset, s, c)
			}
		}
	}
	compact.checkEscrow(t)
}

func TestDispatchReportsResults(t *testing.T) {
	f := newFixture(t)

	res, err := f.router.Dispatch("alice", EncodeCreateLimitOrder(f.mid, 5, 2, true, 0))
	if err != nil {
		t.Fatalf("dispatch create: %v", err)
	}
	if !equalIDs(res.OrderIDs, []uint32{2}) {
		t.Errorf("expected order ids [2], got %v", res.OrderIDs)
	}

	res, err = f.router.Dispatch("bob", EncodeCreateMarketOrder(f.mid, 3, 2, false))
	if err != nil {
		t.Fatalf("dispatch market: %v", err)
	}
	if res.Filled0 != 300 || res.Filled1 != 6 {
		t.Errorf("expected fill (300, 6), got (%d, %d)", res.Filled0, res.Filled1)
	}
}

func TestDispatchRejectsMalformedPayloads(t *testing.T) {
	f := newFixture(t)

	cases := map[string][]byte{
		"empty":            nil,
		"unknown opcode":   {0x7f, 0, 1},
		"truncated create": {OpCreateLimitOrder, 0, 1, 0xff},
		"zero count":       {OpCreateLimitOrder, 0, 0},
		"truncated cancel": {OpCancelLimitOrder, 0, 2, 0, 0, 0, 9},
		"short market":     {OpCreateMarketOrder, 0, 1, 2, 3},
	}
	for name, payload := range cases {
		if _, err := f.router.Dispatch("alice", payload); err == nil {
			t.Errorf("%s: expected error", name)
		} else if !errors.Is(err, ErrBadPayload) && !errors.Is(err, ErrBadOpcode) {
			t.Errorf("%s: unexpected error %v", name, err)
		}
	}
	if got := f.ids(t); len(got) != 0 {
		t.Errorf("malformed payloads mutated the book: %v", got)
	}
}

// A 0x01 batch commits all of its orders or none of them: a bad entry or an
// uncoverable total must leave earlier entries unapplied.
func TestDispatchBatchCreateAllOrNothing(t *testing.T) {
	f := newFixture(t)

	check := func(name string, payload []byte, wantErr error) {
		t.Helper()
		if _, err := f.router.Dispatch("alice", payload); !errors.Is(err, wantErr) {
			t.Fatalf("%s: expected %v, got %v", name, wantErr, err)
		}
		if got := len(f.ids(t)); got != 0 {
			t.Errorf("%s: partial batch reached the book: %d resting", name, got)
		}
		for _, asset := range []string{"BASE", "QUOTE"} {
			if got := f.bank.BalanceOf("alice", asset); got != startBalance {
				t.Errorf("%s: partial batch moved %s: %d", name, asset, got)
			}
		}
	}

	// Valid first entry, zero-price second.
	p := EncodeCreateLimitOrder(0, 2, 5, true, 0)
	p = AppendLimitOrderEntry(p, 3, 0, true, 0)
	check("zero price", p, ErrInvalidPrice)

	// Valid first entry, overflowing second.
	p = EncodeCreateLimitOrder(0, 2, 5, true, 0)
	p = AppendLimitOrderEntry(p, 1<<32, 1<<32, false, 0)
	check("overflow", p, ErrAmountOverflow)

	// Each ask alone is coverable, the pair is not: 2 * 6e8 > 1e9.
	p = EncodeCreateLimitOrder(0, 6_000_000, 3, true, 0)
	p = AppendLimitOrderEntry(p, 6_000_000, 3, true, 0)
	check("insufficient balance", p, token.ErrInsufficientBalance)

	// The same orders split across two payloads both land.
	if _, err := f.router.Dispatch("alice", EncodeCreateLimitOrder(0, 2, 5, true, 0)); err != nil {
		t.Fatalf("single create: %v", err)
	}
	p = EncodeCreateLimitOrder(0, 3, 4, true, 0)
	p = AppendLimitOrderEntry(p, 1, 6, true, 0)
	res, err := f.router.Dispatch("alice", p)
	if err != nil {
		t.Fatalf("batch create: %v", err)
	}
	if len(res.OrderIDs) != 2 {
		t.Fatalf("expected 2 order ids, got %v", res.OrderIDs)
	}
	f.checkEscrow(t)
}
