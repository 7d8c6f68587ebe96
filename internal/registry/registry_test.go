package registry

import (
	"testing"

	"lob/internal/tick"
	"lob/internal/token"
)

func newBank(t *testing.T) *token.Bank {
	t.Helper()
	bank := token.NewBank()
	for _, sym := range []string{"WETH", "USDC", "WBTC"} {
		if err := bank.CreateAsset(sym, 6); err != nil {
			t.Fatalf("create asset %s: %v", sym, err)
		}
	}
	return bank
}

func TestCreateOrderBook(t *testing.T) {
	bank := newBank(t)
	reg := New(bank)

	id, err := reg.CreateOrderBook("WETH", "USDC", 4, 3)
	if err != nil {
		t.Fatalf("create order book: %v", err)
	}
	if id != 0 {
		t.Errorf("expected first market id 0, got %d", id)
	}

	m := reg.Market(id)
	if m == nil {
		t.Fatal("market not found after creation")
	}
	if m.Token0 != "WETH" || m.Token1 != "USDC" {
		t.Errorf("unexpected pair %s/%s", m.Token0, m.Token1)
	}
	want, _ := tick.NewParams(4, 3, 6)
	if m.Ticks != want {
		t.Errorf("expected tick params %+v, got %+v", want, m.Ticks)
	}

	id2, err := reg.CreateOrderBook("WBTC", "USDC", 4, 3)
	if err != nil {
		t.Fatalf("create second book: %v", err)
	}
	if id2 != 1 {
		t.Errorf("expected market id 1, got %d", id2)
	}
	if got := len(reg.All()); got != 2 {
		t.Errorf("expected 2 markets, got %d", got)
	}
}

func TestCreateOrderBookRejections(t *testing.T) {
	bank := newBank(t)
	reg := New(bank)

	if _, err := reg.CreateOrderBook("WETH", "WETH", 4, 3); err != ErrSameToken {
		t.Errorf("expected ErrSameToken, got %v", err)
	}
	if _, err := reg.CreateOrderBook("DOGE", "USDC", 4, 3); err == nil {
		t.Error("expected error for unknown base asset")
	}
	if _, err := reg.CreateOrderBook("WETH", "DOGE", 4, 3); err == nil {
		t.Error("expected error for unknown quote asset")
	}

	// Ticks too coarse-grained are caught at creation.
	if _, err := reg.CreateOrderBook("WETH", "USDC", 2, 1); err == nil {
		t.Error("expected error for uncovered decimals")
	}

	if _, err := reg.CreateOrderBook("WETH", "USDC", 4, 3); err != nil {
		t.Fatalf("create order book: %v", err)
	}
	if _, err := reg.CreateOrderBook("WETH", "USDC", 5, 2); err != ErrPairExists {
		t.Errorf("expected ErrPairExists, got %v", err)
	}
}

func TestMarketLookupMiss(t *testing.T) {
	reg := New(newBank(t))
	if m := reg.Market(0); m != nil {
		t.Errorf("expected nil for empty registry, got %+v", m)
	}
}

func TestReversedPairRejected(t *testing.T) {
	reg := New(newBank(t))
	if _, err := reg.CreateOrderBook("WETH", "USDC", 4, 3); err != nil {
		t.Fatalf("create order book: %v", err)
	}
	// The reversed orientation would split the pair across two books.
	if _, err := reg.CreateOrderBook("USDC", "WETH", 4, 3); err != ErrPairExists {
		t.Errorf("expected ErrPairExists for reversed pair, got %v", err)
	}
}
