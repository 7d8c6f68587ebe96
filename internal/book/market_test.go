package book

import (
	"testing"
)

func restAsk(m *Market, owner string, size, price uint64) *Order {
	o := m.NewOrder(owner, true, size, price)
	m.Insert(o, HeadID)
	return o
}

func restBid(m *Market, owner string, size, price uint64) *Order {
	o := m.NewOrder(owner, false, size, price)
	m.Insert(o, HeadID)
	return o
}

func TestMatchConsumesBestFirst(t *testing.T) {
	m := testMarket(t)

	// Five one-tick asks at the same price; a bid for three must take the
	// three earliest and leave the 4th and 5th untouched, in order.
	for i := 0; i < 5; i++ {
		restAsk(m, "maker", 1, 1)
	}

	incoming := m.NewOrder("taker", false, 3, 1)
	fills := m.Match(incoming)

	if len(fills) != 3 {
		t.Fatalf("expected 3 fills, got %d", len(fills))
	}
	for i, f := range fills {
		if f.MakerOrderID != uint32(2+i) {
			t.Errorf("fill %d matched order %d, want %d", i, f.MakerOrderID, 2+i)
		}
		if !f.MakerDone || f.Amount0Base != 1 {
			t.Errorf("fill %d: %+v", i, f)
		}
	}
	if incoming.Amount0Base != 0 {
		t.Errorf("expected incoming fully filled, %d left", incoming.Amount0Base)
	}

	want := []uint32{5, 6}
	if got := askIDs(m); !equalIDs(got, want) {
		t.Errorf("expected remaining asks %v, got %v", want, got)
	}
}

func TestMatchAtMakerPrice(t *testing.T) {
	m := testMarket(t)

	restAsk(m, "maker", 10, 3)

	// Bid willing to pay 5 still fills at the resting price of 3.
	incoming := m.NewOrder("taker", false, 4, 5)
	fills := m.Match(incoming)

	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].PriceBase != 3 {
		t.Errorf("expected fill at maker price 3, got %d", fills[0].PriceBase)
	}
	if fills[0].MakerDone {
		t.Error("maker should be partially filled, not done")
	}

	rest := m.Get(fills[0].MakerOrderID)
	if rest == nil || rest.Amount0Base != 6 {
		t.Errorf("expected maker remainder 6, got %+v", rest)
	}
}

func TestMatchStopsAtLimitPrice(t *testing.T) {
	m := testMarket(t)

	restAsk(m, "maker", 1, 2)
	restAsk(m, "maker", 1, 4)
	restAsk(m, "maker", 1, 6)

	incoming := m.NewOrder("taker", false, 3, 4)
	fills := m.Match(incoming)

	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	if incoming.Amount0Base != 1 {
		t.Errorf("expected remainder 1, got %d", incoming.Amount0Base)
	}
	if got := askIDs(m); !equalIDs(got, []uint32{4}) {
		t.Errorf("expected ask 4 to survive, got %v", got)
	}
}

func TestMatchAskAgainstBids(t *testing.T) {
	m := testMarket(t)

	restBid(m, "maker", 2, 5)
	restBid(m, "maker", 2, 3)

	incoming := m.NewOrder("taker", true, 3, 4)
	fills := m.Match(incoming)

	// Only the bid at 5 crosses an ask limit of 4.
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].PriceBase != 5 || fills[0].Amount0Base != 2 {
		t.Errorf("unexpected fill %+v", fills[0])
	}
	if incoming.Amount0Base != 1 {
		t.Errorf("expected remainder 1, got %d", incoming.Amount0Base)
	}
}

func TestMatchEmptyBook(t *testing.T) {
	m := testMarket(t)

	incoming := m.NewOrder("taker", false, 3, 1)
	if fills := m.Match(incoming); len(fills) != 0 {
		t.Fatalf("expected no fills, got %d", len(fills))
	}
	if incoming.Amount0Base != 3 {
		t.Errorf("incoming mutated on empty book: %d", incoming.Amount0Base)
	}
}

func TestDepthAggregatesLevels(t *testing.T) {
	m := testMarket(t)

	restAsk(m, "a", 1, 10)
	restAsk(m, "b", 2, 10)
	restAsk(m, "c", 4, 20)
	restBid(m, "d", 3, 5)

	asks, bids := m.Depth()
	if len(asks) != 2 || asks[0].PriceBase != 10 || asks[0].Amount0Base != 3 {
		t.Errorf("unexpected ask depth %+v", asks)
	}
	if len(bids) != 1 || bids[0].PriceBase != 5 || bids[0].Amount0Base != 3 {
		t.Errorf("unexpected bid depth %+v", bids)
	}
}

func TestRestingTotals(t *testing.T) {
	m := testMarket(t)

	restAsk(m, "a", 3, 2)  // amount0 = 300
	restBid(m, "b", 2, 5)  // amount1 = 10
	restBid(m, "c", 1, 4)  // amount1 = 4

	ask0, bid1 := m.RestingTotals()
	if ask0 != 300 {
		t.Errorf("expected ask total 300, got %d", ask0)
	}
	if bid1 != 14 {
		t.Errorf("expected bid total 14, got %d", bid1)
	}
}
