package book

import (
	"math/rand"
	"testing"

	"lob/internal/tick"
)

func testMarket(t *testing.T) *Market {
	t.Helper()
	params, err := tick.NewParams(2, 1, 3)
	if err != nil {
		t.Fatalf("tick params: %v", err)
	}
	return NewMarket(0, "BASE", "QUOTE", params)
}

func askIDs(m *Market) []uint32 {
	var ids []uint32
	m.Each(true, func(o *Order) bool {
		ids = append(ids, o.ID)
		return true
	})
	return ids
}

func bidIDs(m *Market) []uint32 {
	var ids []uint32
	m.Each(false, func(o *Order) bool {
		ids = append(ids, o.ID)
		return true
	})
	return ids
}

func equalIDs(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func checkSorted(t *testing.T, m *Market, isAsk bool) {
	t.Helper()
	var prev *Order
	m.Each(isAsk, func(o *Order) bool {
		if prev != nil {
			if isAsk && o.PriceBase < prev.PriceBase {
				t.Errorf("ask list out of order: %d before %d", prev.PriceBase, o.PriceBase)
			}
			if !isAsk && o.PriceBase > prev.PriceBase {
				t.Errorf("bid list out of order: %d before %d", prev.PriceBase, o.PriceBase)
			}
			if o.PriceBase == prev.PriceBase && o.ID < prev.ID {
				t.Errorf("tie at price %d broke insertion order: %d before %d",
					o.PriceBase, prev.ID, o.ID)
			}
		}
		prev = o
		return true
	})
}

// Inserts with hints pointing at the head sentinel, the tail sentinel, a
// live order, and a canceled order must all land in the same sorted position.
func TestInsertWithHints(t *testing.T) {
	m := testMarket(t)

	add := func(price uint64, hint uint32) uint32 {
		o := m.NewOrder("acc", true, 1, price)
		m.Insert(o, hint)
		return o.ID
	}

	add(100, HeadID) // id 2
	add(400, HeadID) // id 3
	add(200, 2)      // id 4, correct hint
	add(300, TailID) // id 5, tail sentinel hint forces a backward walk
	add(500, 4)      // id 6, hint far behind the right spot

	want := []uint32{2, 4, 5, 3, 6}
	if got := askIDs(m); !equalIDs(got, want) {
		t.Fatalf("expected ask order %v, got %v", want, got)
	}
	checkSorted(t, m, true)

	// A canceled order as hint degrades to a sentinel-anchored walk.
	m.Remove(4)
	id := add(200, 4)
	if id != 7 {
		t.Fatalf("expected id 7, got %d", id)
	}
	want = []uint32{2, 7, 5, 3, 6}
	if got := askIDs(m); !equalIDs(got, want) {
		t.Fatalf("expected ask order %v after stale hint, got %v", want, got)
	}
}

func TestInsertTiePreservesOrder(t *testing.T) {
	m := testMarket(t)

	first := m.NewOrder("a", false, 1, 50)
	m.Insert(first, HeadID)
	second := m.NewOrder("b", false, 1, 50)
	m.Insert(second, HeadID)

	want := []uint32{first.ID, second.ID}
	if got := bidIDs(m); !equalIDs(got, want) {
		t.Errorf("expected tie order %v, got %v", want, got)
	}
}

func TestBidOrderingDescending(t *testing.T) {
	m := testMarket(t)

	for _, price := range []uint64{10, 30, 20, 30, 5} {
		o := m.NewOrder("acc", false, 1, price)
		m.Insert(o, HeadID)
	}
	checkSorted(t, m, false)

	best, ok := m.BestPrice(false)
	if !ok || best != 30 {
		t.Errorf("expected best bid 30, got %d (ok=%v)", best, ok)
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	m := testMarket(t)

	if o := m.Remove(42); o != nil {
		t.Fatalf("expected nil removing absent id, got %+v", o)
	}

	o := m.NewOrder("acc", true, 1, 10)
	m.Insert(o, HeadID)
	if removed := m.Remove(o.ID); removed == nil {
		t.Fatal("expected removal to return the order")
	}
	if again := m.Remove(o.ID); again != nil {
		t.Fatal("second removal should be a no-op")
	}
	if got := askIDs(m); len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}

// Random hints must never change the resulting book, only the walk length.
func TestRandomHintsMatchCorrectHints(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	hinted := testMarket(t)
	control := testMarket(t)

	for i := 0; i < 200; i++ {
		price := uint64(rng.Intn(50) + 1)
		isAsk := rng.Intn(2) == 0

		badHint := uint32(rng.Intn(60))
		o1 := hinted.NewOrder("acc", isAsk, 1, price)
		hinted.Insert(o1, badHint)

		o2 := control.NewOrder("acc", isAsk, 1, price)
		control.Insert(o2, control.SuggestHint(price, isAsk))

		if rng.Intn(4) == 0 {
			victim := uint32(rng.Intn(int(o1.ID)) + 2)
			hinted.Remove(victim)
			control.Remove(victim)
		}
	}

	if !equalIDs(askIDs(hinted), askIDs(control)) {
		t.Errorf("ask lists diverged: %v vs %v", askIDs(hinted), askIDs(control))
	}
	if !equalIDs(bidIDs(hinted), bidIDs(control)) {
		t.Errorf("bid lists diverged: %v vs %v", bidIDs(hinted), bidIDs(control))
	}
	checkSorted(t, hinted, true)
	checkSorted(t, hinted, false)
}

func TestSuggestHint(t *testing.T) {
	m := testMarket(t)

	a := m.NewOrder("acc", true, 1, 10)
	m.Insert(a, HeadID)
	b := m.NewOrder("acc", true, 1, 30)
	m.Insert(b, HeadID)

	if got := m.SuggestHint(5, true); got != HeadID {
		t.Errorf("expected head sentinel hint, got %d", got)
	}
	if got := m.SuggestHint(20, true); got != a.ID {
		t.Errorf("expected hint %d, got %d", a.ID, got)
	}
	// Equal price hints after the existing order at that price.
	if got := m.SuggestHint(30, true); got != b.ID {
		t.Errorf("expected hint %d, got %d", b.ID, got)
	}
	if got := m.SuggestHint(99, true); got != b.ID {
		t.Errorf("expected hint %d, got %d", b.ID, got)
	}
}
