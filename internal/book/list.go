package book

// sideList is one strictly sorted doubly-linked sequence of resting orders:
// ascending by price for asks, descending for bids, ties in insertion order.
// Nodes live in the market's shared arena and link by id; the sentinels are
// owned by the list itself and never appear in the arena.
type sideList struct {
	arena      map[uint32]*Order
	isAsk      bool
	head, tail *Order
}

func newSideList(arena map[uint32]*Order, isAsk bool) *sideList {
	l := &sideList{arena: arena, isAsk: isAsk}
	l.head = &Order{ID: HeadID, IsAsk: isAsk, prev: HeadID, next: TailID}
	l.tail = &Order{ID: TailID, IsAsk: isAsk, prev: HeadID, next: TailID}
	return l
}

// node resolves an id to a member of this list, or nil if the id is stale or
// belongs to the other side.
func (l *sideList) node(id uint32) *Order {
	switch id {
	case HeadID:
		return l.head
	case TailID:
		return l.tail
	}
	o := l.arena[id]
	if o == nil || o.IsAsk != l.isAsk {
		return nil
	}
	return o
}

// before reports whether a sorts strictly ahead of b. The sentinels compare
// as the infinities bounding the list.
func (l *sideList) before(a, b *Order) bool {
	if b.ID == TailID || a.ID == HeadID {
		return true
	}
	if a.ID == TailID || b.ID == HeadID {
		return false
	}
	if l.isAsk {
		return a.PriceBase < b.PriceBase
	}
	return a.PriceBase > b.PriceBase
}

// insert splices o into sort position. hintID names the order claimed to be
// the immediate predecessor; a wrong or stale hint only costs a longer walk.
// Equal prices always land after existing entries at that price, so
// first-in-first-matched holds at every level.
func (l *sideList) insert(o *Order, hintID uint32) {
	pred := l.node(hintID)
	if pred == nil {
		pred = l.head
	}
	// Back up while the claimed predecessor sorts after the new order.
	for pred.ID != HeadID && l.before(o, pred) {
		pred = l.node(pred.prev)
	}
	// Walk forward past everything at or ahead of the new order's price.
	for pred.next != TailID {
		next := l.arena[pred.next]
		if l.before(o, next) {
			break
		}
		pred = next
	}
	succ := l.node(pred.next)
	o.prev = pred.ID
	o.next = succ.ID
	pred.next = o.ID
	succ.prev = o.ID
	l.arena[o.ID] = o
}

// remove splices o out. The caller owns arena cleanup.
func (l *sideList) remove(o *Order) {
	l.node(o.prev).next = o.next
	l.node(o.next).prev = o.prev
	o.prev, o.next = o.ID, o.ID
}

// first returns the best-priced resting order, or nil on an empty list.
func (l *sideList) first() *Order {
	if l.head.next == TailID {
		return nil
	}
	return l.arena[l.head.next]
}

// each walks the list in priority order until fn returns false.
func (l *sideList) each(fn func(*Order) bool) {
	for id := l.head.next; id != TailID; {
		o := l.arena[id]
		id = o.next
		if !fn(o) {
			return
		}
	}
}

// predecessorFor returns the id of the order that would immediately precede
// a new order at priceBase. Callers use it as an insertion hint.
func (l *sideList) predecessorFor(priceBase uint64) uint32 {
	probe := &Order{ID: FirstOrderID, IsAsk: l.isAsk, PriceBase: priceBase}
	pred := l.head
	for pred.next != TailID {
		next := l.arena[pred.next]
		if l.before(probe, next) {
			break
		}
		pred = next
	}
	return pred.ID
}
