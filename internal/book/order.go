package book

// Reserved ids. Real orders start at FirstOrderID and ids are never reused;
// the two sentinels bound every list and are never returned to callers.
const (
	HeadID       uint32 = 0
	TailID       uint32 = 1
	FirstOrderID uint32 = 2
)

// Order is one resting (or incoming) limit order. Amount0Base is the
// remaining size in size ticks; the quote-side amount is always derived from
// it, never stored. The link fields are indices into the owning market's
// arena, which keeps the intrusive lists free of pointer aliasing.
type Order struct {
	ID          uint32
	Owner       string
	IsAsk       bool
	PriceBase   uint64
	Amount0Base uint64

	prev, next uint32
}

// Fill records one match step: take Amount0Base from the maker order at the
// maker's price. The taker always trades at the resting order's price.
type Fill struct {
	MakerOrderID uint32
	Maker        string
	Amount0Base  uint64
	PriceBase    uint64
	MakerDone    bool
}
