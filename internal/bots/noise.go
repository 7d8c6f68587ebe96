package bots

import (
	"math/rand"
	"time"

	"lob/internal/router"
)

// NoiseTraderBot fires small random market orders to create trading texture
// against the market maker's quotes.
type NoiseTraderBot struct {
	*BaseBot
	interval time.Duration
	minSize  uint64 // base size ticks
	maxSize  uint64
	maxPrice uint64 // worst price accepted either way

	rng *rand.Rand
}

func NewNoiseTraderBot(owner string, marketID uint8, rt *router.Router, interval time.Duration, minSize, maxSize, maxPrice uint64) *NoiseTraderBot {
	return &NoiseTraderBot{
		BaseBot:  NewBaseBot(owner, marketID, rt),
		interval: interval,
		minSize:  minSize,
		maxSize:  maxSize,
		maxPrice: maxPrice,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (n *NoiseTraderBot) Start() {
	go runPeriodic(n.interval, n.stopCh, n.trade)
}

func (n *NoiseTraderBot) trade() {
	n.mu.Lock()
	defer n.mu.Unlock()

	size := n.minSize
	if n.maxSize > n.minSize {
		size += uint64(n.rng.Int63n(int64(n.maxSize - n.minSize + 1)))
	}
	isAsk := n.rng.Intn(2) == 0

	// A sell accepts any price down to 1; a buy pays up to maxPrice.
	price := uint64(1)
	if !isAsk {
		price = n.maxPrice
	}

	// Errors are expected noise themselves: an empty opposite side or a
	// drained balance just skips a round.
	n.router.CreateMarketOrder(n.owner, n.marketID, size, price, isAsk)
}
