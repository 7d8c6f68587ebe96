package bots

import (
	"log"
	"time"

	"lob/internal/router"
)

// MMConfig configures a market maker bot. Prices are in price ticks, sizes
// in base size ticks.
type MMConfig struct {
	Owner          string
	MarketID       uint8
	ReferencePrice uint64 // quoted around when the book is empty
	HalfSpread     uint64 // distance from reference to the first level
	SizePerLevel   uint64
	Levels         int
	QuoteInterval  time.Duration
}

// MarketMakerBot keeps symmetric quotes resting around the book's mid. Each
// requote cancels the previous quotes in one batch and submits the new set
// as one compact payload, with insertion hints looked up beforehand.
type MarketMakerBot struct {
	*BaseBot
	config   MMConfig
	orderIDs []uint32
}

func NewMarketMakerBot(config MMConfig, rt *router.Router) *MarketMakerBot {
	return &MarketMakerBot{
		BaseBot: NewBaseBot(config.Owner, config.MarketID, rt),
		config:  config,
	}
}

func (mm *MarketMakerBot) Start() {
	go func() {
		mm.requote()
		runPeriodic(mm.config.QuoteInterval, mm.stopCh, mm.requote)
	}()
}

// Stop cancels resting quotes before shutting down.
func (mm *MarketMakerBot) Stop() {
	mm.BaseBot.Stop()
	mm.cancelQuotes()
}

func (mm *MarketMakerBot) cancelQuotes() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if len(mm.orderIDs) == 0 {
		return
	}
	marketIDs := make([]uint8, len(mm.orderIDs))
	for i := range marketIDs {
		marketIDs[i] = mm.marketID
	}
	if err := mm.router.CancelLimitOrderBatch(mm.owner, marketIDs, mm.orderIDs); err != nil {
		log.Printf("[MM %s] cancel batch: %v", mm.owner, err)
	}
	mm.orderIDs = nil
}

func (mm *MarketMakerBot) requote() {
	mm.cancelQuotes()

	mm.mu.Lock()
	defer mm.mu.Unlock()

	ref := mm.config.ReferencePrice
	if ref == 0 {
		return
	}

	var payload []byte
	first := true
	place := func(price uint64, isAsk bool) {
		hint, err := mm.router.SuggestHint(mm.marketID, price, isAsk)
		if err != nil {
			return
		}
		if first {
			payload = router.EncodeCreateLimitOrder(mm.marketID, mm.config.SizePerLevel, price, isAsk, hint)
			first = false
			return
		}
		payload = router.AppendLimitOrderEntry(payload, mm.config.SizePerLevel, price, isAsk, hint)
	}

	for i := 1; i <= mm.config.Levels; i++ {
		step := mm.config.HalfSpread * uint64(i)
		if ref > step {
			place(ref-step, false)
		}
		place(ref+step, true)
	}
	if payload == nil {
		return
	}

	res, err := mm.router.Dispatch(mm.owner, payload)
	if err != nil {
		log.Printf("[MM %s] requote: %v", mm.owner, err)
		return
	}
	mm.orderIDs = res.OrderIDs
}
