package bots

import (
	"fmt"
	"time"

	"lob/internal/registry"
	"lob/internal/router"
	"lob/internal/token"
)

// Funding per bot per asset, in raw units.
const botFunding = uint64(10_000_000_000)

// CreateEcosystem funds and assembles the demo bots for one market: a
// market maker quoting around refPrice and a pair of noise traders crossing
// it.
func CreateEcosystem(bank *token.Bank, reg *registry.Registry, rt *router.Router, marketID uint8, refPrice uint64) (*Manager, error) {
	m := reg.Market(marketID)
	if m == nil {
		return nil, fmt.Errorf("bots: market %d not found", marketID)
	}

	manager := NewManager()

	fund := func(owner string) error {
		for _, asset := range []string{m.Token0, m.Token1} {
			if err := bank.Mint(owner, asset, botFunding); err != nil {
				return fmt.Errorf("bots: fund %s with %s: %w", owner, asset, err)
			}
		}
		return nil
	}

	mmOwner := fmt.Sprintf("bot:mm:%d", marketID)
	if err := fund(mmOwner); err != nil {
		return nil, err
	}
	manager.Add(NewMarketMakerBot(MMConfig{
		Owner:          mmOwner,
		MarketID:       marketID,
		ReferencePrice: refPrice,
		HalfSpread:     1,
		SizePerLevel:   10,
		Levels:         3,
		QuoteInterval:  2 * time.Second,
	}, rt))

	for i := 1; i <= 2; i++ {
		owner := fmt.Sprintf("bot:noise%d:%d", i, marketID)
		if err := fund(owner); err != nil {
			return nil, err
		}
		manager.Add(NewNoiseTraderBot(owner, marketID, rt,
			time.Duration(i)*3*time.Second, 1, 5, refPrice*2))
	}

	return manager, nil
}
