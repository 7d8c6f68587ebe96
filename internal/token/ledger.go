// Package token provides the custody side of the exchange: fungible assets
// and an account ledger the router moves escrow through. The ledger assumes
// exact transfer semantics; a fee-on-transfer asset would silently break the
// escrow bookkeeping upstream.
package token

import (
	"errors"
	"sync"
)

var (
	ErrUnknownAsset        = errors.New("token: unknown asset")
	ErrAssetExists         = errors.New("token: asset already exists")
	ErrInsufficientBalance = errors.New("token: insufficient balance")
)

// Ledger is what the router needs from a token backend.
type Ledger interface {
	// Transfer moves amount of asset from one account to another.
	Transfer(from, to, asset string, amount uint64) error
	// BalanceOf reports the balance of an account for one asset.
	BalanceOf(owner, asset string) uint64
	// Decimals reports the asset's raw-unit decimals.
	Decimals(asset string) (uint8, error)
}

// Asset describes one fungible token.
type Asset struct {
	Symbol   string
	Decimals uint8
}

// Bank is an in-memory Ledger. It stands in for the external token-transfer
// collaborator in tests and the demo service.
type Bank struct {
	mu       sync.RWMutex
	assets   map[string]Asset
	balances map[string]map[string]uint64 // owner -> asset -> balance
}

func NewBank() *Bank {
	return &Bank{
		assets:   make(map[string]Asset),
		balances: make(map[string]map[string]uint64),
	}
}

// CreateAsset registers a new asset symbol.
func (b *Bank) CreateAsset(symbol string, decimals uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.assets[symbol]; ok {
		return ErrAssetExists
	}
	b.assets[symbol] = Asset{Symbol: symbol, Decimals: decimals}
	return nil
}

// Mint credits an account out of thin air. Test and faucet use only.
func (b *Bank) Mint(owner, asset string, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.assets[asset]; !ok {
		return ErrUnknownAsset
	}
	b.credit(owner, asset, amount)
	return nil
}

func (b *Bank) Transfer(from, to, asset string, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.assets[asset]; !ok {
		return ErrUnknownAsset
	}
	if amount == 0 {
		return nil
	}
	have := b.balances[from][asset]
	if have < amount {
		return ErrInsufficientBalance
	}
	b.balances[from][asset] = have - amount
	b.credit(to, asset, amount)
	return nil
}

func (b *Bank) BalanceOf(owner, asset string) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[owner][asset]
}

func (b *Bank) Decimals(asset string) (uint8, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	a, ok := b.assets[asset]
	if !ok {
		return 0, ErrUnknownAsset
	}
	return a.Decimals, nil
}

// Assets returns the registered assets in no particular order.
func (b *Bank) Assets() []Asset {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Asset, 0, len(b.assets))
	for _, a := range b.assets {
		out = append(out, a)
	}
	return out
}

// credit assumes b.mu is held.
func (b *Bank) credit(owner, asset string, amount uint64) {
	m, ok := b.balances[owner]
	if !ok {
		m = make(map[string]uint64)
		b.balances[owner] = m
	}
	m[asset] += amount
}
