// Package bots provides demo traffic for the exchange: a market maker that
// keeps two-sided quotes resting and a noise trader that crosses them. Bots
// trade through the same router surface as any other caller.
package bots

import (
	"sync"
	"time"

	"lob/internal/router"
)

// Bot is the interface all trading bots implement.
type Bot interface {
	Owner() string
	Start()
	Stop()
}

// BaseBot holds what every bot needs: an identity, the router it trades
// through, and a stop channel.
type BaseBot struct {
	mu sync.Mutex

	owner    string
	marketID uint8
	router   *router.Router

	stopCh chan struct{}
}

func NewBaseBot(owner string, marketID uint8, rt *router.Router) *BaseBot {
	return &BaseBot{
		owner:    owner,
		marketID: marketID,
		router:   rt,
		stopCh:   make(chan struct{}),
	}
}

func (b *BaseBot) Owner() string {
	return b.owner
}

func (b *BaseBot) Stop() {
	close(b.stopCh)
}

// Manager owns a collection of bots.
type Manager struct {
	mu   sync.Mutex
	bots []Bot
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) Add(bot Bot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bots = append(m.bots, bot)
}

func (m *Manager) StartAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bot := range m.bots {
		bot.Start()
	}
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bot := range m.bots {
		bot.Stop()
	}
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bots)
}

// runPeriodic runs fn on a ticker until stopCh closes.
func runPeriodic(interval time.Duration, stopCh <-chan struct{}, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-stopCh:
			return
		}
	}
}
