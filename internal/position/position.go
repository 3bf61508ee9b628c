// Package position is the read-mostly position cache collaborator consulted
// before accepting externally-sourced chores. Its own consistency is owned by
// the process that feeds it.
package position

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/chorex/chore-engine/internal/model"
)

// Cache answers availability probes for a synthetic chore. The boolean is the
// verdict; the string carries human-readable detail for alerting.
type Cache interface {
	ExtractAvailability(probe model.ChoreBrief) (bool, string)
}

type holdingKey struct {
	account  string
	security string
}

// MemoryCache is a Cache over an in-memory holdings table.
type MemoryCache struct {
	mu       sync.RWMutex
	holdings map[holdingKey]decimal.Decimal
}

// NewMemoryCache creates an empty position cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{holdings: make(map[holdingKey]decimal.Decimal)}
}

// SetHolding installs the available quantity for an account/security pair.
func (c *MemoryCache) SetHolding(account, security string, qty decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdings[holdingKey{account, security}] = qty
}

// ExtractAvailability checks whether the probe's quantity is available. Buys
// are always available from this cache's perspective; sells require holdings.
func (c *MemoryCache) ExtractAvailability(probe model.ChoreBrief) (bool, string) {
	if probe.Side == model.SideBuy {
		return true, "buy side, no holding required"
	}

	c.mu.RLock()
	held, ok := c.holdings[holdingKey{probe.UnderlyingAccount, probe.SecurityID}]
	c.mu.RUnlock()

	if !ok {
		return false, fmt.Sprintf("no holding for account %s security %s",
			probe.UnderlyingAccount, probe.SecurityID)
	}
	if held.LessThan(probe.Qty) {
		return false, fmt.Sprintf("holding %s short of probe qty %s", held, probe.Qty)
	}
	return true, fmt.Sprintf("holding %s covers probe qty %s", held, probe.Qty)
}
