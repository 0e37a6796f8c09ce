package market

import (
	"sync"

	"github.com/rickgao/coinfo/internal/model"
)

// Catalog holds the instrument listing of each exchange.
type Catalog struct {
	mu      sync.RWMutex
	markets map[model.Exchange][]model.MarketInfo
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		markets: make(map[model.Exchange][]model.MarketInfo),
	}
}

// SetMarketInfo replaces the listing for an exchange.
func (c *Catalog) SetMarketInfo(exchange model.Exchange, markets []model.MarketInfo) {
	cp := append([]model.MarketInfo(nil), markets...)

	c.mu.Lock()
	c.markets[exchange] = cp
	c.mu.Unlock()
}

// MarketInfo returns a copy of the listing for an exchange.
func (c *Catalog) MarketInfo(exchange model.Exchange) ([]model.MarketInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	markets, ok := c.markets[exchange]
	if !ok {
		return nil, false
	}
	return append([]model.MarketInfo(nil), markets...), true
}
