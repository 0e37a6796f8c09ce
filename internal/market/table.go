package market

import (
	"sync"

	"github.com/rickgao/coinfo/internal/model"
)

// Notifier is called after a ticker is stored. It runs outside the table lock.
type Notifier func(exchange model.Exchange, symbol string)

// Option configures a Table.
type Option func(*Table)

// WithNotifier registers the change hook at construction.
func WithNotifier(fn Notifier) Option {
	return func(t *Table) {
		t.notify = fn
	}
}

// Table is the latest-value store keyed by exchange then symbol.
type Table struct {
	mu     sync.RWMutex
	data   map[model.Exchange]map[string]model.Ticker
	notify Notifier
}

// NewTable creates an empty table.
func NewTable(opts ...Option) *Table {
	t := &Table{
		data: make(map[model.Exchange]map[string]model.Ticker),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetNotifier replaces the change hook. Intended for wiring before traffic starts.
func (t *Table) SetNotifier(fn Notifier) {
	t.mu.Lock()
	t.notify = fn
	t.mu.Unlock()
}

// Write stores tk under (exchange, symbol) when the price moved and reports
// whether it did. The direction is derived from the previously stored price:
// the first record for a key is Flat, an unchanged price is dropped.
func (t *Table) Write(exchange model.Exchange, symbol string, tk model.Ticker) bool {
	tk.Exchange = exchange
	tk.Symbol = symbol

	t.mu.Lock()
	bySymbol, ok := t.data[exchange]
	if !ok {
		bySymbol = make(map[string]model.Ticker)
		t.data[exchange] = bySymbol
	}

	prev, exists := bySymbol[symbol]
	switch {
	case !exists:
		tk.Direction = model.Flat
	case tk.Price > prev.Price:
		tk.Direction = model.Up
	case tk.Price < prev.Price:
		tk.Direction = model.Down
	default:
		t.mu.Unlock()
		return false
	}

	bySymbol[symbol] = tk
	notify := t.notify
	t.mu.Unlock()

	if notify != nil {
		notify(exchange, symbol)
	}
	return true
}

// Read returns the record for (exchange, symbol).
func (t *Table) Read(exchange model.Exchange, symbol string) (model.Ticker, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tk, ok := t.data[exchange][symbol]
	return tk, ok
}

// ReadAll returns a copy of every record for one exchange.
func (t *Table) ReadAll(exchange model.Exchange) map[string]model.Ticker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bySymbol := t.data[exchange]
	out := make(map[string]model.Ticker, len(bySymbol))
	for symbol, tk := range bySymbol {
		out[symbol] = tk
	}
	return out
}

// ReadAllExchanges returns a copy of the whole table.
func (t *Table) ReadAllExchanges() map[model.Exchange]map[string]model.Ticker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[model.Exchange]map[string]model.Ticker, len(t.data))
	for exchange, bySymbol := range t.data {
		cp := make(map[string]model.Ticker, len(bySymbol))
		for symbol, tk := range bySymbol {
			cp[symbol] = tk
		}
		out[exchange] = cp
	}
	return out
}

// Delete removes one record. No notification is sent.
func (t *Table) Delete(exchange model.Exchange, symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if bySymbol, ok := t.data[exchange]; ok {
		delete(bySymbol, symbol)
		if len(bySymbol) == 0 {
			delete(t.data, exchange)
		}
	}
}

// ClearExchange removes every record for an exchange.
func (t *Table) ClearExchange(exchange model.Exchange) {
	t.mu.Lock()
	delete(t.data, exchange)
	t.mu.Unlock()
}

// Len returns the number of stored records across all exchanges.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, bySymbol := range t.data {
		n += len(bySymbol)
	}
	return n
}
