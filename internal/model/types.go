package model

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// Exchanges
// -----------------------------------------------------------------------------

// Exchange identifies a supported exchange. The integer value is the exchange
// id used on the wire, so existing values must never be renumbered.
type Exchange int

const (
	Upbit   Exchange = 0
	Binance Exchange = 1
)

var exchangeNames = [...]string{
	Upbit:   "upbit",
	Binance: "binance",
}

// Exchanges returns all supported exchanges in id order.
func Exchanges() []Exchange {
	return []Exchange{Upbit, Binance}
}

// String returns the lowercase exchange name (e.g. "upbit").
func (e Exchange) String() string {
	if e.Valid() {
		return exchangeNames[e]
	}
	return fmt.Sprintf("exchange(%d)", int(e))
}

// Valid reports whether e is a member of the exchange enumeration.
func (e Exchange) Valid() bool {
	return e >= 0 && int(e) < len(exchangeNames)
}

// ParseExchange resolves an exchange name. Matching is case-insensitive.
func ParseExchange(name string) (Exchange, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range exchangeNames {
		if n == name {
			return Exchange(i), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler so exchanges render as names
// in JSON objects and map keys.
func (e Exchange) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid exchange %d", int(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Exchange) UnmarshalText(text []byte) error {
	x, ok := ParseExchange(string(text))
	if !ok {
		return fmt.Errorf("unknown exchange %q", string(text))
	}
	*e = x
	return nil
}

// -----------------------------------------------------------------------------
// Instrument Keys
// -----------------------------------------------------------------------------

// Key is the composite instrument key used as a map key everywhere.
type Key struct {
	Exchange Exchange
	Symbol   string
}

// NewKey builds a Key.
func NewKey(exchange Exchange, symbol string) Key {
	return Key{Exchange: exchange, Symbol: symbol}
}

// String returns the "exchange:symbol" form (e.g. "upbit:KRW-BTC").
func (k Key) String() string {
	return k.Exchange.String() + ":" + k.Symbol
}

// ParseKey parses an "exchange:symbol" string.
func ParseKey(s string) (Key, error) {
	name, symbol, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || symbol == "" {
		return Key{}, fmt.Errorf("malformed key %q", s)
	}
	ex, ok := ParseExchange(name)
	if !ok {
		return Key{}, fmt.Errorf("unknown exchange in key %q", s)
	}
	return Key{Exchange: ex, Symbol: symbol}, nil
}

// -----------------------------------------------------------------------------
// Tickers
// -----------------------------------------------------------------------------

// Direction is the price movement relative to the previously stored price.
type Direction int

const (
	Down Direction = -1
	Flat Direction = 0
	Up   Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "flat"
	}
}

// Ticker is the latest-value record kept per instrument key.
// JSON names follow the short form served to web clients.
type Ticker struct {
	Exchange        Exchange  `json:"e"`
	Symbol          string    `json:"s"`
	Price           float64   `json:"p"`
	Direction       Direction `json:"d"`
	Change24h       float64   `json:"c24"`  // Percent, 2 decimal places
	ChangeAmount24h float64   `json:"cp24"` // Absolute change vs previous close
	Volume24h       int64     `json:"p24"`  // 24h cumulative trade value, truncated
}

// Key returns the instrument key of the ticker.
func (t Ticker) Key() Key {
	return Key{Exchange: t.Exchange, Symbol: t.Symbol}
}

// MarketInfo describes one instrument in an exchange's universe.
type MarketInfo struct {
	Symbol      string `json:"symbol"`
	KoreanName  string `json:"korean_name"`
	EnglishName string `json:"english_name"`
}
