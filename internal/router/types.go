package router

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds configuration for the Router.
type Config struct {
	BatchWindow time.Duration // Default: 333ms
	BufferSize  int           // Initial batch buffer capacity. Default: 256
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BatchWindow: 333 * time.Millisecond,
		BufferSize:  256,
	}
}

// TickerUpdate is one parsed ticker frame.
type TickerUpdate struct {
	Symbol            string
	TradePrice        decimal.Decimal
	SignedChangeRate  decimal.Decimal // Fraction, e.g. 0.0123 for +1.23%
	SignedChangePrice decimal.Decimal
	AccTradePrice24h  decimal.Decimal
	ReceivedAt        time.Time
}

// Stats contains runtime statistics.
type Stats struct {
	MessagesReceived int64
	TickersBuffered  int64
	TickersWritten   int64 // Writes the table accepted
	ParseErrors      int64
	Ignored          int64 // Non-ticker frames
	Flushes          int64
	Queue            QueueStats
}

// tickerWire accepts both SIMPLE and DEFAULT field names of the ticker stream.
type tickerWire struct {
	Ty   string `json:"ty"`
	Type string `json:"type"`
	Cd   string `json:"cd"`
	Code string `json:"code"`

	Tp         decimal.NullDecimal `json:"tp"`
	TradePrice decimal.NullDecimal `json:"trade_price"`

	Scr              decimal.NullDecimal `json:"scr"`
	SignedChangeRate decimal.NullDecimal `json:"signed_change_rate"`

	Scp               decimal.NullDecimal `json:"scp"`
	SignedChangePrice decimal.NullDecimal `json:"signed_change_price"`

	Atp24h           decimal.NullDecimal `json:"atp24h"`
	AccTradePrice24h decimal.NullDecimal `json:"acc_trade_price_24h"`

	Error *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}
