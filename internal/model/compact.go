package model

import (
	"fmt"
	"math"
)

// Positions inside a CompactTicker. Wire consumers decode by position, so this
// mapping is part of the protocol.
const (
	CompactExchange = iota
	CompactSymbol
	CompactPrice
	CompactDirection
	CompactChange24h
	CompactChangeAmount24h
	CompactVolume24h

	compactLen
)

// CompactTicker is the fixed-position array form of a Ticker:
// [exchangeId, symbol, price, direction, change24h, changeAmount24h, volume24h].
type CompactTicker [compactLen]any

// Compact converts the ticker to its wire tuple.
func (t Ticker) Compact() CompactTicker {
	return CompactTicker{
		CompactExchange:        int(t.Exchange),
		CompactSymbol:          t.Symbol,
		CompactPrice:           t.Price,
		CompactDirection:       int(t.Direction),
		CompactChange24h:       t.Change24h,
		CompactChangeAmount24h: t.ChangeAmount24h,
		CompactVolume24h:       t.Volume24h,
	}
}

// DecodeCompact rebuilds a Ticker from a decoded tuple. Decoders widen or
// narrow numbers differently (msgpack yields int8/uint16/..., JSON float64),
// so every numeric kind is accepted.
func DecodeCompact(v []any) (Ticker, error) {
	if len(v) != compactLen {
		return Ticker{}, fmt.Errorf("compact ticker: want %d fields, got %d", compactLen, len(v))
	}

	ex, err := toInt64(v[CompactExchange])
	if err != nil {
		return Ticker{}, fmt.Errorf("compact ticker exchange: %w", err)
	}
	symbol, ok := v[CompactSymbol].(string)
	if !ok {
		return Ticker{}, fmt.Errorf("compact ticker symbol: unexpected %T", v[CompactSymbol])
	}
	price, err := toFloat64(v[CompactPrice])
	if err != nil {
		return Ticker{}, fmt.Errorf("compact ticker price: %w", err)
	}
	dir, err := toInt64(v[CompactDirection])
	if err != nil {
		return Ticker{}, fmt.Errorf("compact ticker direction: %w", err)
	}
	change, err := toFloat64(v[CompactChange24h])
	if err != nil {
		return Ticker{}, fmt.Errorf("compact ticker change: %w", err)
	}
	amount, err := toFloat64(v[CompactChangeAmount24h])
	if err != nil {
		return Ticker{}, fmt.Errorf("compact ticker change amount: %w", err)
	}
	volume, err := toInt64(v[CompactVolume24h])
	if err != nil {
		return Ticker{}, fmt.Errorf("compact ticker volume: %w", err)
	}

	return Ticker{
		Exchange:        Exchange(ex),
		Symbol:          symbol,
		Price:           price,
		Direction:       Direction(dir),
		Change24h:       change,
		ChangeAmount24h: amount,
		Volume24h:       volume,
	}, nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	default:
		i, err := toInt64(v)
		return float64(i), err
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not integral", n)
		}
		return int64(n), nil
	case float32:
		f := float64(n)
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("value %v is not integral", f)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}
