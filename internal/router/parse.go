package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMissingPrice is returned for a ticker frame without a trade price.
var ErrMissingPrice = errors.New("ticker missing trade price")

// ParseTickers decodes one feed frame. A frame is a single object or an array
// of objects. Objects whose kind is not "ticker" are skipped and counted in
// ignored.
func ParseTickers(data []byte, receivedAt time.Time) (updates []TickerUpdate, ignored int, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, 0, errors.New("empty frame")
	}

	var wires []tickerWire
	if data[0] == '[' {
		if err := json.Unmarshal(data, &wires); err != nil {
			return nil, 0, fmt.Errorf("unmarshal ticker array: %w", err)
		}
	} else {
		var w tickerWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, 0, fmt.Errorf("unmarshal ticker: %w", err)
		}
		if w.Error != nil {
			return nil, 0, fmt.Errorf("feed error %s: %s", w.Error.Name, w.Error.Message)
		}
		wires = []tickerWire{w}
	}

	updates = make([]TickerUpdate, 0, len(wires))
	for _, w := range wires {
		if first(w.Ty, w.Type) != "ticker" {
			ignored++
			continue
		}

		u, err := w.toUpdate(receivedAt)
		if err != nil {
			return nil, ignored, err
		}
		updates = append(updates, u)
	}

	return updates, ignored, nil
}

func (w tickerWire) toUpdate(receivedAt time.Time) (TickerUpdate, error) {
	symbol := first(w.Cd, w.Code)
	if symbol == "" {
		return TickerUpdate{}, errors.New("ticker missing code")
	}

	price := firstDecimal(w.Tp, w.TradePrice)
	if !price.Valid {
		return TickerUpdate{}, fmt.Errorf("%w: %s", ErrMissingPrice, symbol)
	}

	return TickerUpdate{
		Symbol:            symbol,
		TradePrice:        price.Decimal,
		SignedChangeRate:  firstDecimal(w.Scr, w.SignedChangeRate).Decimal,
		SignedChangePrice: firstDecimal(w.Scp, w.SignedChangePrice).Decimal,
		AccTradePrice24h:  firstDecimal(w.Atp24h, w.AccTradePrice24h).Decimal,
		ReceivedAt:        receivedAt,
	}, nil
}

func first(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstDecimal(a, b decimal.NullDecimal) decimal.NullDecimal {
	if a.Valid {
		return a
	}
	return b
}
