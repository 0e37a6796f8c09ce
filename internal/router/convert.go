package router

import (
	"github.com/rickgao/coinfo/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToTicker converts a feed update into a table record. The change rate
// becomes a percentage rounded to 2 places and the 24h traded value is
// truncated to an integer. Direction is left for the table to decide.
func ToTicker(u TickerUpdate) model.Ticker {
	return model.Ticker{
		Symbol:          u.Symbol,
		Price:           u.TradePrice.InexactFloat64(),
		Change24h:       u.SignedChangeRate.Mul(hundred).Round(2).InexactFloat64(),
		ChangeAmount24h: u.SignedChangePrice.InexactFloat64(),
		Volume24h:       u.AccTradePrice24h.Truncate(0).IntPart(),
	}
}
