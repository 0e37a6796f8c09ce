package market

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/rickgao/coinfo/internal/model"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sort orders accepted by QueryTickers.
const (
	SortVolume  = "volume"
	SortName    = "name"
	SortChange  = "change"
	SortGainers = "gainers"
	SortLosers  = "losers"
	SortActive  = "active"
)

// ErrInvalidSort is returned for an unknown sort order.
var ErrInvalidSort = errors.New("invalid sort")

// QueryOptions filters and orders a ticker listing.
type QueryOptions struct {
	Quote string // Quote currency prefix, e.g. KRW. Empty keeps all.
	Sort  string // Empty means volume.
	Limit int    // <= 0 keeps all.
}

// Query answers read-side requests against a Table.
type Query struct {
	table *Table
}

// NewQuery creates a query helper over table.
func NewQuery(table *Table) *Query {
	return &Query{table: table}
}

// GetTickerData returns a single record.
func (q *Query) GetTickerData(exchange model.Exchange, symbol string) (model.Ticker, bool) {
	return q.table.Read(exchange, symbol)
}

// GetExchangeData returns every record for an exchange.
func (q *Query) GetExchangeData(exchange model.Exchange) map[string]model.Ticker {
	return q.table.ReadAll(exchange)
}

// GetAllMarketData returns the whole table.
func (q *Query) GetAllMarketData() map[model.Exchange]map[string]model.Ticker {
	return q.table.ReadAllExchanges()
}

// GetTickers looks up each key and skips the ones that have no record.
func (q *Query) GetTickers(keys []model.Key) []model.Ticker {
	out := make([]model.Ticker, 0, len(keys))
	for _, k := range keys {
		if tk, ok := q.table.Read(k.Exchange, k.Symbol); ok {
			out = append(out, tk)
		}
	}
	return out
}

// QueryTickers filters an exchange's records by quote currency, orders them
// and applies the limit.
func (q *Query) QueryTickers(exchange model.Exchange, opts QueryOptions) ([]model.Ticker, error) {
	sortBy := opts.Sort
	if sortBy == "" {
		sortBy = SortVolume
	}

	tickers := filterByQuote(q.table.ReadAll(exchange), opts.Quote)

	switch sortBy {
	case SortVolume:
		slices.SortFunc(tickers, func(a, b model.Ticker) int {
			return bySymbol(cmp.Compare(b.Volume24h, a.Volume24h), a, b)
		})
	case SortName:
		col := collate.New(language.Und)
		slices.SortFunc(tickers, func(a, b model.Ticker) int {
			return col.CompareString(a.Symbol, b.Symbol)
		})
	case SortChange:
		slices.SortFunc(tickers, func(a, b model.Ticker) int {
			return bySymbol(cmp.Compare(b.Change24h, a.Change24h), a, b)
		})
	case SortGainers:
		tickers = slices.DeleteFunc(tickers, func(t model.Ticker) bool { return t.Change24h <= 0 })
		slices.SortFunc(tickers, func(a, b model.Ticker) int {
			return bySymbol(cmp.Compare(b.Change24h, a.Change24h), a, b)
		})
	case SortLosers:
		tickers = slices.DeleteFunc(tickers, func(t model.Ticker) bool { return t.Change24h >= 0 })
		slices.SortFunc(tickers, func(a, b model.Ticker) int {
			return bySymbol(cmp.Compare(a.Change24h, b.Change24h), a, b)
		})
	case SortActive:
		scores := activityScores(tickers)
		slices.SortFunc(tickers, func(a, b model.Ticker) int {
			return bySymbol(cmp.Compare(scores[b.Symbol], scores[a.Symbol]), a, b)
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, opts.Sort)
	}

	if opts.Limit > 0 && len(tickers) > opts.Limit {
		tickers = tickers[:opts.Limit]
	}
	return tickers, nil
}

// QuoteOf returns the quote currency of a symbol such as KRW-BTC.
func QuoteOf(symbol string) string {
	quote, _, _ := strings.Cut(symbol, "-")
	return quote
}

func filterByQuote(bySymbol map[string]model.Ticker, quote string) []model.Ticker {
	quote = strings.ToUpper(strings.TrimSpace(quote))

	out := make([]model.Ticker, 0, len(bySymbol))
	for _, tk := range bySymbol {
		if quote != "" && QuoteOf(tk.Symbol) != quote {
			continue
		}
		out = append(out, tk)
	}
	return out
}

// bySymbol breaks ties so results are stable across calls.
func bySymbol(c int, a, b model.Ticker) int {
	if c != 0 {
		return c
	}
	return strings.Compare(a.Symbol, b.Symbol)
}

// activityScores weighs the volume percentile at 60% and the absolute
// change percentile at 40%.
func activityScores(tickers []model.Ticker) map[string]float64 {
	volumes := make([]float64, len(tickers))
	changes := make([]float64, len(tickers))
	for i, t := range tickers {
		volumes[i] = float64(t.Volume24h)
		changes[i] = math.Abs(t.Change24h)
	}
	sort.Float64s(volumes)
	sort.Float64s(changes)

	scores := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		scores[t.Symbol] = percentile(volumes, float64(t.Volume24h))*0.6 +
			percentile(changes, math.Abs(t.Change24h))*0.4
	}
	return scores
}

// percentile returns the share of sorted values strictly below v, in 0..100.
func percentile(sorted []float64, v float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := sort.SearchFloat64s(sorted, v)
	if idx == len(sorted) {
		return 100
	}
	return float64(idx) / float64(len(sorted)) * 100
}
