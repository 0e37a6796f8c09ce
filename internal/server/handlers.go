package server

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/rickgao/coinfo/internal/connection"
	"github.com/rickgao/coinfo/internal/market"
	"github.com/rickgao/coinfo/internal/model"
	"github.com/rickgao/coinfo/internal/version"
)

// DefaultHotLimit is the hot-list length when no limit is given.
const DefaultHotLimit = 20

// Hot list types and the tag each one adds to its entries.
var hotTypes = map[string]string{
	market.SortVolume:  "volume",
	market.SortGainers: "gainer",
	market.SortLosers:  "loser",
	market.SortActive:  "active",
}

// HotTicker is a hot-list entry.
type HotTicker struct {
	model.Ticker
	HotType string `json:"hotType"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    connection.Health            `json:"status"`
	Feeds     map[string]connection.Status `json:"feeds"`
	UptimeSec int64                        `json:"uptimeSec"`
	Timestamp int64                        `json:"timestamp"`
	Build     version.Info                 `json:"build"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    connection.HealthUnhealthy,
		Feeds:     s.feedStatuses(),
		UptimeSec: int64(s.now().Sub(s.startedAt).Seconds()),
		Timestamp: s.now().UnixMilli(),
		Build:     version.Get(),
	}

	if len(resp.Feeds) > 0 {
		resp.Status = connection.HealthHealthy
		for _, st := range resp.Feeds {
			resp.Status = worse(resp.Status, st.Health)
		}
	}

	code := http.StatusOK
	if resp.Status == connection.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

func worse(a, b connection.Health) connection.Health {
	rank := func(h connection.Health) int {
		switch h {
		case connection.HealthHealthy:
			return 0
		case connection.HealthDegraded:
			return 1
		default:
			return 2
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int64{"serverTime": s.now().UnixMilli()})
}

// handleTickersByKey serves GET /api/tickers?symbols=upbit:KRW-BTC,...
func (s *Server) handleTickersByKey(w http.ResponseWriter, r *http.Request) {
	var keys []model.Key
	for _, raw := range splitList(r.URL.Query().Get("symbols")) {
		k, err := model.ParseKey(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		keys = append(keys, k)
	}
	s.writeJSON(w, http.StatusOK, s.deps.Query.GetTickers(keys))
}

// handleTickers serves GET /api/{exchange}/tickers[?symbols=A,B].
func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	exchange, ok := s.exchangeParam(w, r)
	if !ok {
		return
	}

	symbols := splitList(r.URL.Query().Get("symbols"))
	if len(symbols) > 0 {
		keys := make([]model.Key, len(symbols))
		for i, sym := range symbols {
			keys[i] = model.NewKey(exchange, sym)
		}
		s.writeJSON(w, http.StatusOK, s.deps.Query.GetTickers(keys))
		return
	}

	all := s.deps.Query.GetExchangeData(exchange)
	out := make([]model.Ticker, 0, len(all))
	for _, tk := range all {
		out = append(out, tk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	s.writeJSON(w, http.StatusOK, out)
}

// handleHot serves GET /api/{exchange}/tickers/hot?type=&quote=&limit=.
func (s *Server) handleHot(w http.ResponseWriter, r *http.Request) {
	exchange, ok := s.exchangeParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	hotType := q.Get("type")
	if hotType == "" {
		hotType = market.SortVolume
	}
	tag, ok := hotTypes[hotType]
	if !ok {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid type %q: use volume, gainers, losers or active", hotType))
		return
	}

	limit, err := parseLimit(q.Get("limit"), DefaultHotLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tickers, err := s.deps.Query.QueryTickers(exchange, market.QueryOptions{
		Quote: strings.ToUpper(q.Get("quote")),
		Sort:  hotType,
		Limit: limit,
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := make([]HotTicker, len(tickers))
	for i, tk := range tickers {
		out[i] = HotTicker{Ticker: tk, HotType: tag}
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleQuote serves GET /api/{exchange}/tickers/quote/{quote}?sort=&limit=.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	exchange, ok := s.exchangeParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	sortBy := q.Get("sort")
	switch sortBy {
	case "":
		sortBy = market.SortVolume
	case market.SortVolume, market.SortName, market.SortChange:
	default:
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid sort %q: use volume, name or change", sortBy))
		return
	}

	limit, err := parseLimit(q.Get("limit"), 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tickers, err := s.deps.Query.QueryTickers(exchange, market.QueryOptions{
		Quote: strings.ToUpper(r.PathValue("quote")),
		Sort:  sortBy,
		Limit: limit,
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, tickers)
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	exchange, ok := s.exchangeParam(w, r)
	if !ok {
		return
	}

	markets := []model.MarketInfo{}
	if s.deps.Catalog != nil {
		if m, ok := s.deps.Catalog.MarketInfo(exchange); ok {
			markets = m
		}
	}
	s.writeJSON(w, http.StatusOK, markets)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	exchange, ok := s.exchangeParam(w, r)
	if !ok {
		return
	}

	feed, ok := s.deps.Feeds[exchange]
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("no feed for exchange %s", exchange))
		return
	}
	s.writeJSON(w, http.StatusOK, feed.Status())
}

// StatsResponse is the diagnostics snapshot of GET /api/websocket/stats.
type StatsResponse struct {
	Clients    any                          `json:"clients,omitempty"`
	Broadcast  any                          `json:"broadcast,omitempty"`
	Feeds      map[string]connection.Status `json:"feeds"`
	ServerTime int64                        `json:"serverTime"`
}

func (s *Server) handleWebsocketStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Feeds:      s.feedStatuses(),
		ServerTime: s.now().UnixMilli(),
	}
	if s.deps.Hub != nil {
		resp.Clients = s.deps.Hub.Stats()
	}
	if s.deps.Broadcast != nil {
		resp.Broadcast = s.deps.Broadcast.Stats()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) feedStatuses() map[string]connection.Status {
	out := make(map[string]connection.Status, len(s.deps.Feeds))
	for ex, feed := range s.deps.Feeds {
		out[ex.String()] = feed.Status()
	}
	return out
}

func (s *Server) exchangeParam(w http.ResponseWriter, r *http.Request) (model.Exchange, bool) {
	name := r.PathValue("exchange")
	exchange, ok := model.ParseExchange(name)
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid exchange %q", name))
		return 0, false
	}
	return exchange, true
}

// splitList splits a comma-separated parameter, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLimit(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	if n == 0 {
		return def, nil
	}
	return n, nil
}
