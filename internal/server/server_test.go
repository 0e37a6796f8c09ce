package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rickgao/coinfo/internal/connection"
	"github.com/rickgao/coinfo/internal/hub"
	"github.com/rickgao/coinfo/internal/market"
	"github.com/rickgao/coinfo/internal/model"
)

type fakeFeed struct {
	status connection.Status
}

func (f fakeFeed) Status() connection.Status { return f.status }

func newTestServer(t *testing.T, health connection.Health) (*Server, *market.Table) {
	t.Helper()

	table := market.NewTable()
	seed := []model.Ticker{
		{Symbol: "KRW-A", Price: 1, Change24h: 3, Volume24h: 50},
		{Symbol: "KRW-B", Price: 2, Change24h: -2, Volume24h: 200},
		{Symbol: "USDT-C", Price: 3, Change24h: 5, Volume24h: 10},
		{Symbol: "KRW-D", Price: 4, Change24h: 1, Volume24h: 5},
	}
	for _, tk := range seed {
		table.Write(model.Upbit, tk.Symbol, tk)
	}

	catalog := market.NewCatalog()
	catalog.SetMarketInfo(model.Upbit, []model.MarketInfo{{Symbol: "KRW-A", EnglishName: "Alpha"}})

	s := New(Config{}, Dependencies{
		Query:   market.NewQuery(table),
		Catalog: catalog,
		Feeds: map[model.Exchange]StatusSource{
			model.Upbit: fakeFeed{status: connection.Status{
				Exchange:  model.Upbit,
				State:     connection.StateSubscribed,
				Connected: health != connection.HealthUnhealthy,
				Health:    health,
			}},
		},
		Hub: hub.New(hub.NewRegistry(), hub.NewIndex(), nil, nil),
	}, nil)
	return s, table
}

func get(t *testing.T, s *Server, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("GET %s: decode %q: %v", path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func symbols(tickers []model.Ticker) []string {
	out := make([]string, len(tickers))
	for i, tk := range tickers {
		out[i] = tk.Symbol
	}
	return out
}

func TestHealth(t *testing.T) {
	tests := []struct {
		health connection.Health
		code   int
	}{
		{connection.HealthHealthy, http.StatusOK},
		{connection.HealthDegraded, http.StatusOK},
		{connection.HealthUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.health), func(t *testing.T) {
			s, _ := newTestServer(t, tt.health)
			var resp struct {
				Status string `json:"status"`
				Feeds  map[string]struct {
					Health string `json:"health"`
				} `json:"feeds"`
			}
			if code := get(t, s, "/health", &resp); code != tt.code {
				t.Errorf("code = %d, want %d", code, tt.code)
			}
			if resp.Status != string(tt.health) {
				t.Errorf("status = %q, want %q", resp.Status, tt.health)
			}
			if resp.Feeds["upbit"].Health != string(tt.health) {
				t.Errorf("feeds = %+v", resp.Feeds)
			}
		})
	}
}

func TestHealth_NoFeeds(t *testing.T) {
	s := New(Config{}, Dependencies{Query: market.NewQuery(market.NewTable())}, nil)
	if code := get(t, s, "/health", nil); code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503", code)
	}
}

func TestTickers(t *testing.T) {
	s, _ := newTestServer(t, connection.HealthHealthy)

	tests := []struct {
		path string
		want string
	}{
		{"/api/upbit/tickers", "[KRW-A KRW-B KRW-D USDT-C]"},
		{"/api/upbit/tickers?symbols=KRW-B,%20KRW-A,KRW-ZZZ", "[KRW-B KRW-A]"},
		{"/api/UPBIT/tickers?symbols=USDT-C", "[USDT-C]"},
		{"/api/tickers?symbols=upbit:KRW-D,binance:BTC-USDT", "[KRW-D]"},
		{"/api/tickers", "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var got []model.Ticker
			if code := get(t, s, tt.path, &got); code != http.StatusOK {
				t.Fatalf("code = %d", code)
			}
			if fmt.Sprint(symbols(got)) != tt.want {
				t.Errorf("symbols = %v, want %s", symbols(got), tt.want)
			}
		})
	}
}

func TestHot(t *testing.T) {
	s, table := newTestServer(t, connection.HealthHealthy)

	tests := []struct {
		path    string
		want    string
		hotType string
	}{
		{"/api/upbit/tickers/hot", "[KRW-B KRW-A USDT-C KRW-D]", "volume"},
		{"/api/upbit/tickers/hot?quote=krw&limit=1", "[KRW-B]", "volume"},
		{"/api/upbit/tickers/hot?type=gainers", "[USDT-C KRW-A KRW-D]", "gainer"},
		{"/api/upbit/tickers/hot?type=losers", "[KRW-B]", "loser"},
		{"/api/upbit/tickers/hot?type=active&quote=KRW&limit=2", "", "active"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var got []HotTicker
			if code := get(t, s, tt.path, &got); code != http.StatusOK {
				t.Fatalf("code = %d", code)
			}
			if len(got) == 0 {
				t.Fatal("empty hot list")
			}
			names := make([]string, len(got))
			for i, h := range got {
				names[i] = h.Symbol
				if h.HotType != tt.hotType {
					t.Errorf("%s hotType = %q, want %q", h.Symbol, h.HotType, tt.hotType)
				}
			}
			if tt.want != "" && fmt.Sprint(names) != tt.want {
				t.Errorf("symbols = %v, want %s", names, tt.want)
			}
		})
	}

	// Default limit is 20.
	for i := 0; i < 30; i++ {
		sym := fmt.Sprintf("KRW-X%02d", i)
		table.Write(model.Upbit, sym, model.Ticker{Price: 1, Volume24h: int64(i)})
	}
	var got []HotTicker
	get(t, s, "/api/upbit/tickers/hot", &got)
	if len(got) != DefaultHotLimit {
		t.Errorf("default hot list length = %d, want %d", len(got), DefaultHotLimit)
	}
}

func TestQuote(t *testing.T) {
	s, _ := newTestServer(t, connection.HealthHealthy)

	tests := []struct {
		path string
		want string
	}{
		{"/api/upbit/tickers/quote/KRW", "[KRW-B KRW-A KRW-D]"},
		{"/api/upbit/tickers/quote/krw?sort=name", "[KRW-A KRW-B KRW-D]"},
		{"/api/upbit/tickers/quote/KRW?sort=change&limit=2", "[KRW-A KRW-D]"},
		{"/api/upbit/tickers/quote/BTC", "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var got []model.Ticker
			if code := get(t, s, tt.path, &got); code != http.StatusOK {
				t.Fatalf("code = %d", code)
			}
			if fmt.Sprint(symbols(got)) != tt.want {
				t.Errorf("symbols = %v, want %s", symbols(got), tt.want)
			}
		})
	}
}

func TestBadRequests(t *testing.T) {
	s, _ := newTestServer(t, connection.HealthHealthy)

	paths := []string{
		"/api/kraken/tickers",
		"/api/upbit/tickers/hot?type=trending",
		"/api/upbit/tickers/hot?limit=abc",
		"/api/upbit/tickers/hot?limit=-1",
		"/api/upbit/tickers/quote/KRW?sort=gainers",
		"/api/upbit/tickers/quote/KRW?limit=x",
		"/api/tickers?symbols=KRW-BTC",
		"/api/nope/markets",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			var body map[string]string
			if code := get(t, s, path, &body); code != http.StatusBadRequest {
				t.Errorf("code = %d, want 400", code)
			}
			if body["error"] == "" {
				t.Errorf("missing error message: %v", body)
			}
		})
	}
}

func TestMarketsAndStatus(t *testing.T) {
	s, _ := newTestServer(t, connection.HealthHealthy)

	var markets []model.MarketInfo
	if code := get(t, s, "/api/upbit/markets", &markets); code != http.StatusOK {
		t.Fatalf("markets code = %d", code)
	}
	if len(markets) != 1 || markets[0].EnglishName != "Alpha" {
		t.Errorf("markets = %+v", markets)
	}

	var empty []model.MarketInfo
	get(t, s, "/api/binance/markets", &empty)
	if empty == nil || len(empty) != 0 {
		t.Errorf("binance markets = %v, want []", empty)
	}

	var status map[string]any
	if code := get(t, s, "/api/upbit/status", &status); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if status["state"] != string(connection.StateSubscribed) || status["exchange"] != "upbit" {
		t.Errorf("status = %v", status)
	}

	if code := get(t, s, "/api/binance/status", nil); code != http.StatusNotFound {
		t.Errorf("binance status code = %d, want 404", code)
	}
}

func TestTimeAndStats(t *testing.T) {
	s, _ := newTestServer(t, connection.HealthHealthy)
	fixed := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return fixed }

	var tm map[string]int64
	get(t, s, "/api/time", &tm)
	if tm["serverTime"] != fixed.UnixMilli() {
		t.Errorf("serverTime = %d", tm["serverTime"])
	}

	var stats struct {
		Clients struct {
			Connections int `json:"connections"`
		} `json:"clients"`
		Feeds      map[string]any `json:"feeds"`
		ServerTime int64          `json:"serverTime"`
	}
	if code := get(t, s, "/api/websocket/stats", &stats); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if _, ok := stats.Feeds["upbit"]; !ok || stats.ServerTime != fixed.UnixMilli() {
		t.Errorf("stats = %+v", stats)
	}
}
