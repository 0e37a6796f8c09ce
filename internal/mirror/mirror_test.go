package mirror

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/coinfo/internal/market"
	"github.com/rickgao/coinfo/internal/model"
)

func TestMirror_Key(t *testing.T) {
	tests := []struct {
		prefix   string
		exchange model.Exchange
		want     string
	}{
		{"", model.Upbit, "coinfo:tickers:upbit"},
		{"test:t", model.Binance, "test:t:binance"},
	}

	for _, tt := range tests {
		m := New(Config{KeyPrefix: tt.prefix}, nil, nil, nil)
		if got := m.Key(tt.exchange); got != tt.want {
			t.Errorf("Key(%v) = %q, want %q", tt.exchange, got, tt.want)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	m := New(Config{}, nil, nil, nil)
	if m.cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want %+v", m.cfg, DefaultConfig())
	}
}

func TestEncodeFields(t *testing.T) {
	tickers := map[string]model.Ticker{
		"KRW-BTC": {Exchange: model.Upbit, Symbol: "KRW-BTC", Price: 100, Direction: model.Up, Change24h: 1.25, Volume24h: 9},
	}

	fields, err := EncodeFields(tickers)
	if err != nil {
		t.Fatalf("EncodeFields: %v", err)
	}
	raw, ok := fields["KRW-BTC"].(string)
	if !ok {
		t.Fatalf("field type = %T, want string", fields["KRW-BTC"])
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["e"] != "upbit" || m["s"] != "KRW-BTC" || m["p"] != 100.0 || m["d"] != 1.0 || m["c24"] != 1.25 {
		t.Errorf("encoded ticker = %v", m)
	}
}

type emptySource struct{}

func (emptySource) ReadAllExchanges() map[model.Exchange]map[string]model.Ticker { return nil }

func TestMirror_SyncEmptySkipsRedis(t *testing.T) {
	// A nil client would panic if Sync touched Redis.
	m := New(Config{}, nil, emptySource{}, nil)
	n, err := m.Sync(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Sync() = %d, %v; want 0, nil", n, err)
	}
}

// Runs only when COINFO_TEST_REDIS_ADDR points at a scratch Redis.
func TestMirror_SyncRoundTrip(t *testing.T) {
	addr := os.Getenv("COINFO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("COINFO_TEST_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}

	table := market.NewTable()
	table.Write(model.Upbit, "KRW-BTC", model.Ticker{Price: 100})
	table.Write(model.Upbit, "KRW-ETH", model.Ticker{Price: 10})

	m := New(Config{KeyPrefix: "coinfo:test:" + time.Now().Format("150405.000"), TTL: time.Minute}, rdb, table, nil)
	defer rdb.Del(context.Background(), m.Key(model.Upbit))

	n, err := m.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if n != 2 {
		t.Errorf("Sync() = %d, want 2", n)
	}

	// A symbol removed from the table disappears on the next sync.
	table.Delete(model.Upbit, "KRW-ETH")
	if _, err := m.Sync(ctx); err != nil {
		t.Fatalf("second Sync: %v", err)
	}

	got, err := m.Load(ctx, model.Upbit)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got["KRW-BTC"].Price != 100 {
		t.Errorf("Load() = %+v, want only KRW-BTC@100", got)
	}

	ttl, err := rdb.TTL(ctx, m.Key(model.Upbit)).Result()
	if err != nil || ttl <= 0 {
		t.Errorf("TTL = %v, %v; want positive", ttl, err)
	}
}
