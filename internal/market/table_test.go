package market

import (
	"sync"
	"testing"

	"github.com/rickgao/coinfo/internal/model"
)

type recorder struct {
	mu    sync.Mutex
	calls []model.Key
}

func (r *recorder) notify(exchange model.Exchange, symbol string) {
	r.mu.Lock()
	r.calls = append(r.calls, model.NewKey(exchange, symbol))
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestTable_WriteDirection(t *testing.T) {
	rec := &recorder{}
	table := NewTable(WithNotifier(rec.notify))

	steps := []struct {
		price  float64
		stored bool
		want   model.Direction
	}{
		{100, true, model.Flat},
		{101, true, model.Up},
		{101, false, model.Up},
		{99.5, true, model.Down},
		{99.5, false, model.Down},
		{100, true, model.Up},
	}

	for i, s := range steps {
		stored := table.Write(model.Upbit, "KRW-BTC", model.Ticker{Price: s.price})
		if stored != s.stored {
			t.Errorf("step %d: Write() = %v, want %v", i, stored, s.stored)
		}
		got, ok := table.Read(model.Upbit, "KRW-BTC")
		if !ok {
			t.Fatalf("step %d: record missing", i)
		}
		if got.Direction != s.want {
			t.Errorf("step %d: Direction = %v, want %v", i, got.Direction, s.want)
		}
	}

	if rec.count() != 4 {
		t.Errorf("notifications = %d, want 4", rec.count())
	}
}

// Two ticks, the second equal: one stored record, one notification.
func TestTable_FlatTickSuppressed(t *testing.T) {
	rec := &recorder{}
	table := NewTable(WithNotifier(rec.notify))

	table.Write(model.Upbit, "KRW-BTC", model.Ticker{Price: 100, Volume24h: 1})
	table.Write(model.Upbit, "KRW-BTC", model.Ticker{Price: 100, Volume24h: 2})

	got, _ := table.Read(model.Upbit, "KRW-BTC")
	if got.Direction != model.Flat {
		t.Errorf("Direction = %v, want flat", got.Direction)
	}
	if got.Volume24h != 1 {
		t.Errorf("Volume24h = %d, want 1 (second tick must not mutate)", got.Volume24h)
	}
	if rec.count() != 1 {
		t.Errorf("notifications = %d, want 1", rec.count())
	}
}

func TestTable_KeysFromArguments(t *testing.T) {
	table := NewTable()
	table.Write(model.Binance, "BTCUSDT", model.Ticker{Exchange: model.Upbit, Symbol: "wrong", Price: 1})

	got, ok := table.Read(model.Binance, "BTCUSDT")
	if !ok {
		t.Fatal("record missing")
	}
	if got.Exchange != model.Binance || got.Symbol != "BTCUSDT" {
		t.Errorf("record key = %v, want binance:BTCUSDT", got.Key())
	}
}

func TestTable_NilNotifier(t *testing.T) {
	table := NewTable()
	if !table.Write(model.Upbit, "KRW-ETH", model.Ticker{Price: 1}) {
		t.Error("Write() = false, want true")
	}
}

func TestTable_SetNotifierOverwrites(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	table := NewTable(WithNotifier(first.notify))
	table.SetNotifier(second.notify)

	table.Write(model.Upbit, "KRW-BTC", model.Ticker{Price: 1})

	if first.count() != 0 || second.count() != 1 {
		t.Errorf("first=%d second=%d, want 0/1", first.count(), second.count())
	}
}

// The hook runs after the lock is released, so it may read the table.
func TestTable_NotifierCanRead(t *testing.T) {
	table := NewTable()
	var seen model.Ticker
	table.SetNotifier(func(exchange model.Exchange, symbol string) {
		seen, _ = table.Read(exchange, symbol)
	})

	table.Write(model.Upbit, "KRW-BTC", model.Ticker{Price: 42})
	if seen.Price != 42 {
		t.Errorf("notifier saw price %v, want 42", seen.Price)
	}
}

func TestTable_ReadAllCopies(t *testing.T) {
	table := NewTable()
	table.Write(model.Upbit, "KRW-BTC", model.Ticker{Price: 1})
	table.Write(model.Upbit, "KRW-ETH", model.Ticker{Price: 2})
	table.Write(model.Binance, "BTCUSDT", model.Ticker{Price: 3})

	all := table.ReadAll(model.Upbit)
	if len(all) != 2 {
		t.Fatalf("len(ReadAll) = %d, want 2", len(all))
	}
	delete(all, "KRW-BTC")
	if _, ok := table.Read(model.Upbit, "KRW-BTC"); !ok {
		t.Error("mutating ReadAll result changed the table")
	}

	if got := table.ReadAll(model.Exchange(9)); len(got) != 0 {
		t.Errorf("ReadAll(unknown) = %v, want empty", got)
	}

	every := table.ReadAllExchanges()
	if len(every) != 2 || len(every[model.Binance]) != 1 {
		t.Errorf("ReadAllExchanges = %v", every)
	}
	if table.Len() != 3 {
		t.Errorf("Len() = %d, want 3", table.Len())
	}
}

func TestTable_DeleteAndClear(t *testing.T) {
	table := NewTable()
	table.Write(model.Upbit, "KRW-BTC", model.Ticker{Price: 1})
	table.Write(model.Upbit, "KRW-ETH", model.Ticker{Price: 2})

	table.Delete(model.Upbit, "KRW-BTC")
	if _, ok := table.Read(model.Upbit, "KRW-BTC"); ok {
		t.Error("record still present after Delete")
	}

	// A re-created key starts flat again.
	table.Write(model.Upbit, "KRW-BTC", model.Ticker{Price: 5})
	if got, _ := table.Read(model.Upbit, "KRW-BTC"); got.Direction != model.Flat {
		t.Errorf("Direction = %v, want flat", got.Direction)
	}

	table.ClearExchange(model.Upbit)
	if table.Len() != 0 {
		t.Errorf("Len() = %d after ClearExchange, want 0", table.Len())
	}
}

func TestTable_ConcurrentWrites(t *testing.T) {
	rec := &recorder{}
	table := NewTable(WithNotifier(rec.notify))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				table.Write(model.Upbit, "KRW-BTC", model.Ticker{Price: float64(g*1000 + i)})
				table.Read(model.Upbit, "KRW-BTC")
			}
		}(g)
	}
	wg.Wait()

	if rec.count() == 0 {
		t.Error("expected notifications")
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	if _, ok := c.MarketInfo(model.Upbit); ok {
		t.Error("MarketInfo on empty catalog should report false")
	}

	c.SetMarketInfo(model.Upbit, []model.MarketInfo{{Symbol: "KRW-BTC"}, {Symbol: "KRW-ETH"}})
	c.SetMarketInfo(model.Upbit, []model.MarketInfo{{Symbol: "KRW-XRP"}})

	got, ok := c.MarketInfo(model.Upbit)
	if !ok || len(got) != 1 || got[0].Symbol != "KRW-XRP" {
		t.Errorf("MarketInfo = %v, %v; want wholesale replacement", got, ok)
	}
}
