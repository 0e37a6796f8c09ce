package broadcast

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/coinfo/internal/hub"
	"github.com/rickgao/coinfo/internal/model"
)

// TickerReader resolves the current value of a key.
type TickerReader interface {
	Read(exchange model.Exchange, symbol string) (model.Ticker, bool)
}

// SubscriberIndex resolves the subscribers of a key.
type SubscriberIndex interface {
	Subscribers(key model.Key) []*hub.Conn
}

// ConnLookup reports whether a connection is still open.
type ConnLookup interface {
	Get(id string) (*hub.Conn, bool)
}

// Config holds broadcaster configuration.
type Config struct {
	FlushInterval time.Duration // Delay between the first mark and its flush (default: 333ms)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{FlushInterval: 333 * time.Millisecond}
}

// Stats holds cumulative broadcast counters.
type Stats struct {
	FlushCount        int64         `json:"flushCount"`
	BroadcastCount    int64         `json:"broadcastCount"`
	TotalChanges      int64         `json:"totalChanges"`
	SkippedSends      int64         `json:"skippedSends"`
	LastFlushAt       time.Time     `json:"lastFlushAt"`
	LastFlushDuration time.Duration `json:"lastFlushDurationNs"`
	Pending           int           `json:"pending"`
}

// Broadcaster batches changed keys and sends them to subscribers.
type Broadcaster struct {
	cfg     Config
	tickers TickerReader
	index   SubscriberIndex
	conns   ConnLookup
	logger  *slog.Logger

	now func() time.Time

	mu      sync.Mutex
	changed map[model.Key]struct{}
	timer   *time.Timer
	armed   bool
	running bool

	// flushMu keeps flushes from overlapping.
	flushMu sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// New creates a broadcaster. It does not flush until Start is called.
func New(cfg Config, tickers TickerReader, index SubscriberIndex, conns ConnLookup, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	return &Broadcaster{
		cfg:     cfg,
		tickers: tickers,
		index:   index,
		conns:   conns,
		logger:  logger.With("component", "broadcaster"),
		now:     time.Now,
		changed: make(map[model.Key]struct{}),
	}
}

// MarkChanged records that a key changed and arms the flush timer if it is
// not already armed. It has the signature of a market.Notifier.
func (b *Broadcaster) MarkChanged(exchange model.Exchange, symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.changed[model.NewKey(exchange, symbol)] = struct{}{}
	b.armLocked()
}

func (b *Broadcaster) armLocked() {
	if b.armed || !b.running || len(b.changed) == 0 {
		return
	}
	b.armed = true
	b.timer = time.AfterFunc(b.cfg.FlushInterval, func() { b.Flush() })
}

// Start enables the flush timer. Marks recorded before Start are flushed
// one interval later.
func (b *Broadcaster) Start(ctx context.Context) error {
	b.mu.Lock()
	b.running = true
	b.armLocked()
	b.mu.Unlock()

	b.logger.Info("broadcaster started", "flush_interval", b.cfg.FlushInterval)
	return nil
}

// Stop cancels any armed timer and waits for an in-flight flush.
func (b *Broadcaster) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.running = false
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.armed = false
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.flushMu.Lock()
		close(done)
		b.flushMu.Unlock()
	}()

	select {
	case <-done:
		b.logger.Info("broadcaster stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush sends every pending change to its subscribers and returns the
// number of messages sent.
func (b *Broadcaster) Flush() int {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	// Swap the change set so marks arriving now arm the next cycle.
	b.mu.Lock()
	changed := b.changed
	b.changed = make(map[model.Key]struct{})
	b.armed = false
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	if len(changed) == 0 {
		return 0
	}
	start := b.now()

	keys := make([]model.Key, 0, len(changed))
	for k := range changed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Exchange != keys[j].Exchange {
			return keys[i].Exchange < keys[j].Exchange
		}
		return keys[i].Symbol < keys[j].Symbol
	})

	// Resolve each key once.
	cache := make(map[model.Key]model.CompactTicker, len(keys))
	for _, k := range keys {
		tk, ok := b.tickers.Read(k.Exchange, k.Symbol)
		if !ok {
			continue
		}
		cache[k] = tk.Compact()
	}
	if len(cache) == 0 {
		return 0
	}

	// Group tuples per connection, keeping key order.
	var order []*hub.Conn
	pending := make(map[*hub.Conn][]model.CompactTicker)
	for _, k := range keys {
		tuple, ok := cache[k]
		if !ok {
			continue
		}
		for _, c := range b.index.Subscribers(k) {
			if _, seen := pending[c]; !seen {
				order = append(order, c)
			}
			pending[c] = append(pending[c], tuple)
		}
	}

	ts := b.now().UnixMilli()
	sent, skipped := 0, 0
	for _, c := range order {
		if _, ok := b.conns.Get(c.ID); !ok {
			skipped++
			continue
		}

		data, err := hub.Encode(hub.NewTickersMessage(pending[c], ts))
		if err != nil {
			b.logger.Error("failed to encode tickers", "conn_id", c.ID, "error", err)
			skipped++
			continue
		}
		if err := c.Send(data); err != nil {
			b.logger.Warn("dropped tickers for client", "conn_id", c.ID, "tickers", len(pending[c]), "error", err)
			skipped++
			continue
		}
		sent++
	}

	b.statsMu.Lock()
	b.stats.FlushCount++
	b.stats.BroadcastCount += int64(sent)
	b.stats.TotalChanges += int64(len(cache))
	b.stats.SkippedSends += int64(skipped)
	b.stats.LastFlushAt = start
	b.stats.LastFlushDuration = b.now().Sub(start)
	b.statsMu.Unlock()

	b.logger.Debug("flush complete",
		"changes", len(cache),
		"messages", sent,
		"skipped", skipped,
	)
	return sent
}

// Stats returns a copy of the broadcast counters.
func (b *Broadcaster) Stats() Stats {
	b.mu.Lock()
	pending := len(b.changed)
	b.mu.Unlock()

	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	s := b.stats
	s.Pending = pending
	return s
}
