package router

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/coinfo/internal/connection"
	"github.com/rickgao/coinfo/internal/model"
)

// TickerWriter stores converted tickers. It reports whether the write was kept.
type TickerWriter interface {
	Write(exchange model.Exchange, symbol string, tk model.Ticker) bool
}

// Router parses feed frames for one exchange and writes them to the table
// in batches.
type Router struct {
	cfg      Config
	exchange model.Exchange
	writer   TickerWriter
	logger   *slog.Logger

	queue *Queue[TickerUpdate]

	// Batch timer
	mu    sync.Mutex
	timer *time.Timer
	armed bool

	// Only one drain runs at a time so per-symbol order is kept.
	flushMu sync.Mutex

	received    atomic.Int64
	buffered    atomic.Int64
	written     atomic.Int64
	parseErrors atomic.Int64
	ignored     atomic.Int64
	flushes     atomic.Int64
}

// NewRouter creates a router writing into writer.
func NewRouter(cfg Config, exchange model.Exchange, writer TickerWriter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchWindow <= 0 {
		cfg.BatchWindow = DefaultConfig().BatchWindow
	}

	return &Router{
		cfg:      cfg,
		exchange: exchange,
		writer:   writer,
		logger:   logger.With("component", "router", "exchange", exchange),
		queue:    NewQueue[TickerUpdate](cfg.BufferSize),
	}
}

// HandleMessage parses one frame and buffers its ticker updates. A parse
// error drops the frame and is returned for the caller's accounting.
func (r *Router) HandleMessage(raw connection.RawMessage) error {
	r.received.Add(1)

	updates, ignored, err := ParseTickers(raw.Data, raw.ReceivedAt)
	if ignored > 0 {
		r.ignored.Add(int64(ignored))
	}
	if err != nil {
		r.parseErrors.Add(1)
		r.logger.Warn("failed to parse ticker", "error", err)
		return err
	}

	for _, u := range updates {
		r.queue.Push(u)
	}
	if len(updates) > 0 {
		r.buffered.Add(int64(len(updates)))
		r.arm()
	}
	return nil
}

// arm schedules a single flush one window after the first buffered update.
func (r *Router) arm() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.armed {
		return
	}
	r.armed = true
	r.timer = time.AfterFunc(r.cfg.BatchWindow, r.onTimer)
}

func (r *Router) onTimer() {
	r.mu.Lock()
	r.armed = false
	r.timer = nil
	r.mu.Unlock()

	r.Flush()
}

// Flush drains the buffer, keeps the last update per symbol and writes the
// survivors to the table. It returns the number of writes the table kept.
func (r *Router) Flush() int {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	updates := r.queue.Drain(0)
	if len(updates) == 0 {
		return 0
	}

	latest := make(map[string]TickerUpdate, len(updates))
	order := make([]string, 0, len(updates))
	for _, u := range updates {
		if _, seen := latest[u.Symbol]; !seen {
			order = append(order, u.Symbol)
		}
		latest[u.Symbol] = u
	}

	stored := 0
	for _, symbol := range order {
		if r.writer.Write(r.exchange, symbol, ToTicker(latest[symbol])) {
			stored++
		}
	}

	r.written.Add(int64(stored))
	r.flushes.Add(1)

	r.logger.Debug("flushed ticker batch",
		"updates", len(updates),
		"symbols", len(order),
		"stored", stored,
	)
	return stored
}

// Reset cancels a pending flush and discards buffered updates.
func (r *Router) Reset() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.armed = false
	r.mu.Unlock()

	if n := r.queue.Discard(); n > 0 {
		r.logger.Debug("discarded buffered updates", "count", n)
	}
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	return Stats{
		MessagesReceived: r.received.Load(),
		TickersBuffered:  r.buffered.Load(),
		TickersWritten:   r.written.Load(),
		ParseErrors:      r.parseErrors.Load(),
		Ignored:          r.ignored.Load(),
		Flushes:          r.flushes.Load(),
		Queue:            r.queue.Stats(),
	}
}
