package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/coinfo/internal/model"
)

// Source provides the tickers to mirror.
type Source interface {
	ReadAllExchanges() map[model.Exchange]map[string]model.Ticker
}

// Config holds mirror configuration.
type Config struct {
	KeyPrefix string        // Hash key prefix (default: "coinfo:tickers")
	Interval  time.Duration // Sync interval (default: 1s)
	TTL       time.Duration // Hash expiry, refreshed on every sync (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "coinfo:tickers",
		Interval:  time.Second,
		TTL:       10 * time.Second,
	}
}

// Mirror periodically writes the ticker table to Redis.
type Mirror struct {
	cfg    Config
	rdb    redis.Cmdable
	source Source
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Mirror.
func New(cfg Config, rdb redis.Cmdable, source Source, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	return &Mirror{
		cfg:    cfg,
		rdb:    rdb,
		source: source,
		logger: logger.With("component", "mirror"),
	}
}

// Key returns the hash key for an exchange.
func (m *Mirror) Key(exchange model.Exchange) string {
	return m.cfg.KeyPrefix + ":" + exchange.String()
}

// Start begins the sync loop.
func (m *Mirror) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run(ctx)

	m.logger.Info("redis mirror started", "interval", m.cfg.Interval, "prefix", m.cfg.KeyPrefix)
	return nil
}

// Stop ends the sync loop and waits for an in-flight sync.
func (m *Mirror) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("redis mirror stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mirror) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sync(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("mirror sync failed", "error", err)
			}
		}
	}
}

// Sync writes every exchange's tickers and returns how many were written.
func (m *Mirror) Sync(ctx context.Context) (int, error) {
	all := m.source.ReadAllExchanges()

	hashes := make(map[string]map[string]any, len(all))
	total := 0
	for exchange, tickers := range all {
		fields, err := EncodeFields(tickers)
		if err != nil {
			return 0, err
		}
		if len(fields) == 0 {
			continue
		}
		hashes[m.Key(exchange)] = fields
		total += len(fields)
	}
	if total == 0 {
		return 0, nil
	}

	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, fields := range hashes {
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, fields)
			pipe.Expire(ctx, key, m.cfg.TTL)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("mirror tickers: %w", err)
	}
	return total, nil
}

// Load reads one exchange's mirrored tickers.
func (m *Mirror) Load(ctx context.Context, exchange model.Exchange) (map[string]model.Ticker, error) {
	raw, err := m.rdb.HGetAll(ctx, m.Key(exchange)).Result()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", m.Key(exchange), err)
	}

	out := make(map[string]model.Ticker, len(raw))
	for symbol, v := range raw {
		var tk model.Ticker
		if err := json.Unmarshal([]byte(v), &tk); err != nil {
			return nil, fmt.Errorf("decode %s: %w", symbol, err)
		}
		out[symbol] = tk
	}
	return out, nil
}

// EncodeFields converts tickers to hash fields (symbol -> JSON ticker).
func EncodeFields(tickers map[string]model.Ticker) (map[string]any, error) {
	fields := make(map[string]any, len(tickers))
	for symbol, tk := range tickers {
		b, err := json.Marshal(tk)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", symbol, err)
		}
		fields[symbol] = string(b)
	}
	return fields, nil
}
