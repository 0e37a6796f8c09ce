package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rickgao/coinfo/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS market_catalog (
	exchange     TEXT        NOT NULL,
	symbol       TEXT        NOT NULL,
	korean_name  TEXT        NOT NULL DEFAULT '',
	english_name TEXT        NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (exchange, symbol)
)`

// CatalogStore persists the instrument listing per exchange.
type CatalogStore struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewCatalogStore creates a store backed by the given pool.
func NewCatalogStore(db *pgxpool.Pool, logger *slog.Logger) *CatalogStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogStore{
		db:     db,
		logger: logger.With("component", "catalog_store"),
	}
}

// EnsureSchema creates the catalog table if it does not exist.
func (s *CatalogStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create market_catalog: %w", err)
	}
	return nil
}

// SaveMarkets replaces the stored listing for an exchange in one transaction.
func (s *CatalogStore) SaveMarkets(ctx context.Context, exchange model.Exchange, markets []model.MarketInfo) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM market_catalog WHERE exchange = $1`, exchange.String()); err != nil {
		return fmt.Errorf("delete markets: %w", err)
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(`
			INSERT INTO market_catalog (exchange, symbol, korean_name, english_name, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (exchange, symbol) DO NOTHING
		`, exchange.String(), m.Symbol, m.KoreanName, m.EnglishName, now)
	}

	results := tx.SendBatch(ctx, batch)
	for range markets {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("insert market: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Debug("saved market catalog", "exchange", exchange, "count", len(markets))
	return nil
}

// LoadMarkets returns the stored listing for an exchange, ordered by symbol.
func (s *CatalogStore) LoadMarkets(ctx context.Context, exchange model.Exchange) ([]model.MarketInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT symbol, korean_name, english_name
		FROM market_catalog
		WHERE exchange = $1
		ORDER BY symbol
	`, exchange.String())
	if err != nil {
		return nil, fmt.Errorf("query markets: %w", err)
	}

	markets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.MarketInfo, error) {
		var m model.MarketInfo
		err := row.Scan(&m.Symbol, &m.KoreanName, &m.EnglishName)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan markets: %w", err)
	}
	return markets, nil
}
