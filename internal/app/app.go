// Package app builds the coinfo service from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/coinfo/internal/api"
	"github.com/rickgao/coinfo/internal/broadcast"
	"github.com/rickgao/coinfo/internal/config"
	"github.com/rickgao/coinfo/internal/connection"
	"github.com/rickgao/coinfo/internal/database"
	"github.com/rickgao/coinfo/internal/hub"
	"github.com/rickgao/coinfo/internal/market"
	"github.com/rickgao/coinfo/internal/mirror"
	"github.com/rickgao/coinfo/internal/model"
	"github.com/rickgao/coinfo/internal/router"
	"github.com/rickgao/coinfo/internal/server"
)

// App owns every long-lived component of one coinfo process.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Table       *market.Table
	Catalog     *market.Catalog
	Query       *market.Query
	Registry    *hub.Registry
	Index       *hub.Index
	Hub         *hub.Hub
	WS          *hub.Server
	Broadcaster *broadcast.Broadcaster
	Router      *router.Router
	Connector   connection.Connector
	Mirror      *mirror.Mirror // nil unless Redis is configured
	HTTP        *server.Server

	pool *pgxpool.Pool
	rdb  *redis.Client
}

// New wires the service. Optional stores that cannot be reached are logged
// and left out; the service runs without them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger}

	a.Table = market.NewTable()
	a.Catalog = market.NewCatalog()
	a.Query = market.NewQuery(a.Table)

	a.Registry = hub.NewRegistry()
	a.Index = hub.NewIndex()
	a.Hub = hub.New(a.Registry, a.Index, a.Table, logger)
	a.WS = hub.NewServer(a.Hub, hub.ServerConfig{
		SendQueueSize:  cfg.Server.SendQueueSize,
		MaxMessageSize: cfg.Server.MaxMessageSize,
		PingInterval:   cfg.Server.PingInterval,
		WriteTimeout:   cfg.Server.WriteTimeout,
	}, logger)

	a.Broadcaster = broadcast.New(broadcast.Config{
		FlushInterval: cfg.Broadcast.FlushInterval,
	}, a.Table, a.Index, a.Registry, logger)

	// Bind before any feed traffic can write.
	a.Table.SetNotifier(a.Broadcaster.MarkChanged)

	routerCfg := router.DefaultConfig()
	routerCfg.BatchWindow = cfg.Upbit.BatchWindow
	a.Router = router.NewRouter(routerCfg, model.Upbit, a.Table, logger)

	deps := connection.Dependencies{
		Markets: api.NewClient(cfg.Upbit.RestURL,
			api.WithLogger(logger),
			api.WithTimeout(cfg.Upbit.Timeout),
			api.WithRetries(cfg.Upbit.MaxRetries, api.DefaultBackoff),
		),
		Handler: a.Router,
		Catalog: a.Catalog,
	}

	if cfg.Database.Enabled() {
		if store := a.connectCatalogStore(ctx); store != nil {
			deps.Cache = store
		}
	}

	connCfg := connection.DefaultConnectorConfig()
	connCfg.Client.URL = cfg.Upbit.WSURL
	connCfg.ReconnectDelay = cfg.Upbit.ReconnectDelay
	connCfg.FetchTimeout = cfg.Upbit.Timeout
	connCfg.DefaultSymbols = cfg.Upbit.DefaultSymbols
	connCfg.Health = connection.HealthThresholds{
		Degraded:  cfg.Upbit.DegradedAfter,
		Unhealthy: cfg.Upbit.UnhealthyAfter,
	}

	conn, err := connection.New(connCfg, deps, logger)
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("create connector: %w", err)
	}
	a.Connector = conn

	if cfg.Redis.Enabled() {
		a.connectMirror(ctx)
	}

	a.HTTP = server.New(server.Config{
		Addr:   net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		WSPath: cfg.Server.WSPath,
	}, server.Dependencies{
		Query:     a.Query,
		Catalog:   a.Catalog,
		Feeds:     map[model.Exchange]server.StatusSource{model.Upbit: a.Connector},
		WS:        a.WS,
		Hub:       a.Hub,
		Broadcast: a.Broadcaster,
	}, logger)

	return a, nil
}

func (a *App) connectCatalogStore(ctx context.Context) *database.CatalogStore {
	db := a.cfg.Database
	a.logger.Info("connecting to database", "host", db.Host, "port", db.Port, "database", db.Name)

	pool, err := database.Connect(ctx, db)
	if err != nil {
		a.logger.Warn("market catalog store disabled", "error", err)
		return nil
	}

	store := database.NewCatalogStore(pool, a.logger)
	if err := store.EnsureSchema(ctx); err != nil {
		a.logger.Warn("market catalog store disabled", "error", err)
		pool.Close()
		return nil
	}

	a.pool = pool
	return store
}

func (a *App) connectMirror(ctx context.Context) {
	rc := a.cfg.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.logger.Warn("redis mirror disabled", "addr", rc.Addr, "error", err)
		_ = rdb.Close()
		return
	}

	a.rdb = rdb
	a.Mirror = mirror.New(mirror.Config{
		KeyPrefix: rc.KeyPrefix,
		Interval:  rc.Interval,
		TTL:       rc.TTL,
	}, rdb, a.Table, a.logger)
}

// Run listens on the configured address and serves until ctx ends.
func (a *App) Run(ctx context.Context) error {
	ln, err := a.HTTP.Listen()
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve runs the service on ln until ctx ends, then shuts down in order:
// feed and timers, client connections, HTTP server, stores.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := a.Broadcaster.Start(gctx); err != nil {
		return fmt.Errorf("start broadcaster: %w", err)
	}
	if a.Mirror != nil {
		if err := a.Mirror.Start(gctx); err != nil {
			return fmt.Errorf("start mirror: %w", err)
		}
	}

	g.Go(func() error {
		return a.HTTP.Serve(ln)
	})

	g.Go(func() error {
		// A failed first attempt has already scheduled its retry.
		if err := a.Connector.Connect(gctx); err != nil && !errors.Is(err, connection.ErrDisconnected) {
			a.logger.Warn("initial feed connect failed", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	a.logger.Info("coinfo running", "instance_id", a.cfg.Instance.ID, "addr", ln.Addr().String())
	return g.Wait()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownGrace)
	defer cancel()

	a.logger.Info("shutting down")
	var errs []error

	if err := a.Connector.Disconnect(); err != nil {
		errs = append(errs, fmt.Errorf("disconnect feed: %w", err))
	}
	if err := a.Broadcaster.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop broadcaster: %w", err))
	}
	if a.Mirror != nil {
		if err := a.Mirror.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop mirror: %w", err))
		}
	}

	if err := a.WS.CloseAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close clients: %w", err))
	}
	if err := a.HTTP.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}

	a.closeStores()
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeStores() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
		a.rdb = nil
	}
}
