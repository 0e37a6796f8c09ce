package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rickgao/coinfo/internal/broadcast"
	"github.com/rickgao/coinfo/internal/connection"
	"github.com/rickgao/coinfo/internal/hub"
	"github.com/rickgao/coinfo/internal/market"
	"github.com/rickgao/coinfo/internal/model"
)

// StatusSource reports the state of one exchange feed.
type StatusSource interface {
	Status() connection.Status
}

// HubStats reports subscriber counts.
type HubStats interface {
	Stats() hub.Stats
}

// BroadcastStats reports broadcast counters.
type BroadcastStats interface {
	Stats() broadcast.Stats
}

// Config holds HTTP server settings.
type Config struct {
	Addr   string
	WSPath string // default: /ws
}

// Dependencies are the components the routes read from. WS, Hub and
// Broadcast may be nil.
type Dependencies struct {
	Query     *market.Query
	Catalog   *market.Catalog
	Feeds     map[model.Exchange]StatusSource
	WS        http.Handler
	Hub       HubStats
	Broadcast BroadcastStats
}

// Server is the HTTP front of coinfo.
type Server struct {
	cfg    Config
	deps   Dependencies
	http   *http.Server
	logger *slog.Logger

	startedAt time.Time
	now       func() time.Time
}

// New creates a server and registers its routes.
func New(cfg Config, deps Dependencies, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WSPath == "" {
		cfg.WSPath = "/ws"
	}

	s := &Server{
		cfg:       cfg,
		deps:      deps,
		logger:    logger.With("component", "http"),
		startedAt: time.Now(),
		now:       time.Now,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if s.deps.WS != nil {
		mux.Handle("GET "+s.cfg.WSPath, s.deps.WS)
	}
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/time", s.handleTime)
	mux.HandleFunc("GET /api/tickers", s.handleTickersByKey)
	mux.HandleFunc("GET /api/websocket/stats", s.handleWebsocketStats)
	mux.HandleFunc("GET /api/{exchange}/tickers", s.handleTickers)
	mux.HandleFunc("GET /api/{exchange}/tickers/hot", s.handleHot)
	mux.HandleFunc("GET /api/{exchange}/tickers/quote/{quote}", s.handleQuote)
	mux.HandleFunc("GET /api/{exchange}/markets", s.handleMarkets)
	mux.HandleFunc("GET /api/{exchange}/status", s.handleStatus)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server listening", "addr", ln.Addr().String(), "ws_path", s.cfg.WSPath)
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return ln, nil
}

// Shutdown stops accepting requests and waits for active ones. Hijacked
// websocket connections are not tracked here.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
