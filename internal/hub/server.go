package hub

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ServerConfig holds per-client transport settings.
type ServerConfig struct {
	SendQueueSize  int           // Outbound frames buffered per client
	MaxMessageSize int64         // Max inbound frame size in bytes
	PingInterval   time.Duration // Interval between server pings
	WriteTimeout   time.Duration
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		SendQueueSize:  256,
		MaxMessageSize: 64 * 1024,
		PingInterval:   30 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
}

// Server upgrades HTTP requests to websocket clients of the hub.
type Server struct {
	hub      *Hub
	cfg      ServerConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*wsConn]struct{}
	closing bool
	wg      sync.WaitGroup
}

// NewServer creates a websocket server for hub.
func NewServer(hub *Hub, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultServerConfig()
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	return &Server{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger.With("component", "ws_server"),
		clients: make(map[*wsConn]struct{}),
	}
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &wsConn{
		ws:     ws,
		cfg:    s.cfg,
		send:   make(chan []byte, s.cfg.SendQueueSize),
		done:   make(chan struct{}),
		logger: s.logger,
	}
	conn := NewConn(uuid.NewString(), r.RemoteAddr, c)

	if !s.track(c) {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer s.untrack(c)

	if err := s.hub.Open(conn); err != nil {
		s.logger.Error("failed to register client", "conn_id", conn.ID, "error", err)
		c.closeWith(websocket.CloseInternalServerErr, "registration failed")
		return
	}

	go c.writePump()
	c.readPump(func(data []byte) { s.hub.HandleMessage(conn, data) })

	s.hub.Close(conn)
	_ = c.Close()
}

func (s *Server) track(c *wsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.clients[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	s.wg.Done()
}

// CloseAll sends a going-away close to every client and waits for their
// handlers to return or ctx to end. New upgrades are refused afterwards.
func (s *Server) CloseAll(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	clients := make([]*wsConn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wsConn is the gorilla-backed Sender of one client.
type wsConn struct {
	ws     *websocket.Conn
	cfg    ServerConfig
	send   chan []byte
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
}

// Send queues data without blocking. A full queue drops the frame.
func (c *wsConn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendQueueFull
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) closeWith(code int, reason string) {
	deadline := time.Now().Add(c.cfg.WriteTimeout)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.Close()
}

func (c *wsConn) readPump(handle func([]byte)) {
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)

	// Two missed pings mark the client dead.
	wait := 2 * c.cfg.PingInterval
	_ = c.ws.SetReadDeadline(time.Now().Add(wait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.logger.Debug("client read error", "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(wait))
		handle(data)
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				c.logger.Debug("client write error", "error", err)
				_ = c.Close()
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
