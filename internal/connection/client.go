package connection

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one websocket session to a feed. It is single-use: after Close
// or a reported error, dial a new Client.
type Client interface {
	// Connect dials the feed and starts the read and keepalive loops.
	Connect(ctx context.Context) error

	// Close sends a normal close and releases the socket. Idempotent.
	Close() error

	// Send writes one text frame.
	Send(data []byte) error

	// Messages delivers data frames in arrival order, stamped on receipt.
	Messages() <-chan TimestampedMessage

	// Errors delivers at most one error: the reason the session ended.
	Errors() <-chan error

	// IsConnected reports whether the session is open.
	IsConnected() bool
}

type clientState int

const (
	clientIdle clientState = iota
	clientOpen
	clientBroken // Ended by the peer or by the keepalive check
	clientClosed // Ended by Close
)

type feedClient struct {
	cfg    ClientConfig
	logger *slog.Logger

	frames chan TimestampedMessage
	errs   chan error
	done   chan struct{}

	mu    sync.RWMutex
	ws    *websocket.Conn
	state clientState

	writeMu sync.Mutex

	// Unix nanos of the last frame, ping or pong from the peer.
	lastSeen atomic.Int64
	dropped  atomic.Int64

	doneOnce sync.Once
	failOnce sync.Once
}

// NewClient creates an unconnected feed client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &feedClient{
		cfg:    cfg,
		logger: logger,
		frames: make(chan TimestampedMessage, cfg.BufferSize),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (c *feedClient) Connect(ctx context.Context) error {
	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()
	if state != clientIdle {
		return ErrAlreadyClosed
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, c.cfg.URL, http.Header{"Accept": {"application/json"}})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != clientIdle {
		c.mu.Unlock()
		ws.Close()
		return ErrAlreadyClosed
	}
	c.ws = ws
	c.state = clientOpen
	c.mu.Unlock()

	c.touch()
	ws.SetPingHandler(func(data string) error {
		c.touch()
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	ws.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop(ws)
	go c.keepalive(ws)

	c.logger.Debug("feed socket open", "url", c.cfg.URL)
	return nil
}

func (c *feedClient) Close() error {
	c.mu.Lock()
	ws, prev := c.ws, c.state
	if prev == clientClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = clientClosed
	c.mu.Unlock()

	c.stop()
	if ws == nil {
		return nil
	}
	if prev == clientOpen {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}
	return ws.Close()
}

func (c *feedClient) Send(data []byte) error {
	c.mu.RLock()
	ws, state := c.ws, c.state
	c.mu.RUnlock()
	if state != clientOpen {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, data)
}

func (c *feedClient) Messages() <-chan TimestampedMessage { return c.frames }

func (c *feedClient) Errors() <-chan error { return c.errs }

func (c *feedClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == clientOpen
}

func (c *feedClient) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *feedClient) stop() {
	c.doneOnce.Do(func() { close(c.done) })
}

// fail ends an open session and reports err. Errors after Close are dropped.
func (c *feedClient) fail(err error) {
	c.mu.Lock()
	if c.state != clientOpen {
		c.mu.Unlock()
		return
	}
	c.state = clientBroken
	c.mu.Unlock()

	c.stop()
	c.failOnce.Do(func() { c.errs <- err })
}

func (c *feedClient) readLoop(ws *websocket.Conn) {
	for {
		kind, data, err := ws.ReadMessage()
		receivedAt := time.Now()
		if err != nil {
			c.fail(err)
			return
		}
		c.touch()

		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}

		msg := TimestampedMessage{
			Data:       data,
			Binary:     kind == websocket.BinaryMessage,
			ReceivedAt: receivedAt,
		}
		select {
		case c.frames <- msg:
		case <-c.done:
			return
		default:
			if n := c.dropped.Add(1); n == 1 || n%1000 == 0 {
				c.logger.Warn("feed buffer full, dropping frames", "dropped", n)
			}
		}
	}
}

// keepalive pings the peer and ends the session when nothing has been heard
// for PingTimeout. A non-positive PingTimeout disables the check.
func (c *feedClient) keepalive(ws *websocket.Conn) {
	interval := c.cfg.PingInterval
	if interval <= 0 {
		interval = DefaultClientConfig().PingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			c.logger.Debug("feed ping failed", "error", err)
		}

		if c.cfg.PingTimeout <= 0 {
			continue
		}
		quiet := time.Since(time.Unix(0, c.lastSeen.Load()))
		if quiet > c.cfg.PingTimeout {
			c.logger.Warn("feed silent, dropping connection", "quiet", quiet, "timeout", c.cfg.PingTimeout)
			c.fail(ErrStaleConnection)
			ws.Close()
			return
		}
	}
}
