package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rickgao/coinfo/internal/model"
)

// Connector is an upstream exchange feed.
type Connector interface {
	// Connect fetches the instrument universe, opens the feed and subscribes.
	Connect(ctx context.Context) error

	// Disconnect closes the feed and cancels any pending retry. Idempotent.
	Disconnect() error

	// IsConnected reports whether the feed socket is open.
	IsConnected() bool

	// Status returns connection state and feed health.
	Status() Status
}

// MarketSource lists the instruments an exchange trades.
type MarketSource interface {
	GetMarketInfo(ctx context.Context) ([]model.MarketInfo, error)
}

// MarketInfoSink receives the instrument listing after each successful fetch.
type MarketInfoSink interface {
	SetMarketInfo(exchange model.Exchange, markets []model.MarketInfo)
}

// MarketCache persists the last good listing across restarts.
type MarketCache interface {
	LoadMarkets(ctx context.Context, exchange model.Exchange) ([]model.MarketInfo, error)
	SaveMarkets(ctx context.Context, exchange model.Exchange, markets []model.MarketInfo) error
}

// MessageHandler consumes feed frames.
type MessageHandler interface {
	// HandleMessage processes one frame. A returned error counts as a parse error.
	HandleMessage(raw RawMessage) error

	// Reset discards any state held for the current feed session.
	Reset()
}

// Dependencies are the collaborators of a connector. Catalog and Cache may be nil.
type Dependencies struct {
	Markets MarketSource
	Handler MessageHandler
	Catalog MarketInfoSink
	Cache   MarketCache
}

// New returns the connector variant for exchange.
func New(cfg ConnectorConfig, deps Dependencies, logger *slog.Logger) (Connector, error) {
	switch cfg.Exchange {
	case model.Upbit:
		return NewUpbitConnector(cfg, deps, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.Exchange)
	}
}

// session is one dialed feed socket.
type session struct {
	client Client
	done   chan struct{}
}

// UpbitConnector streams Upbit tickers.
type UpbitConnector struct {
	cfg    ConnectorConfig
	deps   Dependencies
	logger *slog.Logger

	newClient func(ClientConfig, *slog.Logger) Client
	now       func() time.Time

	mu         sync.Mutex
	ctx        context.Context
	state      State
	sess       *session
	retry      *time.Timer
	stopped    bool
	symbols    []string
	lastUpdate time.Time

	messages    atomic.Int64
	parseErrors atomic.Int64
	reconnects  atomic.Int64

	wg sync.WaitGroup
}

// NewUpbitConnector creates the Upbit variant.
func NewUpbitConnector(cfg ConnectorConfig, deps Dependencies, logger *slog.Logger) *UpbitConnector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultConnectorConfig().ReconnectDelay
	}
	if cfg.Health == (HealthThresholds{}) {
		cfg.Health = DefaultHealthThresholds()
	}

	return &UpbitConnector{
		cfg:       cfg,
		deps:      deps,
		logger:    logger.With("component", "connector", "exchange", cfg.Exchange),
		newClient: NewClient,
		now:       time.Now,
		state:     StateDisconnected,
	}
}

// Connect runs one connection attempt. On a dial failure a retry is scheduled
// and the error is returned. Calling Connect while connected is a no-op.
func (c *UpbitConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateSubscribed {
		c.mu.Unlock()
		return nil
	}
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.ctx = ctx
	c.stopped = false
	c.state = StateConnecting
	c.mu.Unlock()

	symbols := c.loadUniverse(ctx)

	client := c.newClient(c.cfg.Client, c.logger)
	if err := client.Connect(ctx); err != nil {
		c.logger.Warn("feed dial failed", "error", err)
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.scheduleReconnect()
		return fmt.Errorf("dial feed: %w", err)
	}

	frame, err := BuildSubscribeFrame(uuid.NewString(), symbols)
	if err != nil {
		client.Close()
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return fmt.Errorf("build subscribe frame: %w", err)
	}

	sess := &session{client: client, done: make(chan struct{})}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		client.Close()
		return ErrDisconnected
	}
	c.sess = sess
	c.symbols = symbols
	c.state = StateSubscribed
	c.wg.Add(1)
	c.mu.Unlock()

	go c.consume(sess)

	if err := client.Send(frame); err != nil {
		c.logger.Warn("subscribe failed", "error", err)
		c.onClose(sess, err)
		return fmt.Errorf("send subscribe: %w", err)
	}

	c.logger.Info("subscribed to ticker feed", "symbols", len(symbols))
	return nil
}

// loadUniverse returns the symbols to subscribe. It tries the REST listing,
// then the persisted catalog, then the configured defaults.
func (c *UpbitConnector) loadUniverse(ctx context.Context) []string {
	if c.deps.Markets != nil {
		fetchCtx, cancel := c.fetchContext(ctx)
		markets, err := c.deps.Markets.GetMarketInfo(fetchCtx)
		cancel()
		if err == nil && len(markets) > 0 {
			if c.deps.Catalog != nil {
				c.deps.Catalog.SetMarketInfo(c.cfg.Exchange, markets)
			}
			if c.deps.Cache != nil {
				go c.saveMarkets(markets)
			}
			return symbolsOf(markets)
		}
		c.logger.Warn("universe fetch failed, using fallback", "error", err)
	}

	if c.deps.Cache != nil {
		loadCtx, cancel := c.fetchContext(ctx)
		markets, err := c.deps.Cache.LoadMarkets(loadCtx, c.cfg.Exchange)
		cancel()
		if err == nil && len(markets) > 0 {
			c.logger.Info("using stored market catalog", "count", len(markets))
			if c.deps.Catalog != nil {
				c.deps.Catalog.SetMarketInfo(c.cfg.Exchange, markets)
			}
			return symbolsOf(markets)
		}
		if err != nil {
			c.logger.Warn("stored market catalog unavailable", "error", err)
		}
	}

	c.logger.Info("using default symbols", "symbols", c.cfg.DefaultSymbols)
	return append([]string(nil), c.cfg.DefaultSymbols...)
}

func (c *UpbitConnector) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.FetchTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.FetchTimeout)
	}
	return context.WithCancel(ctx)
}

// saveMarkets persists the listing without holding up the connection.
func (c *UpbitConnector) saveMarkets(markets []model.MarketInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.deps.Cache.SaveMarkets(ctx, c.cfg.Exchange, markets); err != nil {
		c.logger.Warn("failed to store market catalog", "error", err)
	}
}

// consume forwards frames from one session to the handler until it ends.
func (c *UpbitConnector) consume(sess *session) {
	defer c.wg.Done()

	for {
		select {
		case <-sess.done:
			return

		case err := <-sess.client.Errors():
			c.logger.Warn("feed connection error", "error", err)
			c.onClose(sess, err)
			return

		case msg := <-sess.client.Messages():
			c.messages.Add(1)
			raw := RawMessage{
				Exchange:   c.cfg.Exchange,
				Data:       msg.Data,
				ReceivedAt: msg.ReceivedAt,
			}
			if c.deps.Handler == nil {
				continue
			}
			if err := c.deps.Handler.HandleMessage(raw); err != nil {
				c.parseErrors.Add(1)
				continue
			}
			c.mu.Lock()
			c.lastUpdate = msg.ReceivedAt
			c.mu.Unlock()
		}
	}
}

// onClose tears down a session that ended on its own and schedules a retry.
// Sessions that were already replaced or torn down are ignored.
func (c *UpbitConnector) onClose(sess *session, err error) {
	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return
	}
	c.sess = nil
	c.state = StateDisconnected
	close(sess.done)
	c.mu.Unlock()

	sess.client.Close()
	c.logger.Info("feed closed", "error", err)

	c.scheduleReconnect()
}

// scheduleReconnect arms a single retry after ReconnectDelay. It does nothing
// while a retry is already pending or after Disconnect.
func (c *UpbitConnector) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.retry != nil {
		return
	}
	if c.ctx != nil && c.ctx.Err() != nil {
		return
	}

	c.state = StateReconnecting
	c.logger.Info("reconnect scheduled", "delay", c.cfg.ReconnectDelay)

	var t *time.Timer
	t = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		if c.retry != t || c.stopped {
			c.mu.Unlock()
			return
		}
		c.retry = nil
		c.state = StateDisconnected
		ctx := c.ctx
		c.mu.Unlock()

		c.reconnects.Add(1)
		if err := c.Connect(ctx); err != nil {
			c.logger.Warn("reconnect failed", "error", err)
		}
	})
	c.retry = t
}

// reconnectPending reports whether a retry timer is armed.
func (c *UpbitConnector) reconnectPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retry != nil
}

// Disconnect closes the feed, cancels the pending retry and drops buffered
// updates. Safe to call repeatedly.
func (c *UpbitConnector) Disconnect() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	sess := c.sess
	c.sess = nil
	if sess != nil {
		close(sess.done)
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	var err error
	if sess != nil {
		err = sess.client.Close()
	}
	if c.deps.Handler != nil {
		c.deps.Handler.Reset()
	}

	c.wg.Wait()
	c.logger.Info("connector disconnected")
	return err
}

// IsConnected reports whether the feed socket is open.
func (c *UpbitConnector) IsConnected() bool {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	return sess != nil && sess.client.IsConnected()
}

// Status returns a point-in-time view.
func (c *UpbitConnector) Status() Status {
	connected := c.IsConnected()
	now := c.now()

	c.mu.Lock()
	st := Status{
		Exchange:     c.cfg.Exchange,
		State:        c.state,
		Connected:    connected,
		LastUpdateAt: c.lastUpdate,
		Symbols:      len(c.symbols),
	}
	c.mu.Unlock()

	st.Health = c.cfg.Health.Classify(connected, st.LastUpdateAt, now)
	if !st.LastUpdateAt.IsZero() {
		st.SinceLastUpdate = now.Sub(st.LastUpdateAt)
	}
	st.Messages = c.messages.Load()
	st.ParseErrors = c.parseErrors.Load()
	st.Reconnects = c.reconnects.Load()
	return st
}

func symbolsOf(markets []model.MarketInfo) []string {
	out := make([]string, 0, len(markets))
	for _, m := range markets {
		out = append(out, m.Symbol)
	}
	return out
}
