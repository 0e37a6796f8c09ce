package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/coinfo/internal/model"
)

// TickerReader is the read side of the market table used for snapshots.
type TickerReader interface {
	Read(exchange model.Exchange, symbol string) (model.Ticker, bool)
	ReadAll(exchange model.Exchange) map[string]model.Ticker
}

// Stats is a point-in-time view of the subscriber side.
type Stats struct {
	Connections   int `json:"connections"`
	Keys          int `json:"subscribedKeys"`
	Subscriptions int `json:"subscriptions"`
}

// Hub applies client requests to the registry and the index.
type Hub struct {
	registry *Registry
	index    *Index
	tickers  TickerReader
	logger   *slog.Logger

	now func() time.Time
}

// New creates a hub. tickers may be nil, in which case snapshots are empty.
func New(registry *Registry, index *Index, tickers TickerReader, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry: registry,
		index:    index,
		tickers:  tickers,
		logger:   logger.With("component", "hub"),
		now:      time.Now,
	}
}

// Registry returns the connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Index returns the subscription index.
func (h *Hub) Index() *Index { return h.index }

// Open registers conn and greets it.
func (h *Hub) Open(conn *Conn) error {
	if err := h.registry.Add(conn); err != nil {
		return err
	}
	h.logger.Debug("client connected", "conn_id", conn.ID, "remote", conn.RemoteAddr)

	h.reply(conn, ConnectedMessage{
		T:       TagConnected,
		ID:      conn.ID,
		Message: "Connected to coinfo websocket server",
	})
	return nil
}

// Close tears down the subscriptions of conn and unregisters it.
// A second call is a no-op.
func (h *Hub) Close(conn *Conn) {
	removed := h.index.RemoveConn(conn)
	if h.registry.Remove(conn.ID) {
		h.logger.Debug("client disconnected", "conn_id", conn.ID, "subscriptions", removed)
	}
}

// HandleMessage processes one client frame. Invalid requests are answered
// with an error message; they never close the connection.
func (h *Hub) HandleMessage(conn *Conn, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.replyError(conn, CodeInvalidJSON, "Invalid JSON")
		return
	}

	switch msg.Type {
	case TypeSubscribe:
		h.handleSubscribe(conn, msg)
	case TypeUnsubscribe:
		h.handleUnsubscribe(conn, msg)
	case TypeSnapshot:
		h.handleSnapshot(conn, msg)
	case TypePing:
		h.reply(conn, PongMessage{T: TagPong, TS: h.now().UnixMilli()})
	default:
		h.replyError(conn, CodeUnknownType, fmt.Sprintf("Unknown message type: %q", msg.Type))
	}
}

func (h *Hub) handleSubscribe(conn *Conn, msg ClientMessage) {
	exchange, symbols, ok := h.validate(conn, msg)
	if !ok {
		return
	}
	keys := h.index.Subscribe(conn, exchange, symbols)
	h.reply(conn, SubscriptionMessage{
		T:             TagSubscribed,
		Exchange:      exchange.String(),
		Subscriptions: keyStrings(keys),
	})
}

func (h *Hub) handleUnsubscribe(conn *Conn, msg ClientMessage) {
	exchange, symbols, ok := h.validate(conn, msg)
	if !ok {
		return
	}
	keys := h.index.Unsubscribe(conn, exchange, symbols)
	h.reply(conn, SubscriptionMessage{
		T:             TagUnsubscribed,
		Exchange:      exchange.String(),
		Subscriptions: keyStrings(keys),
	})
}

// handleSnapshot sends the current values of the connection's keys on one
// exchange, or of the whole exchange when it has none there.
func (h *Hub) handleSnapshot(conn *Conn, msg ClientMessage) {
	exchange, ok := model.ParseExchange(msg.Exchange)
	if !ok {
		h.replyError(conn, CodeInvalidExchange, fmt.Sprintf("Invalid exchange: %q", msg.Exchange))
		return
	}

	tuples := []model.CompactTicker{}
	if h.tickers != nil {
		var symbols []string
		for _, k := range h.index.SubscriptionsOf(conn) {
			if k.Exchange == exchange {
				symbols = append(symbols, k.Symbol)
			}
		}

		if len(symbols) == 0 {
			for _, tk := range h.tickers.ReadAll(exchange) {
				tuples = append(tuples, tk.Compact())
			}
		} else {
			for _, s := range symbols {
				if tk, ok := h.tickers.Read(exchange, s); ok {
					tuples = append(tuples, tk.Compact())
				}
			}
		}
	}

	h.reply(conn, NewTickersMessage(tuples, h.now().UnixMilli()))
}

// validate checks the exchange and symbols of a subscription request and
// replies with an error when either is invalid.
func (h *Hub) validate(conn *Conn, msg ClientMessage) (model.Exchange, []string, bool) {
	exchange, ok := model.ParseExchange(msg.Exchange)
	if !ok {
		h.replyError(conn, CodeInvalidExchange, fmt.Sprintf("Invalid exchange: %q", msg.Exchange))
		return 0, nil, false
	}

	symbols, err := parseSymbols(msg.Symbols)
	if err != nil {
		h.replyError(conn, CodeInvalidSymbols, err.Error())
		return 0, nil, false
	}
	return exchange, symbols, true
}

// parseSymbols requires a JSON array of non-empty strings.
func parseSymbols(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("symbols must be an array of strings")
	}

	var symbols []string
	if err := json.Unmarshal(raw, &symbols); err != nil {
		return nil, fmt.Errorf("symbols must be an array of strings")
	}
	for i, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("symbols[%d] is empty", i)
		}
		symbols[i] = s
	}
	return symbols, nil
}

func (h *Hub) replyError(conn *Conn, code, message string) {
	h.reply(conn, ErrorMessage{T: TagError, Code: code, Message: message})
}

func (h *Hub) reply(conn *Conn, v any) {
	data, err := Encode(v)
	if err != nil {
		h.logger.Error("failed to encode reply", "conn_id", conn.ID, "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		h.logger.Warn("failed to send reply", "conn_id", conn.ID, "error", err)
	}
}

// Stats returns subscriber counts.
func (h *Hub) Stats() Stats {
	return Stats{
		Connections:   h.registry.Len(),
		Keys:          h.index.Len(),
		Subscriptions: h.index.Subscriptions(),
	}
}

func keyStrings(keys []model.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
