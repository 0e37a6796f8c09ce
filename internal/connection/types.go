package connection

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rickgao/coinfo/internal/model"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrDisconnected    = errors.New("connector disconnected")
	ErrUnsupported     = errors.New("exchange not supported")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	Binary     bool      // True for binary frames
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// RawMessage is a feed message handed from a connector to the router.
type RawMessage struct {
	Exchange   model.Exchange
	Data       []byte
	ReceivedAt time.Time
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL (e.g., wss://api.upbit.com/websocket/v1)
	PingInterval time.Duration // How often to send a keepalive ping
	PingTimeout  time.Duration // Max time without pong before considering connection stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 30 * time.Second,
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}

// ConnectorConfig configures an exchange connector.
type ConnectorConfig struct {
	Exchange       model.Exchange
	Client         ClientConfig
	ReconnectDelay time.Duration // Fixed wait before the single retry after a close
	FetchTimeout   time.Duration // Bound on the universe fetch
	DefaultSymbols []string      // Last-resort subscription list
	Health         HealthThresholds
}

// DefaultConnectorConfig returns the Upbit defaults.
func DefaultConnectorConfig() ConnectorConfig {
	cc := DefaultClientConfig()
	cc.URL = "wss://api.upbit.com/websocket/v1"
	return ConnectorConfig{
		Exchange:       model.Upbit,
		Client:         cc,
		ReconnectDelay: 5 * time.Second,
		FetchTimeout:   10 * time.Second,
		DefaultSymbols: []string{"KRW-BTC", "KRW-ETH", "KRW-XRP", "KRW-SOL", "KRW-DOGE"},
		Health:         DefaultHealthThresholds(),
	}
}

// State is the lifecycle state of a connector.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSubscribed   State = "subscribed"
	StateReconnecting State = "reconnecting"
)

// Status is a point-in-time view of a connector.
type Status struct {
	Exchange        model.Exchange `json:"exchange"`
	State           State          `json:"state"`
	Connected       bool           `json:"connected"`
	Health          Health         `json:"health"`
	LastUpdateAt    time.Time      `json:"lastUpdateAt"`
	SinceLastUpdate time.Duration  `json:"sinceLastUpdateMs"`
	Symbols         int            `json:"subscribedSymbols"`
	Messages        int64          `json:"messages"`
	ParseErrors     int64          `json:"parseErrors"`
	Reconnects      int64          `json:"reconnects"`
}

// MarshalJSON reports SinceLastUpdate in milliseconds and omits a zero LastUpdateAt.
func (s Status) MarshalJSON() ([]byte, error) {
	type alias Status
	out := struct {
		alias
		LastUpdateAt    *time.Time `json:"lastUpdateAt"`
		SinceLastUpdate int64      `json:"sinceLastUpdateMs"`
	}{alias: alias(s), SinceLastUpdate: s.SinceLastUpdate.Milliseconds()}
	if !s.LastUpdateAt.IsZero() {
		out.LastUpdateAt = &s.LastUpdateAt
	}
	return json.Marshal(out)
}

// Upbit subscribe frame: [{"ticket":...},{"type":"ticker","codes":[...]},{"format":"SIMPLE"}]
type ticketField struct {
	Ticket string `json:"ticket"`
}

type typeField struct {
	Type  string   `json:"type"`
	Codes []string `json:"codes"`
}

type formatField struct {
	Format string `json:"format"`
}

// BuildSubscribeFrame encodes the ticker subscription control frame.
func BuildSubscribeFrame(ticket string, codes []string) ([]byte, error) {
	if codes == nil {
		codes = []string{}
	}
	return json.Marshal([]any{
		ticketField{Ticket: ticket},
		typeField{Type: "ticker", Codes: codes},
		formatField{Format: "SIMPLE"},
	})
}
