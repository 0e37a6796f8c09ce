package hub

import (
	"encoding/json"
	"fmt"

	"github.com/rickgao/coinfo/internal/model"
	"github.com/vmihailenco/msgpack/v5"
)

// Client message types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeSnapshot    = "snapshot"
	TypePing        = "ping"
)

// Server message tags.
const (
	TagConnected    = "connected"
	TagSubscribed   = "subscribed"
	TagUnsubscribed = "unsubscribed"
	TagTickers      = "tickers"
	TagError        = "error"
	TagPong         = "pong"
)

// Error codes sent in ErrorMessage.
const (
	CodeInvalidJSON     = "INVALID_JSON"
	CodeUnknownType     = "UNKNOWN_TYPE"
	CodeInvalidExchange = "INVALID_EXCHANGE"
	CodeInvalidSymbols  = "INVALID_SYMBOLS"
)

// ClientMessage is the JSON envelope of every client request.
type ClientMessage struct {
	Type     string          `json:"type"`
	Exchange string          `json:"exchange,omitempty"`
	Symbols  json.RawMessage `json:"symbols,omitempty"`
}

// ConnectedMessage greets a new connection.
type ConnectedMessage struct {
	T       string `msgpack:"t"`
	ID      string `msgpack:"id"`
	Message string `msgpack:"message"`
}

// SubscriptionMessage confirms a subscribe or unsubscribe with the
// connection's full subscription set.
type SubscriptionMessage struct {
	T             string   `msgpack:"t"`
	Exchange      string   `msgpack:"exchange"`
	Subscriptions []string `msgpack:"subscriptions"`
}

// TickersMessage carries a batch of compact tickers.
type TickersMessage struct {
	T  string                `msgpack:"t"`
	D  []model.CompactTicker `msgpack:"d"`
	TS int64                 `msgpack:"ts"`
}

// ErrorMessage reports an invalid request. The connection stays open.
type ErrorMessage struct {
	T       string `msgpack:"t"`
	Code    string `msgpack:"code"`
	Message string `msgpack:"message"`
}

// PongMessage answers a ping.
type PongMessage struct {
	T  string `msgpack:"t"`
	TS int64  `msgpack:"ts"`
}

// Encode serializes a server message.
func Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

// NewTickersMessage builds a tickers batch stamped with ts (unix millis).
func NewTickersMessage(tuples []model.CompactTicker, ts int64) TickersMessage {
	if tuples == nil {
		tuples = []model.CompactTicker{}
	}
	return TickersMessage{T: TagTickers, D: tuples, TS: ts}
}
