// Package hub manages websocket subscribers: the registry of open
// connections, the reverse index from exchange:symbol keys to subscribers,
// the client message protocol and the HTTP upgrade endpoint.
//
// Client to server messages are JSON text. Server to client messages are
// MessagePack maps tagged by a "t" field.
package hub
