// Package market holds the in-memory latest-value table of tickers, the
// per-exchange instrument catalog and the read-side queries over both.
//
// The Table is the single source of truth for current prices. Every stored
// change is reported to a Notifier, which the broadcaster uses to batch
// fan-out to websocket subscribers.
package market
