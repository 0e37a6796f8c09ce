// Package broadcast coalesces table changes and fans them out to subscribers.
//
// Writes mark their key as changed. The first mark arms a single flush
// timer; when it fires, every changed key is resolved once, encoded once
// per connection and sent as one tickers message:
//
//	Table.Write -> MarkChanged -> (FlushInterval) -> Flush -> Conn.Send
//
// A connection that disappears or fails during a flush is skipped. The
// rest of the flush still runs.
package broadcast
