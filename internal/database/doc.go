// Package database provides the optional PostgreSQL market catalog.
//
// The catalog keeps the last instrument listing fetched from each exchange
// so a restart during a REST outage can still subscribe to the full
// universe instead of the hardcoded default symbols.
package database
