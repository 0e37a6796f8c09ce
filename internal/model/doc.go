// Package model defines shared data types used across the coinfo ticker service.
//
// Conventions:
//   - Instruments are identified by (Exchange, Symbol); Symbol is exchange-native (e.g. "KRW-BTC")
//   - Prices are float64 in quote currency units
//   - 24h trade value is integer-truncated quote currency
//   - Timestamps on the wire: int64 milliseconds since Unix epoch
package model
