// Package server exposes the read-only HTTP surface and mounts the client
// websocket endpoint.
//
// Routes:
//
//	GET /ws                                   websocket upgrade (path configurable)
//	GET /health                               feed health, 503 when unhealthy
//	GET /api/time                             server clock
//	GET /api/tickers?symbols=upbit:KRW-BTC    tickers across exchanges
//	GET /api/{exchange}/tickers[?symbols=]    all or listed tickers
//	GET /api/{exchange}/tickers/hot           volume, gainers, losers, active
//	GET /api/{exchange}/tickers/quote/{quote} one quote currency, sorted
//	GET /api/{exchange}/markets               instrument names
//	GET /api/{exchange}/status                connector status
//	GET /api/websocket/stats                  subscriber and broadcast counters
//
// Invalid parameters answer 400 with {"error": "..."}.
package server
