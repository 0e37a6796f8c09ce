// Package mirror copies the latest ticker values into Redis so processes
// outside coinfo can read current prices without a websocket.
//
// Each exchange becomes one hash, keyed "{prefix}:{exchange}", with the
// symbol as field and the JSON ticker as value. Every sync replaces the
// hash in a single MULTI/EXEC and refreshes its TTL, so a stopped mirror
// ages out instead of serving stale prices.
package mirror
