package hub

import (
	"sort"
	"sync"

	"github.com/rickgao/coinfo/internal/model"
)

// Index maps exchange:symbol keys to their subscribers and keeps each
// connection's own subscription set in step with it. A key with no
// subscribers has no entry.
type Index struct {
	mu   sync.RWMutex
	subs map[model.Key]map[string]*Conn
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{subs: make(map[model.Key]map[string]*Conn)}
}

// Subscribe adds conn to every exchange:symbol key and returns the
// connection's full subscription set.
func (x *Index) Subscribe(conn *Conn, exchange model.Exchange, symbols []string) []model.Key {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, symbol := range symbols {
		key := model.NewKey(exchange, symbol)
		conn.subs[key] = struct{}{}

		set, ok := x.subs[key]
		if !ok {
			set = make(map[string]*Conn)
			x.subs[key] = set
		}
		set[conn.ID] = conn
	}
	return sortedKeys(conn.subs)
}

// Unsubscribe removes conn from every exchange:symbol key and returns the
// connection's remaining subscription set. Unknown keys are ignored.
func (x *Index) Unsubscribe(conn *Conn, exchange model.Exchange, symbols []string) []model.Key {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, symbol := range symbols {
		x.removeLocked(conn, model.NewKey(exchange, symbol))
	}
	return sortedKeys(conn.subs)
}

// RemoveConn drops every subscription of conn and returns how many it had.
// Calling it again is a no-op.
func (x *Index) RemoveConn(conn *Conn) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	n := len(conn.subs)
	for key := range conn.subs {
		x.removeLocked(conn, key)
	}
	return n
}

func (x *Index) removeLocked(conn *Conn, key model.Key) {
	delete(conn.subs, key)

	set, ok := x.subs[key]
	if !ok {
		return
	}
	delete(set, conn.ID)
	if len(set) == 0 {
		delete(x.subs, key)
	}
}

// Subscribers returns the connections subscribed to key.
func (x *Index) Subscribers(key model.Key) []*Conn {
	x.mu.RLock()
	defer x.mu.RUnlock()

	set := x.subs[key]
	out := make([]*Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// SubscriptionsOf returns the subscription set of conn.
func (x *Index) SubscriptionsOf(conn *Conn) []model.Key {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return sortedKeys(conn.subs)
}

// Keys returns every key with at least one subscriber.
func (x *Index) Keys() []model.Key {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return sortedKeys(x.subs)
}

// Len returns the number of subscribed keys.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.subs)
}

// Subscriptions returns the number of (connection, key) pairs.
func (x *Index) Subscriptions() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n := 0
	for _, set := range x.subs {
		n += len(set)
	}
	return n
}

func sortedKeys[V any](m map[model.Key]V) []model.Key {
	out := make([]model.Key, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exchange != out[j].Exchange {
			return out[i].Exchange < out[j].Exchange
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
