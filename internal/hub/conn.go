package hub

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/coinfo/internal/model"
)

// Errors returned by senders.
var (
	ErrConnClosed    = errors.New("connection closed")
	ErrSendQueueFull = errors.New("send queue full")
	ErrDuplicateConn = errors.New("connection already registered")
)

// Sender is the write side of a client connection.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// Conn is one subscriber. Its subscription set is owned by the Index.
type Conn struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time

	sender Sender
	subs   map[model.Key]struct{}
}

// NewConn wraps sender as a subscriber.
func NewConn(id, remoteAddr string, sender Sender) *Conn {
	return &Conn{
		ID:          id,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		sender:      sender,
		subs:        make(map[model.Key]struct{}),
	}
}

// Send queues an encoded message for the client.
func (c *Conn) Send(data []byte) error {
	return c.sender.Send(data)
}

// Close closes the underlying transport.
func (c *Conn) Close() error {
	return c.sender.Close()
}

// Registry holds every open connection by id.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Conn)}
}

// Add registers conn.
func (r *Registry) Add(conn *Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn.ID]; ok {
		return ErrDuplicateConn
	}
	r.conns[conn.ID] = conn
	return nil
}

// Remove unregisters a connection. It reports whether one was removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

// Get returns the connection registered under id.
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Len returns the number of open connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// All returns the open connections ordered by connect time.
func (r *Registry) All() []*Conn {
	r.mu.RLock()
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}
