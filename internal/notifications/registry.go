// Package notifications delivers persisted notifications to connected
// websocket clients, locally or across instances through a broker.
package notifications

import (
	"errors"
	"sync"

	"inkwell/internal/observability"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrUserConnLimit   = errors.New("user connection limit reached")
	ErrServerConnLimit = errors.New("server connection limit reached")
)

// Registry maps a recipient id to its live clients. One Registry is shared by
// the websocket handler and the Dispatcher of a process.
type Registry struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	maxPerUser int
	maxTotal   int
}

func NewRegistry() *Registry {
	return &Registry{
		conns:      make(map[uint]map[*Client]struct{}),
		maxPerUser: maxConnsPerUser,
		maxTotal:   maxTotalConns,
	}
}

// Register joins client to userID's room. Registering the same client twice is a no-op.
func (r *Registry) Register(userID uint, client *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.conns[userID]
	if ok {
		if _, exists := m[client]; exists {
			return nil
		}
	}
	if r.totalConns >= r.maxTotal {
		return ErrServerConnLimit
	}
	if len(m) >= r.maxPerUser {
		return ErrUserConnLimit
	}
	if !ok {
		m = make(map[*Client]struct{})
		r.conns[userID] = m
	}

	m[client] = struct{}{}
	client.roomID = userID
	r.totalConns++
	observability.RealtimeConnections.Inc()
	return nil
}

// Unregister removes client from whatever room it joined.
func (r *Registry) Unregister(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.conns[client.roomID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	r.totalConns--
	observability.RealtimeConnections.Dec()
	if len(m) == 0 {
		delete(r.conns, client.roomID)
	}
}

// Lookup returns a snapshot of userID's clients.
func (r *Registry) Lookup(userID uint) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.conns[userID]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether a user currently has at least one registered connection.
func (r *Registry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalConns
}

// CloseAll tells every client to go away and empties the registry. The close
// frame itself is written by each client's WritePump.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, clients := range r.conns {
		for client := range clients {
			client.goAway()
		}
	}
	observability.RealtimeConnections.Sub(float64(r.totalConns))
	r.conns = make(map[uint]map[*Client]struct{})
	r.totalConns = 0
}
