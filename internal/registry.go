package internal

import "sync"

// Registry tracks the single live connection per authenticated user. A new
// connection for the same user supersedes the old one, which is forcibly
// closed so stale sockets never receive pushes.
type Registry struct {
	mu      sync.RWMutex
	clients map[int64]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[int64]*Client)}
}

// Register installs client as the live connection for its user and returns
// the superseded client, if any. The caller closes the superseded one
// outside the lock.
func (r *Registry) Register(client *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	prior := r.clients[client.userID]
	r.clients[client.userID] = client
	return prior
}

// Unregister removes client if it is still the live connection for its user
// and reports whether it was. A superseded connection's teardown must not
// evict its successor.
func (r *Registry) Unregister(client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.clients[client.userID]; ok && current == client {
		delete(r.clients, client.userID)
		return true
	}
	return false
}

// Get returns the live connection for userID, or nil.
func (r *Registry) Get(userID int64) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[userID]
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
