package signaling

import (
	"sync/atomic"

	"github.com/go4org/hashtriemap"
	"github.com/google/uuid"
)

// ConnID is the server-assigned identity of one live websocket connection.
// Clients never see it.
type ConnID string

func newConnID() ConnID {
	return ConnID(uuid.NewString())
}

// Registry tracks every live connection by its ConnID.
type Registry struct {
	conns hashtriemap.HashTrieMap[ConnID, *Client]
	count atomic.Int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers c. Adding the same connection twice is a no-op.
func (r *Registry) Add(c *Client) {
	if _, loaded := r.conns.LoadOrStore(c.ID, c); !loaded {
		r.count.Add(1)
	}
}

// Remove forgets the connection and reports whether it was registered.
func (r *Registry) Remove(id ConnID) bool {
	if _, loaded := r.conns.LoadAndDelete(id); !loaded {
		return false
	}
	r.count.Add(-1)
	return true
}

// Get returns the live connection for id.
func (r *Registry) Get(id ConnID) (*Client, bool) {
	return r.conns.Load(id)
}

// Range calls fn for every live connection until fn returns false.
func (r *Registry) Range(fn func(*Client) bool) {
	r.conns.Range(func(_ ConnID, c *Client) bool {
		return fn(c)
	})
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return int(r.count.Load())
}
