package services

import (
	"log"
	"sync"
)

// Conn is the transport half the registry tracks: something that can accept
// an encoded frame and be closed when its registration is superseded.
type Conn interface {
	// Send queues a frame for delivery. It returns false when the peer is
	// gone or too slow to keep up; the frame is dropped either way.
	Send(frame []byte) bool
	Close()
}

// Registry maps authenticated user ids to their active connection. The
// policy is single active connection per user: a new registration wins and
// the superseded handle is returned to the caller for closing.
type Registry struct {
	mu    sync.RWMutex
	conns map[uint]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint]Conn)}
}

// Register stores userID -> conn, returning the handle it displaced, if any.
func (r *Registry) Register(userID uint, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.conns[userID]
	r.conns[userID] = conn
	if prev != nil {
		log.Printf("registry: user %d re-registered, superseding previous connection", userID)
	}
	return prev
}

// Unregister removes the entry owned by conn, located by handle identity so
// a stale close can never evict a successor registration for the same user.
// Unknown handles are a silent no-op.
func (r *Registry) Unregister(conn Conn) (uint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, c := range r.conns {
		if c == conn {
			delete(r.conns, userID)
			return userID, true
		}
	}
	return 0, false
}

// Lookup returns the active connection for userID.
func (r *Registry) Lookup(userID uint) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
