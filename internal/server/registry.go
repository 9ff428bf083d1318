package server

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry tracks every live connection's outbound channel,
// independent of room membership. It carries no broadcast primitive:
// fan-out is a RoomStore operation scoped to one room's members.
type Registry struct {
	mu     sync.RWMutex
	conns  map[uint64]chan<- []byte
	logger zerolog.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		conns:  make(map[uint64]chan<- []byte),
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// Register stores the outbound channel for a connection id. Double
// registration of the same id is a programming invariant violation
// and is reported as ErrDuplicateConnection.
func (r *Registry) Register(id uint64, outbound chan<- []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[id]; exists {
		return ErrDuplicateConnection
	}
	r.conns[id] = outbound
	return nil
}

// Unregister removes the mapping for id. Unregistering an absent id is
// a no-op: disconnect races are expected, not exceptional.
func (r *Registry) Unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// Send enqueues an encoded frame for the connection. If the id is
// absent the frame is silently dropped, since the connection already
// disconnected concurrently. A full outbound buffer also drops the
// frame rather than blocking the caller.
func (r *Registry) Send(id uint64, payload []byte) {
	r.mu.RLock()
	outbound, ok := r.conns[id]
	r.mu.RUnlock()

	if !ok {
		return
	}

	select {
	case outbound <- payload:
	default:
		r.logger.Warn().Uint64("conn_id", id).Msg("Outbound buffer full, dropping frame")
	}
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
