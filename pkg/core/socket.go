package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabrielmiguelok/scholarpage/pkg/protocol"
)

// Common socket errors.
var (
	ErrSocketClosed = errors.New("socket is closed")
	ErrSendFailed   = errors.New("failed to send message")
	ErrInfoFull     = errors.New("socket info queue full")
)

// Transport is the connection a socket writes to.
type Transport interface {
	Send(msg *protocol.Message) error
	Close() error
	IsConnected() bool
}

const defaultInfoBuffer = 16

// Socket is one live connection. Client frames arrive through the router;
// server-side messages for the component are queued with Deliver and read
// from Info by the same loop, so a component never sees two callbacks at
// once.
type Socket struct {
	id          string
	connected   bool
	connectedAt time.Time

	// Unix nanoseconds
	lastActivity atomic.Int64

	// patch version, increases with every patch frame
	version atomic.Uint64

	transport Transport
	info      chan any
	metadata  map[string]any

	mu sync.RWMutex
}

// NewSocket creates a new socket with the given ID and transport.
func NewSocket(id string, transport Transport) *Socket {
	now := time.Now()
	s := &Socket{
		id:          id,
		connected:   true,
		connectedAt: now,
		transport:   transport,
		info:        make(chan any, defaultInfoBuffer),
		metadata:    make(map[string]any),
	}
	s.lastActivity.Store(now.UnixNano())
	return s
}

// ID returns the socket's unique identifier.
func (s *Socket) ID() string {
	return s.id
}

// IsConnected returns true if the socket is connected.
func (s *Socket) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected && s.transport != nil && s.transport.IsConnected()
}

// ConnectedAt returns when the socket connected.
func (s *Socket) ConnectedAt() time.Time {
	return s.connectedAt
}

// LastActivity returns the time of last activity.
func (s *Socket) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// UpdateActivity updates the last activity timestamp.
func (s *Socket) UpdateActivity() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// Send sends a frame to the client.
func (s *Socket) Send(msg *protocol.Message) error {
	s.mu.RLock()
	connected := s.connected
	transport := s.transport
	s.mu.RUnlock()

	if !connected || transport == nil || !transport.IsConnected() {
		return ErrSocketClosed
	}

	if err := transport.Send(msg); err != nil {
		s.mu.RLock()
		stillConnected := s.connected
		s.mu.RUnlock()
		if !stillConnected {
			return ErrSocketClosed
		}
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

// Push sends a server event to the client.
func (s *Socket) Push(event string, payload map[string]any) error {
	return s.Send(&protocol.Message{Event: event, Payload: payload})
}

// SendPatch sends the changed regions under the next version. An empty
// set sends nothing.
func (s *Socket) SendPatch(roots map[string]string) error {
	if len(roots) == 0 {
		return nil
	}
	return s.Send(protocol.Patch(s.version.Add(1), roots))
}

// Version returns the last patch version sent.
func (s *Socket) Version() uint64 {
	return s.version.Load()
}

// Deliver queues msg for the component's HandleInfo without blocking.
func (s *Socket) Deliver(msg any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return ErrSocketClosed
	}
	select {
	case s.info <- msg:
		return nil
	default:
		return ErrInfoFull
	}
}

// Info returns the queue filled by Deliver.
func (s *Socket) Info() <-chan any {
	return s.info
}

// GetMetadata retrieves metadata by key.
func (s *Socket) GetMetadata(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata[key]
}

// SetMetadata stores metadata.
func (s *Socket) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[key] = value
}

// Close closes the socket connection.
func (s *Socket) Close() error {
	s.mu.Lock()
	s.connected = false
	transport := s.transport
	s.mu.Unlock()

	if transport != nil {
		return transport.Close()
	}
	return nil
}

// SocketManager manages all active sockets.
type SocketManager struct {
	sockets    map[string]*Socket
	isShutdown bool
	mu         sync.RWMutex
}

// NewSocketManager creates a new socket manager.
func NewSocketManager() *SocketManager {
	return &SocketManager{
		sockets: make(map[string]*Socket),
	}
}

// Add registers a socket. It fails once shutdown has started.
func (sm *SocketManager) Add(socket *Socket) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.isShutdown {
		return ErrSocketClosed
	}
	sm.sockets[socket.ID()] = socket
	return nil
}

// Remove unregisters a socket.
func (sm *SocketManager) Remove(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sockets, id)
}

// Get retrieves a socket by ID.
func (sm *SocketManager) Get(id string) (*Socket, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sockets[id]
	return s, ok
}

// Count returns the number of active sockets.
func (sm *SocketManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sockets)
}

// All returns all sockets.
func (sm *SocketManager) All() []*Socket {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	result := make([]*Socket, 0, len(sm.sockets))
	for _, s := range sm.sockets {
		result = append(result, s)
	}
	return result
}

// Broadcast delivers msg to every socket's info queue and returns how many
// accepted it.
func (sm *SocketManager) Broadcast(msg any) int {
	delivered := 0
	for _, s := range sm.All() {
		if s.Deliver(msg) == nil {
			delivered++
		}
	}
	return delivered
}

// Shutdown closes every socket. Their loops see the closed transport and
// terminate their components.
func (sm *SocketManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	if sm.isShutdown {
		sm.mu.Unlock()
		return nil
	}
	sm.isShutdown = true
	sockets := make([]*Socket, 0, len(sm.sockets))
	for _, s := range sm.sockets {
		sockets = append(sockets, s)
	}
	sm.mu.Unlock()

	var errs []error
	for _, s := range sockets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsShutdown returns true if the manager is shutting down.
func (sm *SocketManager) IsShutdown() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.isShutdown
}

// CleanupInactive closes and removes sockets inactive for longer than
// maxInactive.
func (sm *SocketManager) CleanupInactive(maxInactive time.Duration) int {
	sm.mu.Lock()
	var stale []*Socket
	now := time.Now()
	for id, s := range sm.sockets {
		if now.Sub(s.LastActivity()) > maxInactive {
			stale = append(stale, s)
			delete(sm.sockets, id)
		}
	}
	sm.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}
