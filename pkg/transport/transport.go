// Package transport carries protocol frames between a browser and a live
// session over a websocket.
package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/gabrielmiguelok/scholarpage/pkg/protocol"
)

// Common transport errors.
var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendTimeout      = errors.New("send timeout")
	ErrTransportFull    = errors.New("transport buffer full")
)

// Transport is one client connection.
type Transport interface {
	// Send queues msg for the client.
	Send(msg *protocol.Message) error

	// Receive returns a channel for incoming frames.
	Receive() <-chan *protocol.Message

	// CloseChan is closed when the connection ends.
	CloseChan() <-chan struct{}

	Close() error

	IsConnected() bool
}

// Config holds common transport configuration.
type Config struct {
	// ReadTimeout closes a connection that sent nothing for this long.
	ReadTimeout time.Duration

	// WriteTimeout bounds a single frame write and a blocked Send.
	WriteTimeout time.Duration

	// PingInterval is how often to send websocket pings.
	PingInterval time.Duration

	// MaxMessageSize is the maximum frame size in bytes.
	MaxMessageSize int64

	SendBufferSize    int
	ReceiveBufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		PingInterval:      30 * time.Second,
		MaxMessageSize:    64 * 1024,
		SendBufferSize:    64,
		ReceiveBufferSize: 64,
	}
}

// base provides the channels shared by transports.
type base struct {
	config    *Config
	connected bool
	sendCh    chan *protocol.Message
	recvCh    chan *protocol.Message
	closeCh   chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
}

func newBase(config *Config) *base {
	if config == nil {
		config = DefaultConfig()
	}
	return &base{
		config:  config,
		sendCh:  make(chan *protocol.Message, config.SendBufferSize),
		recvCh:  make(chan *protocol.Message, config.ReceiveBufferSize),
		closeCh: make(chan struct{}),
	}
}

// IsConnected returns the connection status.
func (t *base) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

func (t *base) setConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = connected
}

// Receive returns the receive channel.
func (t *base) Receive() <-chan *protocol.Message {
	return t.recvCh
}

// CloseChan returns the close channel.
func (t *base) CloseChan() <-chan struct{} {
	return t.closeCh
}

func (t *base) close() bool {
	closed := false
	t.closeOnce.Do(func() {
		t.setConnected(false)
		close(t.closeCh)
		closed = true
	})
	return closed
}

// push hands a decoded frame to the reader, dropping it when the buffer is
// full.
func (t *base) push(msg *protocol.Message) error {
	select {
	case t.recvCh <- msg:
		return nil
	case <-t.closeCh:
		return ErrConnectionClosed
	default:
		return ErrTransportFull
	}
}
