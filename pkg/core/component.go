// Package core defines live components and the sockets that carry them.
package core

import (
	"context"
	"io"
)

// Component is a stateful server-side view bound to one socket.
type Component interface {
	// Name identifies the component type in logs.
	Name() string

	// Mount is called once when the socket joins.
	Mount(ctx context.Context, params Params, session Session) error

	// Render writes the full document.
	Render(ctx context.Context) Renderer

	// HandleEvent processes a client event such as a click.
	HandleEvent(ctx context.Context, event string, payload map[string]any) error

	// HandleInfo processes a server-side message delivered to the socket.
	HandleInfo(ctx context.Context, msg any) error

	// Terminate is called when the socket goes away.
	Terminate(ctx context.Context, reason TerminateReason) error
}

// Patcher is implemented by components that can report their patchable
// regions, id -> outer HTML. The router sends only the regions that changed
// since the last frame.
type Patcher interface {
	Patches() (map[string]string, error)
}

// Renderer is the interface for rendering HTML content.
type Renderer interface {
	Render(ctx context.Context, w io.Writer) error
}

// RendererFunc is an adapter to allow ordinary functions to be used as Renderers.
type RendererFunc func(ctx context.Context, w io.Writer) error

func (f RendererFunc) Render(ctx context.Context, w io.Writer) error {
	return f(ctx, w)
}

// Params contains URL parameters and query strings from the connection.
type Params map[string]string

// Get returns a parameter value or empty string if not found.
func (p Params) Get(key string) string {
	return p[key]
}

// GetDefault returns a parameter value or the default if not found.
func (p Params) GetDefault(key, defaultValue string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return defaultValue
}

// Session keys set by the router.
const (
	SessionVisitor        = "visitor"
	SessionAcceptLanguage = "accept_language"
)

// Session contains data passed from the HTTP handler.
type Session map[string]any

// Get returns a session value.
func (s Session) Get(key string) any {
	return s[key]
}

// GetString returns a session value as string.
func (s Session) GetString(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// TerminateReason indicates why a component is being terminated.
type TerminateReason int

const (
	// TerminateNormal indicates clean disconnection.
	TerminateNormal TerminateReason = iota
	// TerminateShutdown indicates server shutdown.
	TerminateShutdown
	// TerminateError indicates termination due to an error.
	TerminateError
	// TerminateTimeout indicates termination due to inactivity.
	TerminateTimeout
)

func (r TerminateReason) String() string {
	switch r {
	case TerminateNormal:
		return "normal"
	case TerminateShutdown:
		return "shutdown"
	case TerminateError:
		return "error"
	case TerminateTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// BaseComponent provides default implementations for Component methods.
type BaseComponent struct {
	socket *Socket
}

// SetSocket sets the socket for the component (called by the router).
func (bc *BaseComponent) SetSocket(s *Socket) {
	bc.socket = s
}

// Socket returns the component's socket, nil for static renders.
func (bc *BaseComponent) Socket() *Socket {
	return bc.socket
}

func (bc *BaseComponent) Name() string { return "" }

func (bc *BaseComponent) Mount(ctx context.Context, params Params, session Session) error {
	return nil
}

func (bc *BaseComponent) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	return nil
}

func (bc *BaseComponent) HandleInfo(ctx context.Context, msg any) error {
	return nil
}

func (bc *BaseComponent) Terminate(ctx context.Context, reason TerminateReason) error {
	return nil
}

// SocketSetter is implemented by components embedding BaseComponent.
type SocketSetter interface {
	SetSocket(s *Socket)
}
