package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
	"github.com/gabrielmiguelok/scholarpage/pkg/protocol"
)

// WebSocket security errors
var (
	ErrOriginNotAllowed = errors.New("origin not allowed")
)

// WebSocketConfig configures WebSocket security settings.
type WebSocketConfig struct {
	// AllowedOrigins lists cross-origin pages allowed to connect. Empty means
	// same-origin only.
	AllowedOrigins []string

	// InsecureDevMode disables origin validation. Development only.
	InsecureDevMode bool
}

// DefaultWebSocketConfig returns the same-origin configuration.
func DefaultWebSocketConfig() *WebSocketConfig {
	return &WebSocketConfig{}
}

// WebSocketTransport implements Transport using WebSocket.
type WebSocketTransport struct {
	*base
	conn     *websocket.Conn
	codec    protocol.Codec
	wsConfig *WebSocketConfig
	logger   logging.Logger

	// closed when writeLoop exits
	writeDone chan struct{}
	mu        sync.Mutex
}

// Option configures a WebSocketTransport.
type Option func(*WebSocketTransport)

// WithWebSocketConfig sets the origin policy.
func WithWebSocketConfig(c *WebSocketConfig) Option {
	return func(t *WebSocketTransport) {
		if c != nil {
			t.wsConfig = c
		}
	}
}

// WithCodec sets the frame codec; JSON by default.
func WithCodec(c protocol.Codec) Option {
	return func(t *WebSocketTransport) {
		if c != nil {
			t.codec = c
		}
	}
}

// WithLogger sets the logger for dropped and undecodable frames.
func WithLogger(l logging.Logger) Option {
	return func(t *WebSocketTransport) { t.logger = logging.OrNop(l) }
}

// NewWebSocketTransport creates a new WebSocket transport.
func NewWebSocketTransport(config *Config, opts ...Option) *WebSocketTransport {
	t := &WebSocketTransport{
		base:     newBase(config),
		codec:    protocol.NewJSONCodec(),
		wsConfig: DefaultWebSocketConfig(),
		logger:   logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Codec returns the frame codec.
func (t *WebSocketTransport) Codec() protocol.Codec {
	return t.codec
}

// isOriginAllowed checks if the origin is allowed for WebSocket connections.
func (t *WebSocketTransport) isOriginAllowed(origin string, requestHost string) bool {
	if t.wsConfig.InsecureDevMode {
		return true
	}

	// Empty origin = same-origin request (allowed)
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Host == requestHost {
		return true
	}

	for _, allowed := range t.wsConfig.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if allowedURL, err := url.Parse(allowed); err == nil && allowedURL.Host != "" {
			if allowedURL.Host == originURL.Host {
				return true
			}
		}
	}
	return false
}

// Upgrade upgrades an HTTP connection to WebSocket (server-side).
func (t *WebSocketTransport) Upgrade(w http.ResponseWriter, r *http.Request) error {
	if !t.isOriginAllowed(r.Header.Get("Origin"), r.Host) {
		http.Error(w, "Forbidden: Origin not allowed", http.StatusForbidden)
		return ErrOriginNotAllowed
	}

	// Origin was checked above; coder/websocket's own check would reject the
	// configured cross-origin pages.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return fmt.Errorf("accept websocket: %w", err)
	}
	t.start(conn)
	return nil
}

// Dial connects to a live endpoint (client-side).
func Dial(ctx context.Context, rawURL string, header http.Header, config *Config, opts ...Option) (*WebSocketTransport, error) {
	t := NewWebSocketTransport(config, opts...)
	conn, _, err := websocket.Dial(ctx, rawURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	t.start(conn)
	return t, nil
}

func (t *WebSocketTransport) start(conn *websocket.Conn) {
	conn.SetReadLimit(t.config.MaxMessageSize)

	t.mu.Lock()
	t.conn = conn
	t.writeDone = make(chan struct{})
	t.mu.Unlock()
	t.setConnected(true)

	go t.readLoop(conn)
	go t.writeLoop(conn)
	go t.pingLoop(conn)
}

// Send queues msg for the write loop.
func (t *WebSocketTransport) Send(msg *protocol.Message) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}

	timer := time.NewTimer(t.config.WriteTimeout)
	defer timer.Stop()

	select {
	case t.sendCh <- msg:
		return nil
	case <-t.closeCh:
		return ErrConnectionClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}

// Close flushes queued frames, bounded by the write timeout, then closes
// the WebSocket connection.
func (t *WebSocketTransport) Close() error {
	if !t.close() {
		return nil
	}

	t.mu.Lock()
	conn, done := t.conn, t.writeDone
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}

	timer := time.NewTimer(t.config.WriteTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	}
	return conn.Close(websocket.StatusNormalClosure, "closing")
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	defer t.Close()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), t.config.ReadTimeout)
		_, data, err := conn.Read(ctx)
		cancel()
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				t.logger.Debug("websocket read ended", logging.Err(err))
			}
			return
		}

		msg, err := t.codec.Decode(data)
		if err != nil {
			t.logger.Debug("dropping undecodable frame", logging.Err(err))
			continue
		}

		switch err := t.push(msg); {
		case errors.Is(err, ErrConnectionClosed):
			return
		case err != nil:
			t.logger.Warn("receive buffer full, dropping frame", logging.String("event", msg.Event))
		}
	}
}

// writeLoop writes queued frames; once closing it drains what is left.
func (t *WebSocketTransport) writeLoop(conn *websocket.Conn) {
	defer close(t.writeDone)

	for {
		select {
		case msg := <-t.sendCh:
			if err := t.write(conn, msg); err != nil {
				go t.Close()
				return
			}
		case <-t.closeCh:
			for {
				select {
				case msg := <-t.sendCh:
					if t.write(conn, msg) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (t *WebSocketTransport) write(conn *websocket.Conn, msg *protocol.Message) error {
	data, err := t.codec.Encode(msg)
	if err != nil {
		t.logger.Error("encode frame", logging.String("event", msg.Event), logging.Err(err))
		return nil
	}

	typ := websocket.MessageText
	if t.codec.Binary() {
		typ = websocket.MessageBinary
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.config.WriteTimeout)
	defer cancel()
	return conn.Write(ctx, typ, data)
}

func (t *WebSocketTransport) pingLoop(conn *websocket.Conn) {
	if t.config.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(t.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), t.config.WriteTimeout)
			_ = conn.Ping(ctx)
			cancel()
		case <-t.closeCh:
			return
		}
	}
}
