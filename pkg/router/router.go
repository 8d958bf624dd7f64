// Package router serves the homepage over HTTP and keeps one live session
// per websocket connection.
package router

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/gabrielmiguelok/scholarpage/pkg/core"
	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
	"github.com/gabrielmiguelok/scholarpage/pkg/metrics"
	"github.com/gabrielmiguelok/scholarpage/pkg/pool"
	"github.com/gabrielmiguelok/scholarpage/pkg/protocol"
	"github.com/gabrielmiguelok/scholarpage/pkg/recovery"
	"github.com/gabrielmiguelok/scholarpage/pkg/transport"
)

// Routes.
const (
	PathDocument = "/"
	PathLive     = "/live"
	PathScript   = "/_live/scholarpage.js"
	PathImages   = "/images"
	PathHealth   = "/healthz"
	PathMetrics  = "/metrics"
)

// DefaultVisitorCookie names the cookie carrying the visitor id.
const DefaultVisitorCookie = "scholarpage_visitor"

// Common router errors.
var (
	ErrNilRenderer    = errors.New("router: component returned nil renderer")
	ErrNotJoined      = errors.New("router: event before join")
	ErrAtCapacity     = errors.New("router: live sessions at capacity")
	ErrShuttingDown   = errors.New("router: shutting down")
	ErrNoPatchSupport = errors.New("router: component has no patch roots")
)

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Router) { r.logger = logging.OrNop(l) }
}

// WithHealth mounts h at /healthz.
func WithHealth(h http.Handler) Option {
	return func(r *Router) { r.health = h }
}

// WithMetrics records into m and serves it at /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		if m != nil {
			r.metrics = m
			r.serveMetrics = true
		}
	}
}

// WithImages serves fsys under /images/.
func WithImages(fsys fs.FS) Option {
	return func(r *Router) { r.images = fsys }
}

// WithClientScript serves script at /_live/scholarpage.js.
func WithClientScript(script []byte) Option {
	return func(r *Router) { r.script = script }
}

// WithTransportConfig sets websocket timeouts and buffer sizes.
func WithTransportConfig(c *transport.Config) Option {
	return func(r *Router) { r.transport = c }
}

// WithWebSocketConfig sets the websocket origin policy.
func WithWebSocketConfig(c *transport.WebSocketConfig) Option {
	return func(r *Router) { r.websocket = c }
}

// WithTimeouts bounds component callbacks.
func WithTimeouts(t core.TimeoutConfig) Option {
	return func(r *Router) { r.timeouts = t }
}

// WithMaxSessions caps concurrent live sessions. Zero means unlimited.
func WithMaxSessions(n int) Option {
	return func(r *Router) { r.sessions.max = n }
}

// WithVisitorCookie sets the visitor cookie name and whether it is Secure.
func WithVisitorCookie(name string, secure bool) Option {
	return func(r *Router) {
		if name != "" {
			r.cookieName = name
		}
		r.cookieSecure = secure
	}
}

// WithLiveRateLimit caps websocket upgrades per client IP per second.
func WithLiveRateLimit(perSecond int) Option {
	return func(r *Router) { r.liveRate = perSecond }
}

// WithSecureHeaders overrides the security header policy.
func WithSecureHeaders(c SecureHeadersConfig) Option {
	return func(r *Router) { r.headers = c }
}

// Router handles HTTP routing.
type Router struct {
	mux       chi.Router
	component func() core.Component
	logger    logging.Logger

	health       http.Handler
	images       fs.FS
	script       []byte
	transport    *transport.Config
	websocket    *transport.WebSocketConfig
	timeouts     core.TimeoutConfig
	headers      SecureHeadersConfig
	cookieName   string
	cookieSecure bool
	liveRate     int
	metrics      *metrics.Metrics
	serveMetrics bool

	sessions *SessionManager
	sockets  *core.SocketManager

	// base outlives requests; live loops stop when it is cancelled.
	base   context.Context
	cancel context.CancelFunc
	loops  sync.WaitGroup
}

// New creates a router mounting one component per visitor.
func New(component func() core.Component, opts ...Option) *Router {
	base, cancel := context.WithCancel(context.Background())
	r := &Router{
		component:  component,
		logger:     logging.NopLogger{},
		transport:  transport.DefaultConfig(),
		websocket:  transport.DefaultWebSocketConfig(),
		timeouts:   core.DefaultTimeoutConfig(),
		headers:    DefaultSecureHeadersConfig(),
		cookieName: DefaultVisitorCookie,
		metrics:    metrics.NewMetrics("scholarpage"),
		sessions:   NewSessionManager(0),
		sockets:    core.NewSocketManager(),
		base:       base,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.mux = r.routes()
	return r
}

func (r *Router) routes() chi.Router {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(requestIDHeader)
	mux.Use(logging.RequestLogger(r.logger))
	mux.Use(recovery.Middleware(r.logger))

	mux.Group(func(g chi.Router) {
		g.Use(SecureHeadersWithConfig(r.headers))
		g.Use(middleware.Compress(5, "text/html", "text/javascript"))
		g.Get(PathDocument, r.handleDocument)
		g.Get(PathScript, r.handleScript)
		if r.images != nil {
			g.Handle(PathImages+"/*", http.StripPrefix(PathImages+"/", http.FileServerFS(r.images)))
		}
	})

	live := mux.With()
	if r.liveRate > 0 {
		live = mux.With(RateLimit(r.liveRate))
	}
	live.Get(PathLive, r.handleLive)

	if r.health != nil {
		mux.Method(http.MethodGet, PathHealth, r.health)
	}
	if r.serveMetrics {
		mux.Method(http.MethodGet, PathMetrics, r.metrics.Handler())
	}
	return mux
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Sessions returns the live session manager.
func (r *Router) Sessions() *SessionManager {
	return r.sessions
}

// SocketManager returns the socket manager.
func (r *Router) SocketManager() *core.SocketManager {
	return r.sockets
}

// Metrics returns the metrics the router records into.
func (r *Router) Metrics() *metrics.Metrics {
	return r.metrics
}

// Broadcast delivers msg to every live session's component.
func (r *Router) Broadcast(msg any) int {
	return r.sockets.Broadcast(msg)
}

// Shutdown closes every live session and waits for their loops to finish.
func (r *Router) Shutdown(ctx context.Context) error {
	r.cancel()
	err := r.sockets.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		r.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
}

// Janitor closes sessions idle longer than the configured session timeout
// until ctx ends.
func (r *Router) Janitor(ctx context.Context) {
	idle := r.timeouts.SessionIdle
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := r.sockets.CleanupInactive(idle); n > 0 {
				r.logger.Info("closed idle live sessions", logging.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Router) handleDocument(w http.ResponseWriter, req *http.Request) {
	logger := logging.L(req.Context())
	session := r.session(w, req)
	timer := r.metrics.RenderDuration.Timer()

	component := r.component()
	ctx, cancel := core.WithTimeout(req.Context(), r.timeouts.ComponentMount)
	defer cancel()
	defer func() {
		_ = component.Terminate(context.WithoutCancel(ctx), core.TerminateNormal)
	}()

	err := recovery.Guard(logger, "mount", func() error {
		return component.Mount(core.BuildContext(ctx, nil, session, params(req)), params(req), session)
	})
	if err != nil {
		r.recordPanic(err)
		logger.Error("mount failed", logging.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	renderer := component.Render(ctx)
	if renderer == nil {
		logger.Error("render failed", logging.Err(ErrNilRenderer))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	if err := renderer.Render(ctx, buf); err != nil {
		logger.Error("render failed", logging.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
	r.metrics.DocumentsRendered.Inc()
	timer.ObserveDuration()
}

func (r *Router) handleScript(w http.ResponseWriter, req *http.Request) {
	if len(r.script) == 0 {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(r.script)
}

func (r *Router) handleLive(w http.ResponseWriter, req *http.Request) {
	logger := logging.L(req.Context())

	codec, err := protocol.ForName(req.URL.Query().Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.sockets.IsShutdown() {
		http.Error(w, ErrShuttingDown.Error(), http.StatusServiceUnavailable)
		return
	}
	if r.sessions.Full() {
		http.Error(w, ErrAtCapacity.Error(), http.StatusServiceUnavailable)
		return
	}

	session := r.session(w, req)
	tr := transport.NewWebSocketTransport(r.transport,
		transport.WithCodec(codec),
		transport.WithWebSocketConfig(r.websocket),
		transport.WithLogger(logger),
	)
	if err := tr.Upgrade(w, req); err != nil {
		logger.Warn("websocket upgrade failed", logging.Err(err))
		return
	}

	socket := core.NewSocket(uuid.NewString(), tr)
	component := r.component()
	if s, ok := component.(core.SocketSetter); ok {
		s.SetSocket(socket)
	}

	ls, err := r.sessions.Create(socket, tr, component, params(req), session)
	if err == nil {
		err = r.sockets.Add(socket)
		if err != nil {
			r.sessions.Remove(ls.ID)
		}
	}
	if err != nil {
		logger.Warn("live session refused", logging.Err(err))
		_ = tr.Close()
		return
	}

	logger = logger.With(
		logging.String("socket", socket.ID()),
		logging.String("codec", codec.Name()),
		logging.String("visitor", session.GetString(core.SessionVisitor)),
	)
	logger.Debug("live session opened")
	r.metrics.SessionsActive.Inc()
	r.metrics.SessionsTotal.Inc()

	r.loops.Add(1)
	go func() {
		defer r.loops.Done()
		r.serve(logger, ls)
	}()
}

func (r *Router) recordPanic(err error) {
	if errors.Is(err, recovery.ErrPanic) {
		r.metrics.PanicsTotal.Inc()
	}
}

// session builds the component session, issuing a visitor id on first
// visit.
func (r *Router) session(w http.ResponseWriter, req *http.Request) core.Session {
	visitor := ""
	if c, err := req.Cookie(r.cookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			visitor = c.Value
		}
	}
	if visitor == "" {
		visitor = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     r.cookieName,
			Value:    visitor,
			Path:     "/",
			MaxAge:   int((365 * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			Secure:   r.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return core.Session{
		core.SessionVisitor:        visitor,
		core.SessionAcceptLanguage: req.Header.Get("Accept-Language"),
	}
}

func params(req *http.Request) core.Params {
	p := make(core.Params)
	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			p[key] = values[0]
		}
	}
	return p
}

// requestIDHeader exposes chi's request id to handlers reading the header.
func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if id := middleware.GetReqID(req.Context()); id != "" && req.Header.Get("X-Request-ID") == "" {
			req.Header.Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, req)
	})
}
