// Package shutdown runs ordered hooks when the server is told to stop, and
// reload hooks when it is told to re-read its content.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
)

// Common shutdown errors.
var (
	ErrShutdownTimeout = errors.New("shutdown timed out")
	ErrAlreadyClosed   = errors.New("shutdown handler already closed")
)

// Hook priorities; lower runs first.
const (
	PriorityHTTP     = 100
	PrioritySessions = 200
	PriorityBus      = 300
	PriorityStore    = 400
	PriorityLast     = 1000
)

// Hook represents a shutdown hook.
type Hook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// Config configures the shutdown handler.
type Config struct {
	// Timeout bounds the whole shutdown.
	Timeout time.Duration
	// Signals stop the server.
	Signals []os.Signal
	// ReloadSignals trigger the reload hooks and keep running.
	ReloadSignals []os.Signal
	Logger        logging.Logger
}

// DefaultConfig stops on SIGINT/SIGTERM and reloads on SIGHUP.
func DefaultConfig() *Config {
	return &Config{
		Timeout:       30 * time.Second,
		Signals:       []os.Signal{os.Interrupt, syscall.SIGTERM},
		ReloadSignals: []os.Signal{syscall.SIGHUP},
	}
}

// Handler manages graceful shutdown.
type Handler struct {
	config  *Config
	logger  logging.Logger
	hooks   []Hook
	reloads []Hook
	done    chan struct{}
	closed  bool
	mu      sync.Mutex
}

// NewHandler creates a new shutdown handler.
func NewHandler(config *Config) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Handler{
		config: config,
		logger: logging.OrNop(config.Logger),
		done:   make(chan struct{}),
	}
}

// Register adds a shutdown hook.
func (h *Handler) Register(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// RegisterFunc registers fn as a shutdown hook.
func (h *Handler) RegisterFunc(name string, priority int, fn func(ctx context.Context) error) {
	h.Register(Hook{Name: name, Priority: priority, Fn: fn})
}

// RegisterCloser registers closer.Close as a shutdown hook.
func (h *Handler) RegisterCloser(name string, priority int, closer interface{ Close() error }) {
	h.RegisterFunc(name, priority, func(context.Context) error { return closer.Close() })
}

// OnReload adds a hook run on every reload signal, in registration order.
func (h *Handler) OnReload(name string, fn func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloads = append(h.reloads, Hook{Name: name, Fn: fn})
}

// Wait blocks until a stop signal arrives or ctx ends, running the reload
// hooks for every reload signal in between, then shuts down.
func (h *Handler) Wait(ctx context.Context) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, h.config.Signals...)
	defer signal.Stop(stop)

	reload := make(chan os.Signal, 1)
	if len(h.config.ReloadSignals) > 0 {
		signal.Notify(reload, h.config.ReloadSignals...)
		defer signal.Stop(reload)
	}

	for {
		select {
		case sig := <-stop:
			h.logger.Info("shutdown signal", logging.String("signal", sig.String()))
			return h.Shutdown()
		case sig := <-reload:
			h.logger.Info("reload signal", logging.String("signal", sig.String()))
			if err := h.Reload(ctx); err != nil {
				h.logger.Warn("reload incomplete", logging.Err(err))
			}
		case <-ctx.Done():
			return h.Shutdown()
		case <-h.done:
			return nil
		}
	}
}

// Reload runs the reload hooks and joins their errors.
func (h *Handler) Reload(ctx context.Context) error {
	h.mu.Lock()
	hooks := append([]Hook(nil), h.reloads...)
	h.mu.Unlock()

	var errs []error
	for _, hook := range hooks {
		if err := hook.Fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown runs every hook by priority within the configured timeout.
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrAlreadyClosed
	}
	h.closed = true
	close(h.done)
	hooks := make([]Hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].Priority < hooks[j].Priority
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var errs []error
	for _, hook := range hooks {
		start := time.Now()
		err := hook.Fn(ctx)
		h.logger.Debug("shutdown hook done",
			logging.String("hook", hook.Name),
			logging.Duration("took", time.Since(start)),
			logging.Err(err))
		if err != nil {
			errs = append(errs, err)
		}

		select {
		case <-ctx.Done():
			return errors.Join(append(errs, ErrShutdownTimeout)...)
		default:
		}
	}
	return errors.Join(errs...)
}

// Done is closed once shutdown starts.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
