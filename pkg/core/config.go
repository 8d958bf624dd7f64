package core

import (
	"context"
	"time"
)

// TimeoutConfig bounds component callbacks.
type TimeoutConfig struct {
	// ComponentMount covers Mount, which bootstraps the document.
	ComponentMount time.Duration

	// ComponentEvent covers one HandleEvent plus the patch it produces.
	ComponentEvent time.Duration

	// ComponentInfo covers one HandleInfo.
	ComponentInfo time.Duration

	// ComponentTerminate covers Terminate.
	ComponentTerminate time.Duration

	// SessionIdle closes sockets with no client activity for this long.
	SessionIdle time.Duration
}

// DefaultTimeoutConfig returns the default timeouts.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		ComponentMount:     10 * time.Second,
		ComponentEvent:     5 * time.Second,
		ComponentInfo:      10 * time.Second,
		ComponentTerminate: 2 * time.Second,
		SessionIdle:        30 * time.Minute,
	}
}

// RelaxedTimeoutConfig returns more relaxed timeouts for development.
func RelaxedTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		ComponentMount:     60 * time.Second,
		ComponentEvent:     30 * time.Second,
		ComponentInfo:      60 * time.Second,
		ComponentTerminate: 10 * time.Second,
		SessionIdle:        2 * time.Hour,
	}
}

// WithTimeout derives a context bounded by d; a non-positive d leaves ctx
// unbounded.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
