package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdown_RunsHooksByPriority(t *testing.T) {
	h := NewHandler(&Config{Timeout: time.Second})

	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	h.RegisterFunc("store", PriorityStore, record("store"))
	h.RegisterFunc("http", PriorityHTTP, record("http"))
	h.RegisterFunc("sessions", PrioritySessions, record("sessions"))

	require.NoError(t, h.Shutdown())
	assert.Equal(t, []string{"http", "sessions", "store"}, order)

	select {
	case <-h.Done():
	default:
		t.Fatal("done not closed")
	}
	assert.ErrorIs(t, h.Shutdown(), ErrAlreadyClosed)
}

func TestShutdown_JoinsErrors(t *testing.T) {
	h := NewHandler(&Config{Timeout: time.Second})
	boom := errors.New("boom")
	h.RegisterFunc("a", 1, func(context.Context) error { return boom })
	ran := false
	h.RegisterFunc("b", 2, func(context.Context) error { ran = true; return nil })

	err := h.Shutdown()
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran, "later hooks still run")
}

func TestShutdown_Timeout(t *testing.T) {
	h := NewHandler(&Config{Timeout: 10 * time.Millisecond})
	h.RegisterFunc("slow", 1, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	assert.ErrorIs(t, h.Shutdown(), ErrShutdownTimeout)
}

type closer struct{ closed bool }

func (c *closer) Close() error { c.closed = true; return nil }

func TestRegisterCloser(t *testing.T) {
	h := NewHandler(&Config{Timeout: time.Second})
	c := &closer{}
	h.RegisterCloser("bus", PriorityBus, c)
	require.NoError(t, h.Shutdown())
	assert.True(t, c.closed)
}

func TestReload(t *testing.T) {
	h := NewHandler(nil)
	var calls []string
	h.OnReload("content", func(context.Context) error { calls = append(calls, "content"); return nil })
	h.OnReload("pages", func(context.Context) error { calls = append(calls, "pages"); return errors.New("partial") })

	err := h.Reload(context.Background())
	assert.EqualError(t, err, "partial")
	assert.Equal(t, []string{"content", "pages"}, calls)
}

func TestWait_ContextCancelShutsDown(t *testing.T) {
	h := NewHandler(&Config{Timeout: time.Second})
	stopped := false
	h.RegisterFunc("http", PriorityHTTP, func(context.Context) error { stopped = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.Wait(ctx))
	assert.True(t, stopped)
}
