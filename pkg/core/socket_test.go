package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gabrielmiguelok/scholarpage/pkg/protocol"
)

// MockTransport implements Transport for testing.
type MockTransport struct {
	connected bool
	messages  []*protocol.Message
	mu        sync.Mutex
}

func NewMockTransport() *MockTransport {
	return &MockTransport{connected: true}
}

func (m *MockTransport) Send(msg *protocol.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrSocketClosed
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockTransport) Messages() []*protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*protocol.Message(nil), m.messages...)
}

func TestNewSocket(t *testing.T) {
	socket := NewSocket("test-id", NewMockTransport())

	if socket.ID() != "test-id" {
		t.Errorf("expected ID 'test-id', got '%s'", socket.ID())
	}
	if !socket.IsConnected() {
		t.Error("expected socket to be connected")
	}
	if socket.Version() != 0 {
		t.Errorf("expected version 0, got %d", socket.Version())
	}
}

func TestSocket_Send_Closed(t *testing.T) {
	socket := NewSocket("test-id", NewMockTransport())
	socket.Close()

	if err := socket.Send(&protocol.Message{Event: "test"}); err != ErrSocketClosed {
		t.Errorf("expected ErrSocketClosed, got %v", err)
	}
	if err := socket.Deliver("reload"); err != ErrSocketClosed {
		t.Errorf("expected ErrSocketClosed from Deliver, got %v", err)
	}
}

func TestSocket_Send_Concurrent(t *testing.T) {
	transport := NewMockTransport()
	socket := NewSocket("test-id", transport)

	const goroutines = 50
	const messagesPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < messagesPerGoroutine; j++ {
				socket.Push("test", map[string]any{"id": id, "msg": j})
			}
		}(i)
	}
	wg.Wait()

	if got, want := len(transport.Messages()), goroutines*messagesPerGoroutine; got != want {
		t.Errorf("expected %d messages, got %d", want, got)
	}
}

func TestSocket_SendPatch(t *testing.T) {
	transport := NewMockTransport()
	socket := NewSocket("test-id", transport)

	if err := socket.SendPatch(nil); err != nil {
		t.Fatalf("empty patch: %v", err)
	}
	if len(transport.Messages()) != 0 {
		t.Fatal("empty patch should send nothing")
	}

	socket.SendPatch(map[string]string{"home-section": "<section></section>"})
	socket.SendPatch(map[string]string{"site-footer": "<footer></footer>"})

	msgs := transport.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(msgs))
	}
	for i, msg := range msgs {
		if msg.Event != protocol.EventPatch {
			t.Errorf("frame %d: event %q", i, msg.Event)
		}
		if msg.Version != uint64(i+1) {
			t.Errorf("frame %d: version %d, want %d", i, msg.Version, i+1)
		}
	}
	if socket.Version() != 2 {
		t.Errorf("expected version 2, got %d", socket.Version())
	}
}

type failingTransport struct{ MockTransport }

func (f *failingTransport) Send(*protocol.Message) error { return errors.New("buffer full") }

func TestSocket_Send_WrapsTransportError(t *testing.T) {
	socket := NewSocket("test-id", &failingTransport{MockTransport{connected: true}})
	if err := socket.Push("x", nil); !errors.Is(err, ErrSendFailed) {
		t.Errorf("expected ErrSendFailed, got %v", err)
	}
}

func TestSocket_Deliver(t *testing.T) {
	socket := NewSocket("test-id", NewMockTransport())

	for i := 0; i < defaultInfoBuffer; i++ {
		if err := socket.Deliver(i); err != nil {
			t.Fatalf("deliver %d: %v", i, err)
		}
	}
	if err := socket.Deliver("overflow"); err != ErrInfoFull {
		t.Errorf("expected ErrInfoFull, got %v", err)
	}
	if got := <-socket.Info(); got != 0 {
		t.Errorf("expected first delivered message, got %v", got)
	}
}

func TestSocket_LastActivity_Concurrent(t *testing.T) {
	socket := NewSocket("test-id", NewMockTransport())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				socket.UpdateActivity()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = socket.LastActivity()
			}
		}()
	}
	wg.Wait()
}

func TestSocketManager_Add_Remove(t *testing.T) {
	sm := NewSocketManager()

	sm.Add(NewSocket("socket-1", NewMockTransport()))
	sm.Add(NewSocket("socket-2", NewMockTransport()))

	if sm.Count() != 2 {
		t.Errorf("expected count 2, got %d", sm.Count())
	}

	s, ok := sm.Get("socket-1")
	if !ok || s.ID() != "socket-1" {
		t.Error("expected to find socket-1")
	}

	sm.Remove("socket-1")
	if sm.Count() != 1 {
		t.Errorf("expected count 1, got %d", sm.Count())
	}
	if _, ok := sm.Get("socket-1"); ok {
		t.Error("expected socket-1 to be removed")
	}
}

func TestSocketManager_Broadcast(t *testing.T) {
	sm := NewSocketManager()

	sockets := make([]*Socket, 5)
	for i := range sockets {
		sockets[i] = NewSocket(fmt.Sprintf("socket-%d", i), NewMockTransport())
		sm.Add(sockets[i])
	}
	sockets[4].Close()

	if n := sm.Broadcast("content.reload"); n != 4 {
		t.Errorf("expected 4 deliveries, got %d", n)
	}
	for i, s := range sockets[:4] {
		select {
		case msg := <-s.Info():
			if msg != "content.reload" {
				t.Errorf("socket %d: got %v", i, msg)
			}
		default:
			t.Errorf("socket %d: nothing delivered", i)
		}
	}
}

func TestSocketManager_Shutdown(t *testing.T) {
	sm := NewSocketManager()
	transport := NewMockTransport()
	sm.Add(NewSocket("socket-1", transport))

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if transport.IsConnected() {
		t.Error("expected transport to be closed")
	}
	if !sm.IsShutdown() {
		t.Error("expected IsShutdown")
	}
	if err := sm.Add(NewSocket("late", NewMockTransport())); err != ErrSocketClosed {
		t.Errorf("expected ErrSocketClosed for late socket, got %v", err)
	}
	if err := sm.Shutdown(context.Background()); err != nil {
		t.Errorf("second shutdown: %v", err)
	}
}

func TestSocketManager_CleanupInactive(t *testing.T) {
	sm := NewSocketManager()

	for i := 0; i < 3; i++ {
		sm.Add(NewSocket(fmt.Sprintf("old-%d", i), NewMockTransport()))
	}
	time.Sleep(60 * time.Millisecond)
	for i := 0; i < 2; i++ {
		sm.Add(NewSocket(fmt.Sprintf("fresh-%d", i), NewMockTransport()))
	}

	if removed := sm.CleanupInactive(30 * time.Millisecond); removed != 3 {
		t.Errorf("expected to remove 3 sockets, removed %d", removed)
	}
	if sm.Count() != 2 {
		t.Errorf("expected 2 sockets remaining, got %d", sm.Count())
	}
}

func TestTerminateReason_String(t *testing.T) {
	tests := map[TerminateReason]string{
		TerminateNormal:     "normal",
		TerminateShutdown:   "shutdown",
		TerminateError:      "error",
		TerminateTimeout:    "timeout",
		TerminateReason(42): "unknown",
	}
	for reason, want := range tests {
		if got := reason.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", reason, got, want)
		}
	}
}

func TestBuildContext(t *testing.T) {
	socket := NewSocket("s", NewMockTransport())
	ctx := BuildContext(context.Background(), socket, Session{SessionVisitor: "v1"}, Params{"codec": "json"})

	if SocketFromContext(ctx) != socket {
		t.Error("socket not in context")
	}
	if SessionFromContext(ctx).GetString(SessionVisitor) != "v1" {
		t.Error("session not in context")
	}
	if ParamsFromContext(ctx).GetDefault("codec", "msgpack") != "json" {
		t.Error("params not in context")
	}
	if ParamsFromContext(ctx).GetDefault("missing", "x") != "x" {
		t.Error("default not applied")
	}
}

type discardTransport struct{}

func (discardTransport) Send(*protocol.Message) error { return nil }
func (discardTransport) Close() error                 { return nil }
func (discardTransport) IsConnected() bool            { return true }

func BenchmarkSocket_Send(b *testing.B) {
	socket := NewSocket("bench-id", discardTransport{})
	msg := &protocol.Message{Event: "test", Payload: map[string]any{"key": "value"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		socket.Send(msg)
	}
}
