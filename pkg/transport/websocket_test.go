package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gabrielmiguelok/scholarpage/pkg/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWebSocket_OriginValidation(t *testing.T) {
	tests := []struct {
		name          string
		wsConfig      *WebSocketConfig
		origin        string
		host          string
		expectAllowed bool
	}{
		{
			name:          "same-origin allowed",
			wsConfig:      &WebSocketConfig{},
			origin:        "https://example.com",
			host:          "example.com",
			expectAllowed: true,
		},
		{
			name:          "no origin allowed",
			wsConfig:      &WebSocketConfig{},
			host:          "example.com",
			expectAllowed: true,
		},
		{
			name:          "explicit origin allowed",
			wsConfig:      &WebSocketConfig{AllowedOrigins: []string{"https://allowed.com"}},
			origin:        "https://allowed.com",
			host:          "example.com",
			expectAllowed: true,
		},
		{
			name:          "origin not in list blocked",
			wsConfig:      &WebSocketConfig{AllowedOrigins: []string{"https://allowed.com"}},
			origin:        "https://attacker.com",
			host:          "example.com",
			expectAllowed: false,
		},
		{
			name:          "wildcard allows all",
			wsConfig:      &WebSocketConfig{AllowedOrigins: []string{"*"}},
			origin:        "https://any-site.com",
			host:          "example.com",
			expectAllowed: true,
		},
		{
			name:          "insecure dev mode allows all",
			wsConfig:      &WebSocketConfig{InsecureDevMode: true},
			origin:        "https://attacker.com",
			host:          "example.com",
			expectAllowed: true,
		},
		{
			name:          "cross-origin blocked by default",
			wsConfig:      &WebSocketConfig{},
			origin:        "https://other-site.com",
			host:          "example.com",
			expectAllowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewWebSocketTransport(nil, WithWebSocketConfig(tt.wsConfig))
			assert.Equal(t, tt.expectAllowed, tr.isOriginAllowed(tt.origin, tt.host))
		})
	}
}

func TestWebSocket_RejectsInvalidOrigin(t *testing.T) {
	tr := NewWebSocketTransport(nil, WithWebSocketConfig(&WebSocketConfig{
		AllowedOrigins: []string{"https://allowed.com"},
	}))

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("Origin", "https://attacker.com")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Host = "example.com"
	w := httptest.NewRecorder()

	assert.ErrorIs(t, tr.Upgrade(w, req), ErrOriginNotAllowed)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, tr.IsConnected())
}

func TestSend_NotConnected(t *testing.T) {
	tr := NewWebSocketTransport(nil)
	assert.ErrorIs(t, tr.Send(&protocol.Message{Event: protocol.EventHeartbeat}), ErrNotConnected)
}

// echoServer upgrades every request and sends each received frame back.
func echoServer(t *testing.T, codec protocol.Codec) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr := NewWebSocketTransport(nil, WithCodec(codec))
		if err := tr.Upgrade(w, r); err != nil {
			return
		}
		defer tr.Close()
		for {
			select {
			case msg := <-tr.Receive():
				if err := tr.Send(msg); err != nil {
					return
				}
			case <-tr.CloseChan():
				return
			}
		}
	}))
}

func TestWebSocket_RoundTrip(t *testing.T) {
	for _, codec := range []protocol.Codec{protocol.NewJSONCodec(), protocol.NewMsgPackCodec()} {
		t.Run(codec.Name(), func(t *testing.T) {
			srv := echoServer(t, codec)
			defer srv.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			client, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil, nil, WithCodec(codec))
			require.NoError(t, err)
			assert.True(t, client.IsConnected())

			sent := &protocol.Message{
				Ref:     "1",
				Event:   "select_tab",
				Payload: map[string]any{"section": "experiences", "tab": "reviewer"},
			}
			require.NoError(t, client.Send(sent))

			select {
			case got := <-client.Receive():
				assert.Equal(t, sent.Ref, got.Ref)
				assert.Equal(t, sent.Event, got.Event)
				assert.Equal(t, "reviewer", got.Payload["tab"])
			case <-ctx.Done():
				t.Fatal("no echo")
			}

			require.NoError(t, client.Close())
			<-client.CloseChan()
			assert.False(t, client.IsConnected())
			assert.ErrorIs(t, client.Send(sent), ErrNotConnected)
		})
	}
}
