package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gabrielmiguelok/scholarpage/pkg/core"
	"github.com/gabrielmiguelok/scholarpage/pkg/metrics"
	"github.com/gabrielmiguelok/scholarpage/pkg/protocol"
	"github.com/gabrielmiguelok/scholarpage/pkg/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// counter is a component with two patch roots; only "count" ever changes.
type counter struct {
	core.BaseComponent
	mu         sync.Mutex
	n          int
	visitor    string
	terminated chan core.TerminateReason
}

func (c *counter) Name() string { return "counter" }

func (c *counter) Mount(ctx context.Context, params core.Params, session core.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visitor = session.GetString(core.SessionVisitor)
	if params.Get("fail") != "" {
		return errors.New("mount refused")
	}
	return nil
}

func (c *counter) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, err := fmt.Fprintf(w, `<html><body data-visitor="%s"><p id="count">%d</p></body></html>`, c.visitor, c.n)
		return err
	})
}

func (c *counter) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case "inc":
		c.mu.Lock()
		c.n++
		c.mu.Unlock()
		return nil
	case "boom":
		panic("component exploded")
	default:
		return fmt.Errorf("unknown event %q", event)
	}
}

func (c *counter) HandleInfo(ctx context.Context, msg any) error {
	if msg == "bump" {
		c.mu.Lock()
		c.n += 10
		c.mu.Unlock()
	}
	return nil
}

func (c *counter) Patches() (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]string{
		"count":  fmt.Sprintf(`<p id="count">%d</p>`, c.n),
		"static": `<p id="static">x</p>`,
	}, nil
}

func (c *counter) Terminate(ctx context.Context, reason core.TerminateReason) error {
	if c.terminated != nil {
		c.terminated <- reason
	}
	return nil
}

func newCounterRouter(t *testing.T, terminated chan core.TerminateReason, opts ...Option) (*Router, *httptest.Server) {
	t.Helper()
	r := New(func() core.Component { return &counter{terminated: terminated} }, opts...)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, r.Shutdown(ctx))
		srv.Close()
	})
	return r, srv
}

func dial(t *testing.T, srv *httptest.Server, query string, codec protocol.Codec) *transport.WebSocketTransport {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + PathLive + query
	client, err := transport.Dial(ctx, url, nil, nil, transport.WithCodec(codec))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func next(t *testing.T, client *transport.WebSocketTransport) *protocol.Message {
	t.Helper()
	select {
	case msg := <-client.Receive():
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func TestDocument_IssuesVisitorCookie(t *testing.T) {
	_, srv := newCounterRouter(t, nil)

	resp, err := http.Get(srv.URL + PathDocument)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))

	var visitor *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == DefaultVisitorCookie {
			visitor = c
		}
	}
	require.NotNil(t, visitor)
	assert.True(t, visitor.HttpOnly)
	assert.Contains(t, string(body), `data-visitor="`+visitor.Value+`"`)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+PathDocument, nil)
	req.AddCookie(visitor)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Empty(t, resp.Cookies(), "known visitor gets no new cookie")
	assert.Contains(t, string(body), `data-visitor="`+visitor.Value+`"`)
}

func TestDocument_MountFailure(t *testing.T) {
	_, srv := newCounterRouter(t, nil)
	resp, err := http.Get(srv.URL + "/?fail=1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestStaticRoutes(t *testing.T) {
	health := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	images := fstest.MapFS{"avatar.png": {Data: []byte("png")}}
	_, srv := newCounterRouter(t, nil,
		WithClientScript([]byte("console.log(1)")),
		WithHealth(health),
		WithImages(images),
	)

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{PathScript, http.StatusOK, "console.log(1)"},
		{PathHealth, http.StatusServiceUnavailable, ""},
		{PathImages + "/avatar.png", http.StatusOK, "png"},
		{PathImages + "/missing.png", http.StatusNotFound, ""},
		{PathLive + "?codec=xml", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.body != "" {
				assert.Equal(t, tt.body, string(body))
			}
		})
	}
}

func TestScript_NotConfigured(t *testing.T) {
	_, srv := newCounterRouter(t, nil)
	resp, err := http.Get(srv.URL + PathScript)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLive_SendsOnlyChangedRoots(t *testing.T) {
	for _, codec := range []protocol.Codec{protocol.NewJSONCodec(), protocol.NewMsgPackCodec()} {
		t.Run(codec.Name(), func(t *testing.T) {
			terminated := make(chan core.TerminateReason, 1)
			r, srv := newCounterRouter(t, terminated)
			client := dial(t, srv, "?codec="+codec.Name(), codec)

			require.NoError(t, client.Send(&protocol.Message{Ref: "1", Event: protocol.EventJoin}))
			patch := next(t, client)
			assert.Equal(t, protocol.EventPatch, patch.Event)
			assert.Equal(t, uint64(1), patch.Version)
			assert.Equal(t, map[string]string{
				"count":  `<p id="count">0</p>`,
				"static": `<p id="static">x</p>`,
			}, patch.Roots())
			reply := next(t, client)
			assert.Equal(t, protocol.EventReply, reply.Event)
			assert.Equal(t, "1", reply.Ref)
			assert.Equal(t, 1, r.Sessions().Count())

			require.NoError(t, client.Send(&protocol.Message{Ref: "2", Event: "inc"}))
			patch = next(t, client)
			assert.Equal(t, map[string]string{"count": `<p id="count">1</p>`}, patch.Roots())
			assert.Equal(t, uint64(2), patch.Version)
			assert.Equal(t, "2", next(t, client).Ref)

			require.NoError(t, client.Send(&protocol.Message{Ref: "3", Event: protocol.EventHeartbeat}))
			reply = next(t, client)
			assert.Equal(t, "3", reply.Ref)
			assert.Equal(t, protocol.EventReply, reply.Event)

			assert.Equal(t, 1, r.Broadcast("bump"))
			patch = next(t, client)
			assert.Equal(t, map[string]string{"count": `<p id="count">11</p>`}, patch.Roots())

			require.NoError(t, client.Close())
			select {
			case reason := <-terminated:
				assert.Equal(t, core.TerminateNormal, reason)
			case <-time.After(5 * time.Second):
				t.Fatal("component not terminated")
			}
			assert.Eventually(t, func() bool { return r.Sessions().Count() == 0 }, time.Second, 10*time.Millisecond)
		})
	}
}

func TestLive_EventErrors(t *testing.T) {
	r, srv := newCounterRouter(t, nil)
	client := dial(t, srv, "", protocol.NewJSONCodec())

	require.NoError(t, client.Send(&protocol.Message{Ref: "0", Event: "inc"}))
	reply := next(t, client)
	assert.Equal(t, protocol.EventError, reply.Event)
	assert.Equal(t, ErrNotJoined.Error(), reply.Payload["reason"])

	require.NoError(t, client.Send(&protocol.Message{Ref: "1", Event: protocol.EventJoin}))
	next(t, client) // full patch
	next(t, client) // join reply

	require.NoError(t, client.Send(&protocol.Message{Ref: "2", Event: "boom"}))
	reply = next(t, client)
	assert.Equal(t, protocol.EventError, reply.Event)
	assert.Equal(t, "2", reply.Ref)
	assert.Contains(t, reply.Payload["reason"], "component exploded")

	require.NoError(t, client.Send(&protocol.Message{Ref: "3", Event: "nope"}))
	assert.Equal(t, protocol.EventError, next(t, client).Event)

	// The session survived the panic.
	require.NoError(t, client.Send(&protocol.Message{Ref: "4", Event: "inc"}))
	assert.Equal(t, protocol.EventPatch, next(t, client).Event)
	assert.Equal(t, protocol.EventReply, next(t, client).Event)

	m := r.Metrics()
	assert.Equal(t, 1.0, m.PanicsTotal.Value())
	assert.Equal(t, map[string]float64{"boom": 1, "nope": 1}, m.EventErrors.Values())
	assert.Equal(t, 2.0, m.FramesReceived.Values()["inc"])
	assert.Equal(t, 1.0, m.SessionsActive.Value())
}

func TestMetrics_Route(t *testing.T) {
	_, plain := newCounterRouter(t, nil)
	resp, err := http.Get(plain.URL + PathMetrics)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "not mounted by default")

	m := metrics.NewMetrics("test")
	_, srv := newCounterRouter(t, nil, WithMetrics(m))
	resp, err = http.Get(srv.URL + PathDocument)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + PathMetrics)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "test_documents_rendered_total 1")
	assert.EqualValues(t, 1, m.RenderDuration.Stats().Count)
}

func TestLive_MountFailureClosesSession(t *testing.T) {
	r, srv := newCounterRouter(t, nil)
	client := dial(t, srv, "?fail=1", protocol.NewJSONCodec())

	require.NoError(t, client.Send(&protocol.Message{Ref: "1", Event: protocol.EventJoin}))
	reply := next(t, client)
	assert.Equal(t, protocol.EventError, reply.Event)

	select {
	case <-client.CloseChan():
	case <-time.After(5 * time.Second):
		t.Fatal("connection not closed")
	}
	assert.Eventually(t, func() bool { return r.Sessions().Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestLive_Capacity(t *testing.T) {
	r, srv := newCounterRouter(t, nil, WithMaxSessions(1))
	dial(t, srv, "", protocol.NewJSONCodec())
	assert.Eventually(t, func() bool { return r.Sessions().Full() }, time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + PathLive)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestShutdown_TerminatesSessions(t *testing.T) {
	terminated := make(chan core.TerminateReason, 1)
	r := New(func() core.Component { return &counter{terminated: terminated} })
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := dial(t, srv, "", protocol.NewJSONCodec())
	require.NoError(t, client.Send(&protocol.Message{Ref: "1", Event: protocol.EventJoin}))
	next(t, client)
	next(t, client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	reason := <-terminated
	assert.Contains(t, []core.TerminateReason{core.TerminateShutdown, core.TerminateNormal}, reason)
	assert.Zero(t, r.Sessions().Count())
}

func TestChangedRoots(t *testing.T) {
	s := &LiveSession{}
	roots := map[string]string{"a": "1", "b": "2"}

	assert.Equal(t, roots, s.changedRoots(roots))
	assert.Empty(t, s.changedRoots(roots))
	assert.Equal(t, map[string]string{"b": "3"}, s.changedRoots(map[string]string{"a": "1", "b": "3"}))

	s.resetRoots()
	assert.Len(t, s.changedRoots(roots), 2)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, PathLive, nil)
		req.RemoteAddr = "203.0.113.7:5555"
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, PathLive, nil)
	req.RemoteAddr = "198.51.100.1:5555"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecureHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	h := SecureHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	h.ServeHTTP(rec, req)
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}
