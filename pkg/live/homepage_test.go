package live

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gabrielmiguelok/scholarpage/pkg/content"
	"github.com/gabrielmiguelok/scholarpage/pkg/core"
	"github.com/gabrielmiguelok/scholarpage/pkg/language"
	"github.com/gabrielmiguelok/scholarpage/pkg/page"
	"github.com/gabrielmiguelok/scholarpage/pkg/protocol"
	"github.com/gabrielmiguelok/scholarpage/pkg/pubsub"
	"github.com/gabrielmiguelok/scholarpage/pkg/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type nullTransport struct{}

func (nullTransport) Send(*protocol.Message) error { return nil }
func (nullTransport) Close() error                 { return nil }
func (nullTransport) IsConnected() bool            { return true }

func newDeps(t *testing.T) *Deps {
	t.Helper()
	store := content.NewStore()
	store.SetAll("en", map[content.Type]content.Payload{
		content.TypeInfo:     content.Info{Name: "Ada Lovelace"},
		content.TypeIntro:    content.Intro{Text: "Hello."},
		content.TypeReviewer: content.ReviewerList{{Conference: "A", Year: "2020"}},
	})
	store.SetAll("zh", map[content.Type]content.Payload{
		content.TypeInfo:  content.Info{Name: "阿达"},
		content.TypeIntro: content.Intro{Text: "你好。"},
	})

	kv := state.NewMemoryStore(state.WithCleanupInterval(0))
	ps := pubsub.NewMemoryPubSub()
	t.Cleanup(func() {
		_ = ps.Close()
		_ = kv.Close()
	})
	return &Deps{
		Store:  store,
		Site:   language.Config{Available: []string{"en", "zh"}, Default: "en"},
		Prefs:  kv,
		PubSub: ps,
		Title:  "Ada Lovelace",
		Now:    func() time.Time { return time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC) },
	}
}

func render(t *testing.T, h *Homepage) *goquery.Document {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, h.Render(context.Background()).Render(context.Background(), &sb))
	q, err := goquery.NewDocumentFromReader(strings.NewReader(sb.String()))
	require.NoError(t, err)
	return q
}

func TestHomepage_NotMounted(t *testing.T) {
	h := New(newDeps(t))
	ctx := context.Background()

	assert.Equal(t, ComponentName, h.Name())
	assert.ErrorIs(t, h.HandleEvent(ctx, page.EventToggleTheme, nil), ErrNotMounted)
	assert.ErrorIs(t, h.HandleInfo(ctx, ContentReload{}), ErrNotMounted)
	assert.ErrorIs(t, h.Render(ctx).Render(ctx, &strings.Builder{}), ErrNotMounted)
	_, err := h.Patches()
	assert.ErrorIs(t, err, ErrNotMounted)
	assert.NoError(t, h.Terminate(ctx, core.TerminateNormal))
}

func TestHomepage_MountAndEvents(t *testing.T) {
	deps := newDeps(t)
	ctx := context.Background()
	session := core.Session{core.SessionVisitor: "v1"}

	h := New(deps)
	require.NoError(t, h.Mount(ctx, nil, session))
	q := render(t, h)
	assert.Equal(t, "en", q.Find("html").AttrOr("lang", ""))
	assert.Equal(t, "Ada Lovelace", q.Find("#nav-logo-name").Text())

	require.NoError(t, h.HandleEvent(ctx, page.EventToggleLanguage, nil))
	assert.Equal(t, "zh", h.Page().Language())

	err := h.HandleEvent(ctx, "explode", nil)
	assert.ErrorIs(t, err, page.ErrUnknownEvent)
	require.NoError(t, h.Terminate(ctx, core.TerminateNormal))

	// Same visitor, new connection: language comes back from preferences.
	again := New(deps)
	require.NoError(t, again.Mount(ctx, nil, session))
	assert.Equal(t, "zh", again.Page().Language())

	// Different visitor starts from the site default.
	other := New(deps)
	require.NoError(t, other.Mount(ctx, nil, core.Session{core.SessionVisitor: "v2"}))
	assert.Equal(t, "en", other.Page().Language())
}

func TestHomepage_NegotiatesLanguage(t *testing.T) {
	deps := newDeps(t)
	session := core.Session{
		core.SessionVisitor:        "v1",
		core.SessionAcceptLanguage: "zh-CN,zh;q=0.9,en;q=0.5",
	}

	plain := New(deps)
	require.NoError(t, plain.Mount(context.Background(), nil, session))
	assert.Equal(t, "en", plain.Page().Language())

	deps.NegotiateLanguage = true
	h := New(deps)
	require.NoError(t, h.Mount(context.Background(), nil, core.Session{
		core.SessionVisitor:        "v3",
		core.SessionAcceptLanguage: "zh-CN,zh;q=0.9,en;q=0.5",
	}))
	assert.Equal(t, "zh", h.Page().Language())
}

func TestHomepage_ContentReload(t *testing.T) {
	deps := newDeps(t)
	ctx := context.Background()

	socket := core.NewSocket("s1", nullTransport{})
	h := New(deps)
	h.SetSocket(socket)
	require.NoError(t, h.Mount(ctx, nil, core.Session{core.SessionVisitor: "v1"}))

	store := deps.Store.(*content.Store)
	store.Set("en", content.TypeInfo, content.Info{Name: "Augusta Ada King"})
	require.NoError(t, pubsub.NewBroadcaster(deps.PubSub).ContentReloaded([]string{"en"}))

	var msg any
	select {
	case msg = <-socket.Info():
	case <-time.After(time.Second):
		t.Fatal("reload not delivered")
	}
	assert.Equal(t, ContentReload{Languages: []string{"en"}}, msg)

	require.NoError(t, h.HandleInfo(ctx, msg))
	patches, err := h.Patches()
	require.NoError(t, err)
	assert.Contains(t, patches["site-header"], "Augusta Ada King")

	assert.NoError(t, h.HandleInfo(ctx, "unrelated"))

	require.NoError(t, h.Terminate(ctx, core.TerminateNormal))
	assert.Zero(t, deps.PubSub.(*pubsub.MemoryPubSub).SubscriberCount(pubsub.TopicContentReload))
}
