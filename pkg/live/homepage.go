// Package live adapts the homepage to a live socket: it mounts one page per
// connection, applies client events and picks up content reloads.
package live

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gabrielmiguelok/scholarpage/pkg/content"
	"github.com/gabrielmiguelok/scholarpage/pkg/core"
	"github.com/gabrielmiguelok/scholarpage/pkg/i18n"
	"github.com/gabrielmiguelok/scholarpage/pkg/language"
	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
	"github.com/gabrielmiguelok/scholarpage/pkg/page"
	"github.com/gabrielmiguelok/scholarpage/pkg/pubsub"
	"github.com/gabrielmiguelok/scholarpage/pkg/state"
)

// ComponentName identifies the homepage in logs.
const ComponentName = "homepage"

// ErrNotMounted is returned by callbacks that need a mounted page.
var ErrNotMounted = errors.New("live: homepage not mounted")

// ContentReload is delivered to mounted sockets after the store was
// reloaded.
type ContentReload struct {
	Languages []string
}

// Deps are shared by every homepage.
type Deps struct {
	Store   content.Reader
	Site    language.Config
	Catalog *i18n.Catalog
	Loader  *content.Loader
	Logger  logging.Logger
	Title   string
	Now     func() time.Time

	// Prefs persists language and theme per visitor. Nil disables
	// persistence.
	Prefs   state.Store
	PrefTTL time.Duration

	// PubSub carries language, tab and reload announcements.
	PubSub pubsub.PubSub

	// NegotiateLanguage picks a first-visit language from Accept-Language
	// instead of the site default.
	NegotiateLanguage bool
}

// Homepage implements core.Component.
type Homepage struct {
	core.BaseComponent

	deps   *Deps
	logger logging.Logger
	page   *page.Page
	sub    pubsub.Subscription
}

// New creates an unmounted homepage.
func New(deps *Deps) *Homepage {
	return &Homepage{deps: deps, logger: logging.OrNop(deps.Logger)}
}

// Factory returns a constructor suitable for the router.
func Factory(deps *Deps) func() core.Component {
	return func() core.Component { return New(deps) }
}

func (h *Homepage) Name() string { return ComponentName }

// Mount builds and bootstraps the visitor's page.
func (h *Homepage) Mount(ctx context.Context, params core.Params, session core.Session) error {
	visitor := session.GetString(core.SessionVisitor)
	logger := h.logger.With(logging.String("visitor", visitor))
	if socket := core.SocketFromContext(ctx); socket != nil {
		logger = logger.With(logging.String("socket", socket.ID()))
	}

	opts := []page.Option{
		page.WithLogger(logger),
		page.WithCatalog(h.deps.Catalog),
	}
	if h.deps.Title != "" {
		opts = append(opts, page.WithTitle(h.deps.Title))
	}
	if h.deps.Now != nil {
		opts = append(opts, page.WithNow(h.deps.Now))
	}
	if h.deps.Loader != nil {
		opts = append(opts, page.WithLoader(h.deps.Loader))
	}
	if h.deps.PubSub != nil {
		opts = append(opts, page.WithPubSub(h.deps.PubSub))
	}
	if h.deps.Prefs != nil && visitor != "" {
		var popts []state.PreferencesOption
		if h.deps.PrefTTL > 0 {
			popts = append(popts, state.WithTTL(h.deps.PrefTTL))
		}
		opts = append(opts, page.WithPreferences(state.NewPreferences(h.deps.Prefs, visitor, popts...)))
	}

	cfg := h.deps.Site
	if h.deps.NegotiateLanguage {
		cfg.Default = i18n.Match(session.GetString(core.SessionAcceptLanguage), cfg.Available, cfg.Default)
	}

	p := page.New(h.deps.Store, opts...)
	if err := p.Bootstrap(ctx, cfg); err != nil {
		return err
	}
	h.page = p
	h.logger = logger

	if socket := h.Socket(); socket != nil && h.deps.PubSub != nil {
		sub, err := pubsub.NewBroadcaster(h.deps.PubSub).Subscribe(pubsub.TopicContentReload, func(ev pubsub.Event) {
			if err := socket.Deliver(ContentReload{Languages: languages(ev)}); err != nil {
				logger.Debug("reload not delivered", logging.Err(err))
			}
		})
		if err != nil {
			logger.Warn("content reload subscription failed", logging.Err(err))
		} else {
			h.sub = sub
		}
	}
	return nil
}

// Render writes the full document.
func (h *Homepage) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		if h.page == nil {
			return ErrNotMounted
		}
		return h.page.Render(w)
	})
}

// HandleEvent applies a client event.
func (h *Homepage) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	if h.page == nil {
		return ErrNotMounted
	}
	if params := core.ParamsFromContext(ctx); params != nil {
		h.logger.Debug("event", logging.String("event", event), logging.String("codec", params.Get("codec")))
	}
	return h.page.HandleEvent(ctx, event, payload)
}

// HandleInfo re-renders the page after a content reload.
func (h *Homepage) HandleInfo(ctx context.Context, msg any) error {
	if h.page == nil {
		return ErrNotMounted
	}
	switch m := msg.(type) {
	case ContentReload:
		h.logger.Debug("refreshing after content reload", logging.Any("languages", m.Languages))
		return h.page.Refresh(ctx)
	default:
		h.logger.Debug("ignoring info message", logging.Any("message", msg))
		return nil
	}
}

// Patches returns every patch root of the page.
func (h *Homepage) Patches() (map[string]string, error) {
	if h.page == nil {
		return nil, ErrNotMounted
	}
	return h.page.Patches()
}

// Page returns the mounted page, nil before Mount.
func (h *Homepage) Page() *page.Page {
	return h.page
}

// Terminate drops the reload subscription.
func (h *Homepage) Terminate(ctx context.Context, reason core.TerminateReason) error {
	h.logger.Debug("homepage terminated", logging.String("reason", reason.String()))
	if h.sub != nil {
		err := h.sub.Unsubscribe()
		h.sub = nil
		return err
	}
	return nil
}

func languages(ev pubsub.Event) []string {
	raw, _ := ev.Payload["languages"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
