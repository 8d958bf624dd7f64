// Package page wires one visitor's document: content, catalog, sections,
// chrome, language coordinator and section visibility.
package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gabrielmiguelok/scholarpage/pkg/chrome"
	"github.com/gabrielmiguelok/scholarpage/pkg/content"
	"github.com/gabrielmiguelok/scholarpage/pkg/dom"
	"github.com/gabrielmiguelok/scholarpage/pkg/i18n"
	"github.com/gabrielmiguelok/scholarpage/pkg/language"
	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
	"github.com/gabrielmiguelok/scholarpage/pkg/pubsub"
	"github.com/gabrielmiguelok/scholarpage/pkg/sections"
	"github.com/gabrielmiguelok/scholarpage/pkg/state"
	"github.com/gabrielmiguelok/scholarpage/pkg/tabs"
)

// Events understood by HandleEvent.
const (
	EventSwitchLanguage = "switch_language"
	EventToggleLanguage = "toggle_language"
	EventSelectTab      = "select_tab"
	EventShowSection    = "show_section"
	EventToggleTheme    = "toggle_theme"
)

// MainContainerID is the element holding the sections.
const MainContainerID = "main-container"

// ClientScript is where the browser loads the event client from.
const ClientScript = "/_live/scholarpage.js"

const fontAwesomeCSS = "https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css"

var (
	// ErrUnknownEvent is returned by HandleEvent for unrecognised events.
	ErrUnknownEvent = errors.New("page: unknown event")
	// ErrNotBootstrapped is returned before Bootstrap succeeded.
	ErrNotBootstrapped = errors.New("page: not bootstrapped")
	// ErrBadPayload is returned when an event lacks a required value.
	ErrBadPayload = errors.New("page: bad event payload")
)

// Preferences persists visitor settings.
type Preferences interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Option configures a Page.
type Option func(*Page)

// WithCatalog sets the text catalog. Defaults to i18n.Default().
func WithCatalog(c *i18n.Catalog) Option {
	return func(p *Page) { p.catalog = c }
}

// WithPreferences sets where language and theme are persisted.
func WithPreferences(prefs Preferences) Option {
	return func(p *Page) { p.prefs = prefs }
}

// WithPubSub sets the bus language and tab changes are announced on.
func WithPubSub(ps pubsub.PubSub) Option {
	return func(p *Page) { p.bus = pubsub.NewBroadcaster(ps) }
}

// WithLoader sets the loader used to fetch the nav display name when the
// store has no info block for a language.
func WithLoader(ld *content.Loader) Option {
	return func(p *Page) { p.loader = ld }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Page) { p.logger = logging.OrNop(l) }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(p *Page) { p.now = now }
}

// WithTitle sets the document title.
func WithTitle(title string) Option {
	return func(p *Page) { p.title = title }
}

// WithReadyTimeout bounds how long showing a section waits for the skeleton.
func WithReadyTimeout(d time.Duration) Option {
	return func(p *Page) { p.readyTimeout = d }
}

// Page is one visitor's rendered homepage.
type Page struct {
	doc          *dom.Document
	store        content.Reader
	catalog      *i18n.Catalog
	prefs        Preferences
	bus          *pubsub.Broadcaster
	loader       *content.Loader
	logger       logging.Logger
	now          func() time.Time
	title        string
	readyTimeout time.Duration

	states       *tabs.ActiveStates
	home         *sections.Home
	experiences  *sections.Experiences
	publications *sections.Publications
	tabbed       map[string]tabbedSection
	visibility   *sections.Visibility

	ready     chan struct{}
	readyOnce sync.Once

	mu     sync.Mutex
	chrome *chrome.Chrome
	coord  *language.Coordinator
}

type tabbedSection interface {
	SelectTab(id string) bool
	UpdateTabLabels(lang string)
	Controller() *tabs.Controller
}

// New creates a page reading from store. Nothing is rendered until
// Bootstrap.
func New(store content.Reader, opts ...Option) *Page {
	p := &Page{
		store:  store,
		logger: logging.NopLogger{},
		now:    time.Now,
		title:  "Homepage",
		states: tabs.NewActiveStates(),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.catalog == nil {
		p.catalog = i18n.Default()
	}

	p.doc = dom.NewDocument("", p.title)
	env := &sections.Env{
		Doc:     p.doc,
		Store:   store,
		Catalog: p.catalog,
		Logger:  p.logger,
		Now:     p.now,
	}
	onChange := tabs.WithOnChange(p.tabChanged)
	p.home = sections.NewHome(env)
	p.experiences = sections.NewExperiences(env, p.states, onChange)
	p.publications = sections.NewPublications(env, p.states, onChange)
	p.tabbed = map[string]tabbedSection{
		sections.ExperiencesName:  p.experiences,
		sections.PublicationsName: p.publications,
	}

	var vopts []sections.VisibilityOption
	vopts = append(vopts, sections.WithVisibilityLogger(p.logger))
	if p.readyTimeout > 0 {
		vopts = append(vopts, sections.WithReadyTimeout(p.readyTimeout))
	}
	p.visibility = sections.NewVisibility(p.doc, p.ready, p.Language, p.renderers(), vopts...)
	return p
}

func (p *Page) renderers() []sections.Renderer {
	return []sections.Renderer{p.home, p.experiences, p.publications}
}

// Bootstrap builds the skeleton, applies the persisted theme, renders the
// initial language and shows the home section.
func (p *Page) Bootstrap(ctx context.Context, cfg language.Config) error {
	if p.store == nil {
		return fmt.Errorf("page: bootstrap: %w", language.ErrNilStore)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("page: bootstrap: %w", err)
	}

	ch := chrome.New(p.doc, p.catalog, cfg.Multi(), chrome.WithLogger(p.logger), chrome.WithNow(p.now))
	theme := p.preference(ctx, state.KeyTheme)

	err := p.doc.Update(func() error {
		p.buildSkeleton()
		ch.Mount()
		ch.ApplyTheme(theme)
		return nil
	})
	if err != nil {
		return fmt.Errorf("page: bootstrap: %w", err)
	}
	p.readyOnce.Do(func() { close(p.ready) })

	opts := []language.Option{
		language.WithSections(p.home, p.experiences, p.publications),
		language.WithTabLabels(p.experiences, p.publications),
		language.WithChrome(ch),
		language.WithNameFetcher(p.fetchName),
		language.WithLogger(p.logger),
	}
	if p.prefs != nil {
		opts = append(opts, language.WithPreferences(p.prefs))
	}
	if p.bus != nil {
		opts = append(opts, language.WithNotifier(p.bus))
	}
	coord := language.New(p.doc, opts...)

	p.mu.Lock()
	p.chrome = ch
	p.coord = coord
	p.mu.Unlock()

	if err := coord.Init(ctx, cfg, p.store); err != nil {
		return fmt.Errorf("page: bootstrap: %w", err)
	}
	return p.visibility.Show(ctx, sections.HomeID)
}

// buildSkeleton creates the main container with one hidden element per
// section. The caller holds the document lock.
func (p *Page) buildSkeleton() {
	if p.doc.ByID(MainContainerID) != nil {
		return
	}
	dom.Append(p.doc.Head(),
		dom.El("link", dom.A("rel", "stylesheet"), dom.A("href", fontAwesomeCSS)),
		dom.El("link", dom.A("rel", "stylesheet"), dom.A("href", "css/style.css")),
		dom.El("script", dom.A("src", ClientScript), dom.A("defer", "")),
	)
	main := dom.El("main", dom.ID(MainContainerID))
	for _, id := range sections.Order {
		s := dom.El("section", dom.ID(id), dom.Class("content-section"))
		dom.SetHidden(s, true)
		dom.Append(main, s)
	}
	dom.Append(p.doc.Body(), main)
}

func (p *Page) parts() (*chrome.Chrome, *language.Coordinator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.coord == nil {
		return nil, nil, ErrNotBootstrapped
	}
	return p.chrome, p.coord, nil
}

// HandleEvent applies one client event.
func (p *Page) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	ch, coord, err := p.parts()
	if err != nil {
		return err
	}

	switch event {
	case EventSwitchLanguage:
		lang := str(payload, "lang")
		if lang == "" {
			return fmt.Errorf("%w: %s needs lang", ErrBadPayload, event)
		}
		return coord.SwitchLanguage(ctx, lang)

	case EventToggleLanguage:
		return coord.Toggle(ctx)

	case EventSelectTab:
		section, tab := str(payload, "section"), str(payload, "tab")
		ts, ok := p.tabbed[section]
		if !ok || tab == "" {
			return fmt.Errorf("%w: %s %q/%q", ErrBadPayload, event, section, tab)
		}
		return p.doc.Update(func() error {
			if !ts.SelectTab(tab) {
				p.logger.Debug("tab not selectable", logging.Section(section), logging.Tab(tab))
			}
			return nil
		})

	case EventShowSection:
		id := str(payload, "section")
		if id == "" {
			return fmt.Errorf("%w: %s needs section", ErrBadPayload, event)
		}
		return p.visibility.Show(ctx, id)

	case EventToggleTheme:
		var next string
		_ = p.doc.Update(func() error {
			next = state.ThemeLight
			if ch.Theme() == state.ThemeLight {
				next = state.ThemeDark
			}
			ch.ApplyTheme(next)
			return nil
		})
		if p.prefs != nil {
			if err := p.prefs.Set(ctx, state.KeyTheme, next); err != nil {
				p.logger.Warn("theme not persisted", logging.String("theme", next), logging.Err(err))
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}

// Refresh re-renders everything for the current language, e.g. after the
// content store was reloaded.
func (p *Page) Refresh(ctx context.Context) error {
	_, coord, err := p.parts()
	if err != nil {
		return err
	}
	return coord.Refresh(ctx)
}

// Language returns the current language, "" before Bootstrap.
func (p *Page) Language() string {
	_, coord, err := p.parts()
	if err != nil {
		return ""
	}
	return coord.Current()
}

// Theme returns the applied theme.
func (p *Page) Theme() string {
	ch, _, err := p.parts()
	if err != nil {
		return state.DefaultTheme
	}
	var theme string
	p.doc.View(func() { theme = ch.Theme() })
	return theme
}

// ShownSection returns the id of the visible section.
func (p *Page) ShownSection() string {
	return p.visibility.Shown()
}

// ActiveTabs returns the active tab per tabbed section.
func (p *Page) ActiveTabs() map[string]string {
	return p.states.Snapshot()
}

// Document exposes the underlying document.
func (p *Page) Document() *dom.Document {
	return p.doc
}

// PatchRoots lists the element ids that can change after Bootstrap.
func PatchRoots() []string {
	roots := chrome.PatchRoots()
	return append(roots, sections.Order...)
}

// Attribute patches carry a single attribute value instead of outer HTML.
// Keys start with "@" so they cannot collide with element ids.
const (
	BodyClassPatch = "@body.class"
	HTMLLangPatch  = "@html.lang"
)

// Patches returns the outer HTML of every patch root, keyed by id, plus the
// body class and document language.
func (p *Page) Patches() (map[string]string, error) {
	out := make(map[string]string)
	var err error
	p.doc.View(func() {
		body := p.doc.Body()
		out[BodyClassPatch], _ = dom.Attr(body, "class")
		out[HTMLLangPatch], _ = dom.Attr(body.Parent, "lang")
		for _, id := range PatchRoots() {
			var s string
			s, err = p.doc.OuterHTML(id)
			if err != nil {
				err = fmt.Errorf("page: patch %s: %w", id, err)
				return
			}
			out[id] = s
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Render writes the whole document.
func (p *Page) Render(w io.Writer) error {
	return p.doc.Render(w)
}

func (p *Page) tabChanged(section, tab string) {
	p.logger.Debug("tab changed", logging.Section(section), logging.Tab(tab))
	if p.bus == nil {
		return
	}
	if err := p.bus.TabChanged(section, tab); err != nil {
		p.logger.Warn("tab change not published", logging.Err(err))
	}
}

// fetchName prefers the stored info block and falls back to fetching it.
func (p *Page) fetchName(ctx context.Context, lang string) (string, error) {
	if info, ok := content.Lookup[content.Info](p.store, lang, content.TypeInfo); ok && info.Name != "" {
		return info.Name, nil
	}
	if p.loader == nil {
		return "", fmt.Errorf("page: no info for %s: %w", lang, content.ErrUnavailable)
	}
	info, err := p.loader.FetchInfo(ctx, lang)
	if err != nil {
		return "", err
	}
	return info.Name, nil
}

func (p *Page) preference(ctx context.Context, key string) string {
	if p.prefs == nil {
		return ""
	}
	v, ok, err := p.prefs.Get(ctx, key)
	if err != nil {
		p.logger.Warn("reading preference", logging.String("key", key), logging.Err(err))
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func str(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
