// Package language owns the current language of a page and re-renders
// everything that depends on it, in a fixed order, whenever it changes.
package language

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gabrielmiguelok/scholarpage/pkg/content"
	"github.com/gabrielmiguelok/scholarpage/pkg/dom"
	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
	"github.com/gabrielmiguelok/scholarpage/pkg/state"
)

// Errors returned by the coordinator.
var (
	ErrNotInitialized      = errors.New("language: coordinator not initialized")
	ErrUnsupportedLanguage = errors.New("language: unsupported language")
	ErrInvalidConfig       = errors.New("language: invalid config")
	ErrNilStore            = errors.New("language: nil content store")
	// ErrSuperseded stops a render pass that a newer pass replaced. It never
	// leaves the package.
	ErrSuperseded = errors.New("language: render pass superseded")
)

// Section re-renders one page section.
type Section interface {
	UpdateContent(lang string) error
}

// TabLabeler relabels a section's compact tab menu.
type TabLabeler interface {
	UpdateTabLabels(lang string)
}

// Chrome is the frame around the sections.
type Chrome interface {
	UpdateNavLabels(lang string)
	UpdateFooter(lang string)
	UpdateLanguageSwitch(lang string)
	SetDisplayName(name string)
}

// Preferences persists the chosen language.
type Preferences interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Notifier is told when a pass completes.
type Notifier interface {
	LanguageChanged(lang string) error
}

// NameFetcher returns the display name for lang. It runs without the
// document lock and may be slow.
type NameFetcher func(ctx context.Context, lang string) (string, error)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSections sets the sections, rendered in the given order.
func WithSections(s ...Section) Option {
	return func(c *Coordinator) { c.sections = s }
}

// WithTabLabels sets the sections whose compact tab labels follow the
// language.
func WithTabLabels(l ...TabLabeler) Option {
	return func(c *Coordinator) { c.labelers = l }
}

// WithChrome sets the page chrome.
func WithChrome(ch Chrome) Option {
	return func(c *Coordinator) { c.chrome = ch }
}

// WithNameFetcher sets the nav display name source.
func WithNameFetcher(f NameFetcher) Option {
	return func(c *Coordinator) { c.fetchName = f }
}

// WithNotifier sets the language.change notifier.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithPreferences sets where the language is persisted.
func WithPreferences(p Preferences) Option {
	return func(c *Coordinator) { c.prefs = p }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.logger = logging.OrNop(l) }
}

// Coordinator tracks the current language and runs render passes.
//
// Passes run one at a time. Each pass takes a generation number; starting a
// pass cancels the running one, which stops before its next step. The last
// requested language therefore always wins.
type Coordinator struct {
	doc       *dom.Document
	sections  []Section
	labelers  []TabLabeler
	chrome    Chrome
	fetchName NameFetcher
	notifier  Notifier
	prefs     Preferences
	logger    logging.Logger

	mu          sync.Mutex
	cfg         Config
	current     string
	initialized bool
	gen         uint64
	cancel      context.CancelFunc

	passMu sync.Mutex
}

// New creates a coordinator for doc.
func New(doc *dom.Document, opts ...Option) *Coordinator {
	c := &Coordinator{
		doc:    doc,
		logger: logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init validates cfg, picks the persisted language when it is still
// available (the default otherwise) and runs the first render pass.
func (c *Coordinator) Init(ctx context.Context, cfg Config, store content.Reader) error {
	if store == nil {
		return ErrNilStore
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Available = slices.Clone(cfg.Available)

	lang := cfg.Default
	if saved := c.persisted(ctx); saved != "" {
		if cfg.Supports(saved) {
			lang = saved
		} else {
			c.logger.Info("ignoring persisted language", logging.Lang(saved))
		}
	}

	c.mu.Lock()
	c.cfg = cfg
	c.initialized = true
	p := c.beginLocked(ctx, lang, false)
	c.mu.Unlock()

	c.logger.Info("language initialized", logging.Lang(lang))
	return c.run(p)
}

// SwitchLanguage makes code current, persists it and re-renders. Switching
// to the current language does nothing.
func (c *Coordinator) SwitchLanguage(ctx context.Context, code string) error {
	c.mu.Lock()
	switch {
	case !c.initialized:
		c.mu.Unlock()
		return ErrNotInitialized
	case !c.cfg.Supports(code):
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	case code == c.current:
		c.mu.Unlock()
		return nil
	}
	p := c.beginLocked(ctx, code, true)
	c.mu.Unlock()

	c.logger.Info("language switched", logging.Lang(code))
	return c.run(p)
}

// Toggle switches to the next available language.
func (c *Coordinator) Toggle(ctx context.Context) error {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	next := c.cfg.Next(c.current)
	c.mu.Unlock()
	return c.SwitchLanguage(ctx, next)
}

// Refresh re-renders the current language, e.g. after content reloads.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	p := c.beginLocked(ctx, c.current, false)
	c.mu.Unlock()
	return c.run(p)
}

// Current returns the current language, "" before Init.
func (c *Coordinator) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Config returns the config passed to Init.
func (c *Coordinator) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg := c.cfg
	cfg.Available = slices.Clone(c.cfg.Available)
	return cfg
}

// Initialized reports whether Init succeeded.
func (c *Coordinator) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

func (c *Coordinator) persisted(ctx context.Context) string {
	if c.prefs == nil {
		return ""
	}
	v, ok, err := c.prefs.Get(ctx, state.KeyLanguage)
	if err != nil {
		c.logger.Warn("reading persisted language", logging.Err(err))
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// passState is one render pass.
type passState struct {
	ctx     context.Context
	cancel  context.CancelFunc
	gen     uint64
	lang    string
	persist bool
}

// beginLocked makes lang current and starts a new generation, cancelling
// the running pass. c.mu must be held.
func (c *Coordinator) beginLocked(ctx context.Context, lang string, persist bool) *passState {
	if c.cancel != nil {
		c.cancel()
	}
	passCtx, cancel := context.WithCancel(ctx)
	c.gen++
	c.cancel = cancel
	c.current = lang
	return &passState{ctx: passCtx, cancel: cancel, gen: c.gen, lang: lang, persist: persist}
}

// run executes p and swallows supersession.
func (c *Coordinator) run(p *passState) error {
	defer p.cancel()
	err := c.pass(p)
	if errors.Is(err, ErrSuperseded) {
		c.logger.Debug("render pass superseded", logging.Lang(p.lang))
		return nil
	}
	return err
}

type step struct {
	name string
	fn   func(lang string) error
}

func (c *Coordinator) steps() []step {
	steps := []step{{"document", func(lang string) error {
		c.doc.SetLang(lang)
		return nil
	}}}
	for i, s := range c.sections {
		steps = append(steps, step{fmt.Sprintf("section[%d]", i), s.UpdateContent})
	}
	if ch := c.chrome; ch != nil {
		steps = append(steps,
			step{"nav", func(lang string) error { ch.UpdateNavLabels(lang); return nil }},
			step{"footer", func(lang string) error { ch.UpdateFooter(lang); return nil }},
			step{"language switch", func(lang string) error { ch.UpdateLanguageSwitch(lang); return nil }},
		)
	}
	if len(c.labelers) > 0 {
		steps = append(steps, step{"tab labels", func(lang string) error {
			for _, l := range c.labelers {
				l.UpdateTabLabels(lang)
			}
			return nil
		}})
	}
	return steps
}

// live returns ErrSuperseded once a newer pass has begun, and the caller's
// context error when it is done.
func (c *Coordinator) live(p *passState) error {
	c.mu.Lock()
	current := c.gen
	c.mu.Unlock()
	if current != p.gen {
		return ErrSuperseded
	}
	return p.ctx.Err()
}

func (c *Coordinator) pass(p *passState) error {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	if err := c.live(p); err != nil {
		return err
	}
	if p.persist && c.prefs != nil {
		if err := c.prefs.Set(p.ctx, state.KeyLanguage, p.lang); err != nil {
			c.logger.Warn("language not persisted", logging.Lang(p.lang), logging.Err(err))
		}
	}

	for _, s := range c.steps() {
		if err := c.live(p); err != nil {
			return err
		}
		if err := c.doc.Update(func() error { return s.fn(p.lang) }); err != nil {
			c.logger.Warn("render step failed", logging.Lang(p.lang), logging.String("step", s.name), logging.Err(err))
		}
	}

	if c.fetchName != nil && c.chrome != nil {
		if err := c.live(p); err != nil {
			return err
		}
		name, fetchErr := c.fetchName(p.ctx, p.lang)
		if err := c.live(p); err != nil {
			return err
		}
		switch {
		case fetchErr != nil:
			c.logger.Warn("display name unavailable", logging.Lang(p.lang), logging.Err(fetchErr))
		case c.Current() != p.lang:
			c.logger.Debug("stale display name dropped", logging.Lang(p.lang))
		default:
			_ = c.doc.Update(func() error {
				c.chrome.SetDisplayName(name)
				return nil
			})
		}
	}

	if err := c.live(p); err != nil {
		return err
	}
	if c.notifier != nil {
		if err := c.notifier.LanguageChanged(p.lang); err != nil {
			c.logger.Warn("language change not published", logging.Lang(p.lang), logging.Err(err))
		}
	}
	return nil
}
