// Package sections renders the three page sections (home, experiences,
// publications) from the content store into the document, and controls
// which of them is shown.
package sections

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/gabrielmiguelok/scholarpage/pkg/content"
	"github.com/gabrielmiguelok/scholarpage/pkg/dom"
	"github.com/gabrielmiguelok/scholarpage/pkg/i18n"
	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
)

// ErrNotReady is returned when the page skeleton did not appear in time.
var ErrNotReady = errors.New("sections: skeleton not ready")

// Section element ids, in navigation order.
const (
	HomeID         = "home-section"
	ExperiencesID  = "experiences-section"
	PublicationsID = "publications-section"
)

// Names used for tab state and events.
const (
	HomeName         = "home"
	ExperiencesName  = "experiences"
	PublicationsName = "publications"
)

// Order lists the section ids by navigation index.
var Order = []string{HomeID, ExperiencesID, PublicationsID}

// Renderer fills one section of the document.
//
// Methods touch the document without locking; callers hold the document
// lock (dom.Document.Update) around them.
type Renderer interface {
	// ID is the id of the section element.
	ID() string
	// Name is the short section name ("home", ...).
	Name() string
	// EnsureMounted builds the static skeleton once.
	EnsureMounted() error
	// UpdateContent mounts if needed and refreshes every region for lang.
	UpdateContent(lang string) error
	// Mounted is closed once the skeleton exists.
	Mounted() <-chan struct{}
	// RenderedLanguage is the language of the last completed update.
	RenderedLanguage() string
}

// Env is what every renderer reads from.
type Env struct {
	Doc     *dom.Document
	Store   content.Reader
	Catalog *i18n.Catalog
	Logger  logging.Logger
	Policy  *bluemonday.Policy
	Now     func() time.Time
}

// NewPolicy returns the sanitizer applied to HTML coming from content files.
func NewPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("target").Matching(bluemonday.SpaceSeparatedTokens).OnElements("a")
	return p
}

func (e *Env) withDefaults() *Env {
	out := *e
	out.Logger = logging.OrNop(e.Logger)
	if out.Catalog == nil {
		out.Catalog = i18n.Default()
	}
	if out.Policy == nil {
		out.Policy = NewPolicy()
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return &out
}

func (e *Env) text(key, lang string) string {
	return e.Catalog.Text(key, lang)
}

func (e *Env) sanitize(fragment string) string {
	return e.Policy.Sanitize(fragment)
}

// setHTML sanitizes fragment and places it inside n.
func (e *Env) setHTML(n *html.Node, fragment string) error {
	return dom.SetHTML(n, e.sanitize(fragment))
}

// body builds a module body from untrusted markup.
func (e *Env) body(class, fragment string) (*html.Node, error) {
	return dom.Content(class, e.sanitize(fragment))
}

// base carries the mount and render bookkeeping shared by all sections.
type base struct {
	env  *Env
	id   string
	name string

	mounted   chan struct{}
	mountOnce sync.Once

	mu       sync.Mutex
	rendered string
}

func newBase(env *Env, id, name string) base {
	return base{
		env:     env.withDefaults(),
		id:      id,
		name:    name,
		mounted: make(chan struct{}),
	}
}

func (b *base) ID() string               { return b.id }
func (b *base) Name() string             { return b.name }
func (b *base) Mounted() <-chan struct{} { return b.mounted }
func (b *base) markMounted()             { b.mountOnce.Do(func() { close(b.mounted) }) }
func (b *base) log() logging.Logger      { return b.env.Logger.With(logging.Section(b.id)) }

func (b *base) element() (*html.Node, error) {
	return b.env.Doc.Require(b.id)
}

func (b *base) RenderedLanguage() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rendered
}

func (b *base) setRendered(lang string) {
	b.mu.Lock()
	b.rendered = lang
	b.mu.Unlock()
}

// mountWith builds the skeleton with build unless marker is already inside
// the section element.
func (b *base) mountWith(markerClass string, build func(section *html.Node) error) error {
	section, err := b.element()
	if err != nil {
		return err
	}
	if dom.FindFirst(section, dom.WithClass(markerClass)) != nil {
		b.markMounted()
		return nil
	}
	if err := build(section); err != nil {
		return fmt.Errorf("sections: mount %s: %w", b.name, err)
	}
	b.markMounted()
	return nil
}

// region returns the element with id, logging when it is missing.
func (b *base) region(id string) (*html.Node, bool) {
	n := b.env.Doc.ByID(id)
	if n == nil {
		b.log().Warn("render target missing", logging.String("target", id))
		return nil, false
	}
	return n, true
}

// safeHref accepts http(s), mailto and relative links.
func safeHref(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return u.String(), true
	default:
		return "", false
	}
}
