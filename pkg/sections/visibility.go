package sections

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gabrielmiguelok/scholarpage/pkg/dom"
	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
)

// ErrUnknownSection is returned by Show for ids outside Order.
var ErrUnknownSection = errors.New("sections: unknown section")

// DefaultReadyTimeout bounds how long Show waits for the page skeleton.
const DefaultReadyTimeout = 5 * time.Second

// NavLinkSelector matches the navigation links, one per section in Order.
const NavLinkSelector = ".nav-links a"

// VisibilityOption configures a Visibility controller.
type VisibilityOption func(*Visibility)

// WithReadyTimeout overrides DefaultReadyTimeout.
func WithReadyTimeout(d time.Duration) VisibilityOption {
	return func(v *Visibility) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithVisibilityLogger sets the logger.
func WithVisibilityLogger(l logging.Logger) VisibilityOption {
	return func(v *Visibility) {
		v.logger = logging.OrNop(l)
	}
}

// Visibility shows exactly one section at a time and renders a section the
// first time it is shown in the current language.
type Visibility struct {
	doc       *dom.Document
	renderers map[string]Renderer
	ready     <-chan struct{}
	language  func() string
	timeout   time.Duration
	logger    logging.Logger

	mu    sync.Mutex
	shown string
}

// NewVisibility creates a controller. ready is closed once the skeleton
// (main container and the hidden section elements) exists; language returns
// the current language.
func NewVisibility(doc *dom.Document, ready <-chan struct{}, language func() string, renderers []Renderer, opts ...VisibilityOption) *Visibility {
	v := &Visibility{
		doc:       doc,
		renderers: make(map[string]Renderer, len(renderers)),
		ready:     ready,
		language:  language,
		timeout:   DefaultReadyTimeout,
		logger:    logging.NopLogger{},
	}
	for _, r := range renderers {
		v.renderers[r.ID()] = r
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Shown returns the id of the visible section, or "" before the first Show.
func (v *Visibility) Shown() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shown
}

// Show hides every other section, shows id and highlights its nav link. The
// section is rendered only when its last render was for another language.
func (v *Visibility) Show(ctx context.Context, id string) error {
	index := slices.Index(Order, id)
	if index < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSection, id)
	}

	if err := v.waitReady(ctx); err != nil {
		v.logger.Warn("section not shown", logging.Section(id), logging.Err(err))
		return err
	}

	err := v.doc.Update(func() error {
		for _, sid := range Order {
			n := v.doc.ByID(sid)
			if n == nil {
				v.logger.Warn("section element missing", logging.Section(sid))
				continue
			}
			dom.SetHidden(n, sid != id)
			dom.ToggleClass(n, activeClass, sid == id)
		}

		v.doc.Find(NavLinkSelector).Each(func(i int, s *goquery.Selection) {
			for _, n := range s.Nodes {
				dom.ToggleClass(n, activeClass, i == index)
			}
		})

		r, ok := v.renderers[id]
		if !ok {
			return nil
		}
		lang := v.language()
		if r.RenderedLanguage() == lang {
			return nil
		}
		if err := r.EnsureMounted(); err != nil {
			return err
		}
		return r.UpdateContent(lang)
	})
	if err != nil {
		return fmt.Errorf("sections: show %s: %w", id, err)
	}

	v.mu.Lock()
	v.shown = id
	v.mu.Unlock()
	return nil
}

func (v *Visibility) waitReady(ctx context.Context) error {
	select {
	case <-v.ready:
		return nil
	default:
	}

	timer := time.NewTimer(v.timeout)
	defer timer.Stop()
	select {
	case <-v.ready:
		return nil
	case <-timer.C:
		return ErrNotReady
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
	}
}
