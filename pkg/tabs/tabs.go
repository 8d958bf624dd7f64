// Package tabs tracks which content tabs of a section are visible and which
// one is active.
package tabs

import (
	"slices"
	"sync"

	"github.com/gabrielmiguelok/scholarpage/pkg/content"
)

// Tab describes one pane of a section.
type Tab struct {
	ID       string
	LabelKey string
	Type     content.Type
}

// ContainerID is the id of the element holding the tab's modules.
func (t Tab) ContainerID() string {
	return t.ID + "-modules-container"
}

// Predicate reports whether the content behind a tab has items.
type Predicate func(content.Type) bool

// ComputeVisibleTabs keeps the tabs whose content satisfies pred, in
// declared order.
func ComputeVisibleTabs(tabs []Tab, pred Predicate) []Tab {
	visible := make([]Tab, 0, len(tabs))
	for _, t := range tabs {
		if pred != nil && pred(t.Type) {
			visible = append(visible, t)
		}
	}
	return visible
}

// ActiveStates remembers the selected tab per section for the lifetime of
// one page.
type ActiveStates struct {
	mu     sync.RWMutex
	active map[string]string
}

// NewActiveStates creates an empty state map.
func NewActiveStates() *ActiveStates {
	return &ActiveStates{active: make(map[string]string)}
}

// Get returns the remembered tab for section.
func (s *ActiveStates) Get(section string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[section]
	return id, ok
}

// Set remembers id for section.
func (s *ActiveStates) Set(section, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[section] = id
}

// Snapshot copies the state map.
func (s *ActiveStates) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.active))
	for k, v := range s.active {
		out[k] = v
	}
	return out
}

// Option configures a Controller.
type Option func(*Controller)

// WithLoader sets the function that fills a tab's pane when it is selected.
func WithLoader(fn func(Tab)) Option {
	return func(c *Controller) {
		c.loader = fn
	}
}

// WithOnChange sets the function told about every explicit selection.
func WithOnChange(fn func(section, tab string)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// Controller owns the visibility and selection of one section's tabs.
type Controller struct {
	mu       sync.Mutex
	section  string
	tabs     []Tab
	visible  []Tab
	active   string
	states   *ActiveStates
	loader   func(Tab)
	onChange func(section, tab string)
}

// NewController creates a controller for section's declared tabs. The first
// declared tab starts active.
func NewController(section string, declared []Tab, states *ActiveStates, opts ...Option) *Controller {
	if states == nil {
		states = NewActiveStates()
	}
	c := &Controller{
		section: section,
		tabs:    slices.Clone(declared),
		states:  states,
	}
	if len(declared) > 0 {
		c.active = declared[0].ID
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Section returns the section name.
func (c *Controller) Section() string { return c.section }

// Tabs returns the declared tabs.
func (c *Controller) Tabs() []Tab { return slices.Clone(c.tabs) }

// Recompute re-derives the visible set and restores the invariant that the
// active tab is visible: the remembered tab if visible, else the current
// one if still visible, else the first visible tab. With nothing visible
// there is no active tab.
func (c *Controller) Recompute(pred Predicate) []Tab {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.visible = ComputeVisibleTabs(c.tabs, pred)

	switch {
	case len(c.visible) == 0:
		c.active = ""
	case c.rememberedVisible():
		c.active, _ = c.states.Get(c.section)
	case c.isVisible(c.active):
	default:
		c.active = c.visible[0].ID
	}
	return slices.Clone(c.visible)
}

func (c *Controller) rememberedVisible() bool {
	id, ok := c.states.Get(c.section)
	return ok && c.isVisible(id)
}

// Visible returns the tabs visible after the last Recompute.
func (c *Controller) Visible() []Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.visible)
}

// IsVisible reports whether id was visible after the last Recompute.
func (c *Controller) IsVisible(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isVisible(id)
}

func (c *Controller) isVisible(id string) bool {
	for _, t := range c.visible {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Active returns the active tab. ok is false when no tab is visible.
func (c *Controller) Active() (Tab, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.visible {
		if t.ID == c.active {
			return t, true
		}
	}
	return Tab{}, false
}

// Select activates a visible tab, loads its pane, remembers the choice and
// reports the change. Unknown or hidden ids are ignored.
func (c *Controller) Select(id string) bool {
	c.mu.Lock()
	if !c.isVisible(id) {
		c.mu.Unlock()
		return false
	}
	c.active = id
	var tab Tab
	for _, t := range c.visible {
		if t.ID == id {
			tab = t
		}
	}
	loader, onChange := c.loader, c.onChange
	c.mu.Unlock()

	if loader != nil {
		loader(tab)
	}
	c.states.Set(c.section, id)
	if onChange != nil {
		onChange(c.section, id)
	}
	return true
}
