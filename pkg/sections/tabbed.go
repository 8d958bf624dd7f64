package sections

import (
	"golang.org/x/net/html"

	"github.com/gabrielmiguelok/scholarpage/pkg/content"
	"github.com/gabrielmiguelok/scholarpage/pkg/dom"
	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
	"github.com/gabrielmiguelok/scholarpage/pkg/tabs"
)

const (
	tabsMarker     = "tabs-container"
	noContentClass = "no-content-message"
	activeClass    = "active"
)

// paneBuilder appends the modules of one tab for lang to container.
type paneBuilder func(tab tabs.Tab, lang string, container *html.Node) error

// tabbed is the shared renderer of the sections that show their content as
// tabs of module lists.
type tabbed struct {
	base
	titleKey string
	ctrl     *tabs.Controller
	build    paneBuilder
}

func newTabbed(env *Env, id, name, titleKey string, declared []tabs.Tab, states *tabs.ActiveStates, build paneBuilder, opts ...tabs.Option) *tabbed {
	t := &tabbed{
		base:     newBase(env, id, name),
		titleKey: titleKey,
		build:    build,
	}
	opts = append([]tabs.Option{tabs.WithLoader(t.loadPane)}, opts...)
	t.ctrl = tabs.NewController(name, declared, states, opts...)
	return t
}

// Controller exposes the section's tab controller.
func (t *tabbed) Controller() *tabs.Controller { return t.ctrl }

func (t *tabbed) titleID() string { return t.name + "-title" }

// EnsureMounted builds the title, tab strip, compact tab menu, panes and the
// empty-state message once.
func (t *tabbed) EnsureMounted() error {
	return t.mountWith(tabsMarker, func(section *html.Node) error {
		title := dom.Append(dom.El("div", dom.Class("section-title")),
			dom.El("h2", dom.ID(t.titleID())))

		strip := dom.El("div", dom.Class("tabs"))
		options := dom.El("div", dom.Class("compact-tab-options"))
		panes := dom.El("div", dom.Class("tab-content"))
		for _, tab := range t.ctrl.Tabs() {
			dom.Append(strip, dom.El("button", append(selectAttrs(t.name, tab.ID), dom.Class("tab-button"))...))
			dom.Append(options, dom.El("button", append(selectAttrs(t.name, tab.ID), dom.Class("compact-tab-option"))...))
			dom.Append(panes, dom.Append(
				dom.El("div", dom.ID(tab.ID), dom.Class("tab-pane")),
				dom.El("div", dom.ID(tab.ContainerID()), dom.Class("modules-container")),
			))
		}
		compact := dom.Append(dom.El("div", dom.Class("compact-tabs")),
			dom.El("button", dom.Class("compact-tab-button")),
			options,
		)

		empty := dom.El("div", dom.Class(noContentClass))
		dom.SetHidden(empty, true)

		dom.Append(section, title, dom.Append(dom.El("div", dom.Class(tabsMarker)), strip, compact, panes), empty)
		return nil
	})
}

func selectAttrs(section, tab string) []html.Attribute {
	return []html.Attribute{
		dom.A("data-tab", tab),
		dom.A("lv-click", "select_tab"),
		dom.A("lv-value-section", section),
		dom.A("lv-value-tab", tab),
	}
}

// UpdateContent recomputes the visible tabs for lang, rebuilds every visible
// pane, clears the others and re-applies the active state.
func (t *tabbed) UpdateContent(lang string) error {
	if err := t.EnsureMounted(); err != nil {
		return err
	}
	section, err := t.element()
	if err != nil {
		return err
	}

	if n, ok := t.region(t.titleID()); ok {
		dom.SetText(n, t.env.text(t.titleKey, lang))
	}

	visible := t.ctrl.Recompute(func(ct content.Type) bool {
		return content.HasItems(t.env.Store, lang, ct)
	})
	for _, tab := range t.ctrl.Tabs() {
		if !t.ctrl.IsVisible(tab.ID) {
			_, present := t.env.Store.Get(lang, tab.Type)
			t.log().Debug("tab hidden", logging.Lang(lang), logging.Tab(tab.ID), logging.Bool("present", present))
			if c := t.env.Doc.ByID(tab.ContainerID()); c != nil {
				dom.Clear(c)
			}
			continue
		}
		t.renderPane(tab, lang)
	}

	t.applyVisibility(section, len(visible) > 0, lang)
	t.applyLabels(section, lang)
	t.applyActive(section)

	t.setRendered(lang)
	return nil
}

// SelectTab activates a visible tab and re-renders its pane for the last
// rendered language. Hidden or unknown ids are ignored.
func (t *tabbed) SelectTab(id string) bool {
	if !t.ctrl.Select(id) {
		return false
	}
	if section, err := t.element(); err == nil {
		t.applyActive(section)
	}
	return true
}

// UpdateTabLabels rewrites the tab and compact menu labels for lang.
func (t *tabbed) UpdateTabLabels(lang string) {
	section, err := t.element()
	if err != nil {
		return
	}
	t.applyLabels(section, lang)
	t.applyActive(section)
}

func (t *tabbed) loadPane(tab tabs.Tab) {
	lang := t.RenderedLanguage()
	if lang == "" {
		return
	}
	t.renderPane(tab, lang)
}

func (t *tabbed) renderPane(tab tabs.Tab, lang string) {
	container, ok := t.region(tab.ContainerID())
	if !ok {
		return
	}
	dom.Clear(container)
	if err := t.build(tab, lang, container); err != nil {
		t.log().Warn("tab render failed", logging.Lang(lang), logging.Tab(tab.ID), logging.Err(err))
	}
}

func (t *tabbed) applyVisibility(section *html.Node, has bool, lang string) {
	if strip := dom.FindFirst(section, dom.WithClass(tabsMarker)); strip != nil {
		dom.SetHidden(strip, !has)
	}
	if empty := dom.FindFirst(section, dom.WithClass(noContentClass)); empty != nil {
		dom.SetHidden(empty, has)
		if has {
			dom.Clear(empty)
		} else {
			dom.SetText(empty, t.env.text("noContentAvailable", lang))
		}
	}

	for _, btn := range dom.FindAll(section, hasDataTab) {
		id, _ := dom.Attr(btn, "data-tab")
		dom.SetHidden(btn, !t.ctrl.IsVisible(id))
	}
	for _, tab := range t.ctrl.Tabs() {
		if pane := dom.FindByID(section, tab.ID); pane != nil {
			dom.SetHidden(pane, !t.ctrl.IsVisible(tab.ID))
		}
	}
}

func (t *tabbed) applyLabels(section *html.Node, lang string) {
	labels := make(map[string]string)
	for _, tab := range t.ctrl.Tabs() {
		labels[tab.ID] = t.env.text(tab.LabelKey, lang)
	}
	for _, btn := range dom.FindAll(section, hasDataTab) {
		id, _ := dom.Attr(btn, "data-tab")
		dom.SetText(btn, labels[id])
	}
}

func (t *tabbed) applyActive(section *html.Node) {
	active, _ := t.ctrl.Active()
	for _, btn := range dom.FindAll(section, hasDataTab) {
		id, _ := dom.Attr(btn, "data-tab")
		dom.ToggleClass(btn, activeClass, id == active.ID)
	}
	for _, tab := range t.ctrl.Tabs() {
		if pane := dom.FindByID(section, tab.ID); pane != nil {
			dom.ToggleClass(pane, activeClass, tab.ID == active.ID)
		}
	}
	// the compact menu shows the active tab's label
	if compact := dom.FindFirst(section, dom.WithClass("compact-tab-button")); compact != nil {
		var label string
		if btn := dom.FindFirst(section, func(n *html.Node) bool {
			v, _ := dom.Attr(n, "data-tab")
			return active.ID != "" && v == active.ID && dom.HasClass(n, "tab-button")
		}); btn != nil {
			label = dom.TextContent(btn)
		}
		dom.SetText(compact, label)
	}
}

func hasDataTab(n *html.Node) bool {
	_, ok := dom.Attr(n, "data-tab")
	return ok && n.Data == "button"
}
