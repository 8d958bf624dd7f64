// Package chrome builds the page frame around the sections: the navigation
// bar with its language and theme switches, and the footer.
package chrome

import (
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/gabrielmiguelok/scholarpage/pkg/dom"
	"github.com/gabrielmiguelok/scholarpage/pkg/i18n"
	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
	"github.com/gabrielmiguelok/scholarpage/pkg/sections"
	"github.com/gabrielmiguelok/scholarpage/pkg/state"
)

// Element ids.
const (
	HeaderID     = "site-header"
	LogoNameID   = "nav-logo-name"
	LangSwitchID = "language-switch"
	ThemeID      = "theme-switch"
	FooterID     = "site-footer"
	CopyrightID  = "copyright-text"
)

const logoSrc = "https://api.iconify.design/material-symbols/school.svg?color=%23000000"

// navKeys label the nav links, in sections.Order.
var navKeys = []string{"navHome", "navExperiences", "navPublications"}

// Option configures Chrome.
type Option func(*Chrome)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Chrome) {
		c.logger = logging.OrNop(l)
	}
}

// WithNow overrides the clock used for the copyright year.
func WithNow(now func() time.Time) Option {
	return func(c *Chrome) {
		c.now = now
	}
}

// WithPolicy sets the sanitizer for catalog markup such as the copyright.
func WithPolicy(p *bluemonday.Policy) Option {
	return func(c *Chrome) {
		c.policy = p
	}
}

// Chrome renders the nav bar and footer of one document. Methods expect the
// caller to hold the document lock.
type Chrome struct {
	doc     *dom.Document
	catalog *i18n.Catalog
	multi   bool
	logger  logging.Logger
	now     func() time.Time
	policy  *bluemonday.Policy
}

// New creates the chrome. multiLanguage controls whether the language switch
// exists at all.
func New(doc *dom.Document, catalog *i18n.Catalog, multiLanguage bool, opts ...Option) *Chrome {
	c := &Chrome{
		doc:     doc,
		catalog: catalog,
		multi:   multiLanguage,
		logger:  logging.NopLogger{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.catalog == nil {
		c.catalog = i18n.Default()
	}
	if c.policy == nil {
		c.policy = sections.NewPolicy()
	}
	return c
}

// Mount puts the header before and the footer after the existing body
// content. It does nothing when the header already exists.
func (c *Chrome) Mount() {
	if c.doc.ByID(HeaderID) != nil {
		return
	}
	body := c.doc.Body()

	logo := dom.Append(dom.El("div", dom.Class("logo")),
		dom.El("img", dom.A("src", logoSrc), dom.A("alt", "Logo"), dom.A("style", "height: 32px; margin-right: 10px")),
		dom.El("span", dom.ID(LogoNameID)),
	)

	links := dom.El("div", dom.Class("nav-links"))
	for _, id := range sections.Order {
		dom.Append(links, dom.El("a",
			dom.A("href", "#"+id),
			dom.A("lv-click", "show_section"),
			dom.A("lv-value-section", id),
		))
	}

	controls := dom.El("div", dom.Class("controls"))
	dom.Append(controls, dom.El("button", dom.ID(ThemeID), dom.Class("theme-switch"), dom.A("lv-click", "toggle_theme")))
	if c.multi {
		dom.Append(controls, dom.El("button", dom.ID(LangSwitchID), dom.Class("language-switch"), dom.A("lv-click", "toggle_language")))
	}

	header := dom.Append(dom.El("header", dom.ID(HeaderID)),
		dom.Append(dom.El("nav", dom.Class("navbar")), logo, links, controls))
	body.InsertBefore(header, body.FirstChild)

	footer := dom.Append(dom.El("footer", dom.ID(FooterID), dom.Class("footer")),
		dom.Append(dom.El("div", dom.Class("copyright-container")),
			dom.El("p", dom.ID(CopyrightID), dom.Class("copyright-text"))))
	dom.Append(body, footer)
}

// UpdateNavLabels sets the nav link texts for lang.
func (c *Chrome) UpdateNavLabels(lang string) {
	header := c.doc.ByID(HeaderID)
	if header == nil {
		c.logger.Warn("nav missing", logging.Lang(lang))
		return
	}
	links := dom.FindFirst(header, dom.WithClass("nav-links"))
	if links == nil {
		return
	}
	i := 0
	for a := links.FirstChild; a != nil; a = a.NextSibling {
		if a.Type != html.ElementNode || i >= len(navKeys) {
			continue
		}
		dom.SetText(a, c.catalog.Text(navKeys[i], lang))
		i++
	}
}

// UpdateFooter renders the copyright line for lang with the current year.
func (c *Chrome) UpdateFooter(lang string) {
	p := c.doc.ByID(CopyrightID)
	if p == nil {
		c.logger.Warn("footer missing", logging.Lang(lang))
		return
	}
	text := c.catalog.GetText("copyright", i18n.Params{"year": strconv.Itoa(c.now().Year())}, lang)
	if err := dom.SetHTML(p, c.policy.Sanitize(text)); err != nil {
		dom.SetText(p, text)
	}
}

// UpdateLanguageSwitch labels the switch with the language it leads to.
// Absent in single-language mode.
func (c *Chrome) UpdateLanguageSwitch(lang string) {
	if !c.multi {
		return
	}
	if btn := c.doc.ByID(LangSwitchID); btn != nil {
		dom.SetText(btn, c.catalog.SwitchLabel(lang))
	}
}

// SetDisplayName fills the name next to the logo.
func (c *Chrome) SetDisplayName(name string) {
	if span := c.doc.ByID(LogoNameID); span != nil {
		dom.SetText(span, strings.TrimSpace(name))
	}
}

// DisplayName returns the name next to the logo.
func (c *Chrome) DisplayName() string {
	if span := c.doc.ByID(LogoNameID); span != nil {
		return dom.TextContent(span)
	}
	return ""
}

// ApplyTheme sets the body theme class and the switch icon, which shows the
// theme the switch leads to.
func (c *Chrome) ApplyTheme(theme string) {
	theme = state.NormalizeTheme(theme)
	body := c.doc.Body()
	dom.ToggleClass(body, "dark-theme", theme == state.ThemeDark)
	dom.ToggleClass(body, "light-theme", theme == state.ThemeLight)

	btn := c.doc.ByID(ThemeID)
	if btn == nil {
		return
	}
	icon := "fas fa-moon"
	if theme == state.ThemeDark {
		icon = "fas fa-sun"
	}
	dom.Clear(btn)
	dom.Append(btn, dom.El("i", dom.Class(icon)))
}

// Theme reports the theme applied to the body.
func (c *Chrome) Theme() string {
	if dom.HasClass(c.doc.Body(), "light-theme") {
		return state.ThemeLight
	}
	return state.ThemeDark
}

// PatchRoots are the chrome element ids that change at runtime.
func PatchRoots() []string {
	return []string{HeaderID, FooterID}
}
