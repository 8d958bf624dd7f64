package sections

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/gabrielmiguelok/scholarpage/pkg/content"
	"github.com/gabrielmiguelok/scholarpage/pkg/dom"
	"github.com/gabrielmiguelok/scholarpage/pkg/i18n"
	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
)

// Home region ids.
const (
	homeMarker   = "home-content-wrapper"
	InfoID       = "info-content"
	IntroTitleID = "intro-title"
	IntroID      = "intro-content"
	NewsTitleID  = "news-title"
	NewsID       = "news-content"
	ClockID      = "current-time"
)

const (
	profilePhoto = "images/homepage/photo/photo.png"
	iconDir      = "images/homepage/info icon/"
)

// Home renders personal info, intro and news.
type Home struct {
	base
}

// NewHome creates the home renderer.
func NewHome(env *Env) *Home {
	return &Home{base: newBase(env, HomeID, HomeName)}
}

// EnsureMounted builds the two-column home layout once.
func (h *Home) EnsureMounted() error {
	return h.mountWith(homeMarker, func(section *html.Node) error {
		info := dom.El("div", dom.Class("info-section"))
		dom.Append(info,
			dom.Append(dom.El("div", dom.Class("profile-container")),
				dom.El("img", dom.Class("profile-photo"), dom.A("src", profilePhoto), dom.A("alt", "Profile Photo"))),
			dom.El("div", dom.Class("info-content"), dom.ID(InfoID)),
		)

		right := dom.El("div", dom.Class("home-content-section"))
		dom.Append(right,
			dom.Append(dom.El("div", dom.Class("intro-section")),
				dom.El("h3", dom.ID(IntroTitleID)),
				dom.El("div", dom.ID(IntroID))),
			dom.Append(dom.El("div", dom.Class("news-section")),
				dom.El("h3", dom.ID(NewsTitleID)),
				dom.El("div", dom.ID(NewsID))),
		)

		wrapper := dom.El("div", dom.Class(homeMarker))
		dom.Append(wrapper,
			dom.Append(dom.El("div", dom.Class("home-container")),
				dom.Append(dom.El("div", dom.Class("home-content-container")), info, right)))
		dom.Append(section, wrapper)
		return nil
	})
}

// UpdateContent refreshes every home region for lang. Each region degrades
// on its own: missing content empties that region only.
func (h *Home) UpdateContent(lang string) error {
	if err := h.EnsureMounted(); err != nil {
		return err
	}

	h.updateInfo(lang)
	h.updateIntro(lang)
	h.updateNews(lang)

	if n, ok := h.region(IntroTitleID); ok {
		dom.SetText(n, h.env.text("aboutMe", lang))
	}
	if n, ok := h.region(NewsTitleID); ok {
		dom.SetText(n, h.env.text("news", lang))
	}

	h.setRendered(lang)
	return nil
}

func (h *Home) missing(lang string, t content.Type) {
	h.log().Warn("content missing", logging.Lang(lang), logging.ContentType(t.String()))
}

func (h *Home) updateInfo(lang string) {
	box, ok := h.region(InfoID)
	if !ok {
		return
	}
	dom.Clear(box)

	info, ok := content.Lookup[content.Info](h.env.Store, lang, content.TypeInfo)
	if !ok {
		h.missing(lang, content.TypeInfo)
		return
	}

	dom.Append(box, dom.Append(dom.El("h2"), dom.Text(info.Name)))
	dom.Append(box,
		infoItem("location.png", "Location", dom.Append(dom.El("span"), dom.Text(info.Address))),
		infoItem("school.png", "School", dom.Append(dom.El("span"), dom.Text(info.Institution))),
		infoItem("google scholar.png", "Google Scholar", link(info.GoogleScholar, h.env.text("googleScholar", lang))),
		infoItem("github.png", "GitHub", link(info.GitHub, "GitHub")),
		infoItem("email.png", "Email", link(mailto(info.Email), info.Email)),
		infoItem("time.png", "Current Time",
			dom.Append(dom.El("span", dom.ID(ClockID)), dom.Text(FormatClock(h.env.Now(), info.UTCOffset())))),
	)
}

func (h *Home) updateIntro(lang string) {
	box, ok := h.region(IntroID)
	if !ok {
		return
	}
	dom.Clear(box)

	intro, ok := content.Lookup[content.Intro](h.env.Store, lang, content.TypeIntro)
	if !ok {
		h.missing(lang, content.TypeIntro)
		return
	}

	if intro.HTML != "" {
		if err := h.env.setHTML(box, intro.HTML); err != nil {
			h.log().Warn("intro markup rejected", logging.Lang(lang), logging.Err(err))
		}
		return
	}
	for _, para := range intro.Paragraphs() {
		p := dom.El("p")
		if err := h.env.setHTML(p, para); err != nil {
			dom.SetText(p, para)
		}
		dom.Append(box, p)
	}
}

func (h *Home) updateNews(lang string) {
	box, ok := h.region(NewsID)
	if !ok {
		return
	}
	dom.Clear(box)

	news, ok := content.Lookup[content.NewsList](h.env.Store, lang, content.TypeNews)
	if !ok {
		h.missing(lang, content.TypeNews)
		return
	}

	list := dom.El("ul", dom.Class("news-list"))
	for i, item := range news.Sorted() {
		date := dom.El("div", dom.Class("news-date"))
		dom.Append(date, dom.Text(newsDate(item, lang)))
		if i == 0 {
			dom.Append(date, dom.Append(dom.El("span", dom.Class("latest-label")), dom.Text(h.env.text("latest", lang))))
		}

		body := dom.El("div", dom.Class("news-content"))
		if err := h.env.setHTML(body, item.Content); err != nil {
			dom.SetText(body, item.Content)
		}

		dom.Append(list, dom.Append(dom.El("li", dom.Class("news-item")), date, body))
	}
	dom.Append(box, list)
}

func newsDate(n content.News, lang string) string {
	if t, ok := n.Date(); ok {
		return i18n.FormatDate(t, lang)
	}
	return n.Time
}

// FormatClock renders now shifted to a UTC offset in hours, e.g.
// "14:05 (UTC+08:00)".
func FormatClock(now time.Time, offsetHours int) string {
	t := now.UTC().Add(time.Duration(offsetHours) * time.Hour)
	return fmt.Sprintf("%02d:%02d (UTC%+03d:00)", t.Hour(), t.Minute(), offsetHours)
}

func infoItem(icon, alt string, value *html.Node) *html.Node {
	return dom.Append(dom.El("div", dom.Class("info-item")),
		dom.El("img", dom.Class("info-icon"), dom.A("src", iconDir+icon), dom.A("alt", alt)),
		value,
	)
}

func mailto(addr string) string {
	if addr == "" {
		return ""
	}
	return "mailto:" + addr
}

// link builds an anchor, or a plain span when href is unusable.
func link(href, text string) *html.Node {
	safe, ok := safeHref(href)
	if !ok {
		return dom.Append(dom.El("span"), dom.Text(text))
	}
	attrs := []html.Attribute{dom.A("href", safe)}
	if !strings.HasPrefix(safe, "mailto:") {
		attrs = append(attrs, dom.A("target", "_blank"), dom.A("rel", "noopener noreferrer"))
	}
	return dom.Append(dom.El("a", attrs...), dom.Text(text))
}
