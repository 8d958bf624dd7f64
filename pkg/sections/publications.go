package sections

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/gabrielmiguelok/scholarpage/pkg/content"
	"github.com/gabrielmiguelok/scholarpage/pkg/dom"
	"github.com/gabrielmiguelok/scholarpage/pkg/tabs"
)

// PublicationTabs are the publications tabs in display order.
var PublicationTabs = []tabs.Tab{
	{ID: "paper", LabelKey: "academicPapers", Type: content.TypePaper},
	{ID: "patent", LabelKey: "patents", Type: content.TypePatent},
}

const publicationImageDir = "images/publication/"

// Publications renders papers grouped by year and patents.
type Publications struct {
	*tabbed
}

// NewPublications creates the publications renderer.
func NewPublications(env *Env, states *tabs.ActiveStates, opts ...tabs.Option) *Publications {
	p := &Publications{}
	p.tabbed = newTabbed(env, PublicationsID, PublicationsName, "publications", PublicationTabs, states, p.buildPane, opts...)
	return p
}

func (p *Publications) buildPane(tab tabs.Tab, lang string, container *html.Node) error {
	switch tab.Type {
	case content.TypePaper:
		index, _ := content.Lookup[content.PaperIndex](p.env.Store, lang, tab.Type)
		return p.papers(index, lang, container)
	case content.TypePatent:
		list, _ := content.Lookup[content.PatentList](p.env.Store, lang, tab.Type)
		for _, item := range list {
			m, err := p.patent(item)
			if err != nil {
				return err
			}
			dom.Append(container, m.Container)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", content.ErrUnknownType, tab.Type)
	}
}

func (p *Publications) papers(index content.PaperIndex, lang string, container *html.Node) error {
	all := dom.El("div", dom.Class("all-papers-container"))
	for _, year := range index.Years() {
		papers := index[year]
		if len(papers) == 0 {
			continue
		}
		dom.Append(all, dom.Append(dom.El("h3", dom.Class("paper-year-header")), dom.Text(year)))
		for _, paper := range papers {
			m, err := p.paper(paper, lang)
			if err != nil {
				return err
			}
			dom.Append(all, m.Container)
		}
	}
	dom.Append(container, all)
	return nil
}

func (p *Publications) paper(item content.Paper, lang string) (dom.Module, error) {
	m := dom.NewModule("paper", "paper-module")
	row, cols, err := dom.Columns(2, []int{1, 2}, []string{"paper-logo-column", "paper-info-column"})
	if err != nil {
		return m, err
	}
	m.Add(dom.Header(item.Title, "fas fa-file-alt"), row)
	if item.Image != "" {
		dom.Append(cols[0], dom.Image(publicationImageDir+item.Image, item.Title+" image", "200px"))
	}

	venue := item.Venue()
	if item.Abbr != "" {
		venue += " (" + item.Abbr + ")"
	}
	venue = joinNonEmpty(", ", venue, item.Place())

	var b strings.Builder
	fmt.Fprintf(&b, "<p>%s</p>", esc(item.Authors))
	if venue != "" {
		fmt.Fprintf(&b, "<p><em>%s</em></p>", esc(venue))
	}
	if item.Type != "" {
		fmt.Fprintf(&b, "<p><strong>%s:</strong> %s</p>", esc(p.env.text("type", lang)), esc(item.Type))
	}
	body, err := p.env.body("paper-info", b.String())
	if err != nil {
		return m, err
	}
	dom.Append(cols[1], body)

	if links := p.paperLinks(item, lang); links != nil {
		dom.Append(cols[1], links)
	}
	return m, nil
}

type paperLink struct {
	key, href, icon, class string
}

func (p *Publications) paperLinks(item content.Paper, lang string) *html.Node {
	var row *html.Node
	for _, l := range []paperLink{
		{"paper", item.PaperLink, "fas fa-file-alt", "paper-button"},
		{"code", item.CodeLink, "fas fa-code", "code-button"},
		{"video", item.VideoLink, "fas fa-video", "video-button"},
		{"site", item.SiteLink, "fas fa-globe", "site-button"},
	} {
		href, ok := safeHref(l.href)
		if !ok {
			continue
		}
		if row == nil {
			row = dom.El("div", dom.Class("paper-links"))
		}
		dom.Append(row, dom.LinkButton(p.env.text(l.key, lang), href, l.icon, l.class))
	}
	return row
}

func (p *Publications) patent(item content.Patent) (dom.Module, error) {
	m := dom.NewModule("patent", "patent-module")
	row, cols, err := dom.Columns(1, nil, []string{"patent-info-column"})
	if err != nil {
		return m, err
	}
	m.Add(dom.Header(item.Title, "fas fa-file-pdf"), row)

	number := esc(item.Number)
	if href, ok := safeHref(item.Link); ok {
		number = fmt.Sprintf(`<a href="%s" target="_blank">%s</a>`, esc(href), number)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<p>%s</p>", esc(item.Authors))
	parts := make([]string, 0, 3)
	if item.Type != "" {
		parts = append(parts, "<strong>"+esc(item.Type)+"</strong>")
	}
	if item.Number != "" {
		parts = append(parts, number)
	}
	if item.Date != "" {
		parts = append(parts, esc(item.Date))
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, "<p>%s</p>", strings.Join(parts, ", "))
	}

	body, err := p.env.body("patent-info", b.String())
	if err != nil {
		return m, err
	}
	dom.Append(cols[0], body)
	return m, nil
}
