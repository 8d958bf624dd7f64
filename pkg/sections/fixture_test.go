package sections

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/scholarpage/pkg/content"
	"github.com/gabrielmiguelok/scholarpage/pkg/dom"
	"github.com/gabrielmiguelok/scholarpage/pkg/i18n"
	"github.com/gabrielmiguelok/scholarpage/pkg/tabs"
)

var fixedNow = time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC)

func englishPayloads() map[content.Type]content.Payload {
	return map[content.Type]content.Payload{
		content.TypeInfo: content.Info{
			Name:          "Ada Lovelace",
			Address:       "London",
			Institution:   "Analytical Society",
			GoogleScholar: "https://scholar.example.com/ada",
			GitHub:        "https://github.com/ada",
			Email:         "ada@example.com",
		},
		content.TypeIntro: content.Intro{Text: "First paragraph.\n\nSecond <em>paragraph</em>.<script>alert(1)</script>"},
		content.TypeNews: content.NewsList{
			{Time: "2021-05-01", Content: "Old news"},
			{Time: "2023-01-10", Content: `Newest <a href="https://example.com">news</a>`},
			{Time: "2022-07-15", Content: "Middle news"},
		},
		content.TypeEducation: content.EducationList{
			{School: "Cambridge", LogoSrc: "cam.png", Details: []content.EducationDetail{
				{Degree: "PhD", Major: "Mathematics", College: "Trinity", Time: "1830-1833", Tutor: "De Morgan"},
				{Degree: "BSc", Major: "Mathematics", College: "Trinity", Time: "1826-1830"},
			}},
		},
		content.TypeEmployment: content.EmploymentList{},
		content.TypeHonors: content.HonorList{
			{Award: "Best Notes", Unit: "Royal Society", Time: "1843"},
		},
		content.TypeReviewer: content.ReviewerList{
			{Conference: "A", Year: "2020"},
			{Journal: "B", Year: "2021"},
			{Conference: "A", Year: "2019"},
			{Conference: "A", Year: "2020"},
		},
		content.TypePaper: content.PaperIndex{
			"2022": {{Title: "Engines", Authors: "A. Lovelace", Conference: "CONF", Abbr: "C22", Location: "Paris", PaperLink: "https://example.com/p.pdf", CodeLink: "javascript:alert(1)"}},
			"2023": {{Title: "Notes", Authors: "A. Lovelace", Journal: "J", Volume: "7", Type: "Oral"}},
		},
	}
}

func chinesePayloads() map[content.Type]content.Payload {
	return map[content.Type]content.Payload{
		content.TypeInfo:  content.Info{Name: "阿达", UTC: "-5"},
		content.TypeIntro: content.Intro{Text: "中文简介"},
		content.TypeNews:  content.NewsList{{Time: "2023-01-10", Content: "新闻"}},
		content.TypeTeaching: content.TeachingList{
			{Code: "MA101", Course: "微积分", Identity: "助教", School: "剑桥", Season: "秋季", Year: "2022"},
		},
		content.TypePatent: content.PatentList{
			{Title: "差分机", Authors: "阿达", Type: "发明专利", Number: "CN1", Link: "https://example.com/cn1", Date: "2020-01-01"},
		},
	}
}

// newSkeleton builds the main container with hidden sections and the nav
// links, as the page bootstrap does.
func newSkeleton() *dom.Document {
	d := dom.NewDocument("en", "test")
	nav := dom.El("div", dom.Class("nav-links"))
	main := dom.El("main", dom.ID("main-container"))
	for _, id := range Order {
		dom.Append(nav, dom.El("a", dom.Class("nav-link")))
		s := dom.El("section", dom.ID(id), dom.Class("content-section"))
		dom.SetHidden(s, true)
		dom.Append(main, s)
	}
	dom.Append(d.Body(), nav, main)
	return d
}

type fixture struct {
	doc    *dom.Document
	store  *content.Store
	env    *Env
	states *tabs.ActiveStates
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := content.NewStore()
	store.SetAll("en", englishPayloads())
	store.SetAll("zh", chinesePayloads())

	doc := newSkeleton()
	return &fixture{
		doc:   doc,
		store: store,
		env: &Env{
			Doc:     doc,
			Store:   store,
			Catalog: i18n.Default(),
			Now:     func() time.Time { return fixedNow },
		},
		states: tabs.NewActiveStates(),
	}
}

func render(t *testing.T, f *fixture, r Renderer, lang string) {
	t.Helper()
	require.NoError(t, f.doc.Update(func() error { return r.UpdateContent(lang) }))
}

func query(t *testing.T, f *fixture) *goquery.Document {
	t.Helper()
	var out string
	f.doc.View(func() {
		var err error
		out, err = dom.Render(f.doc.Root())
		require.NoError(t, err)
	})
	q, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	return q
}

func sectionHTML(t *testing.T, f *fixture, id string) string {
	t.Helper()
	var out string
	f.doc.View(func() {
		var err error
		out, err = f.doc.OuterHTML(id)
		require.NoError(t, err)
	})
	return out
}
