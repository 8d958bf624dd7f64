package chrome

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/scholarpage/pkg/dom"
	"github.com/gabrielmiguelok/scholarpage/pkg/i18n"
	"github.com/gabrielmiguelok/scholarpage/pkg/state"
)

func snapshot(t *testing.T, d *dom.Document) *goquery.Document {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, d.Render(&sb))
	q, err := goquery.NewDocumentFromReader(strings.NewReader(sb.String()))
	require.NoError(t, err)
	return q
}

func newChrome(multi bool) (*dom.Document, *Chrome) {
	d := dom.NewDocument("en", "test")
	dom.Append(d.Body(), dom.El("main", dom.ID("main-container")))
	c := New(d, i18n.Default(), multi,
		WithNow(func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }))
	c.Mount()
	return d, c
}

func TestMount_Layout(t *testing.T) {
	d, c := newChrome(true)
	c.Mount()

	q := snapshot(t, d)
	assert.Equal(t, 1, q.Find("header#site-header").Length(), "mounted once")
	assert.Equal(t, "site-header", q.Find("body").Children().First().AttrOr("id", ""))
	assert.Equal(t, "site-footer", q.Find("body").Children().Last().AttrOr("id", ""))

	links := q.Find(".nav-links a")
	require.Equal(t, 3, links.Length())
	assert.Equal(t, "experiences-section", links.Eq(1).AttrOr("lv-value-section", ""))
	assert.Equal(t, 1, q.Find("#language-switch[lv-click=toggle_language]").Length())
}

func TestMount_SingleLanguageHasNoSwitch(t *testing.T) {
	d, c := newChrome(false)
	c.UpdateLanguageSwitch("en")

	q := snapshot(t, d)
	assert.Equal(t, 0, q.Find("#language-switch").Length())
	assert.Equal(t, 1, q.Find("#theme-switch").Length())
}

func TestUpdates_FollowLanguage(t *testing.T) {
	d, c := newChrome(true)
	for _, lang := range []string{"en", "zh"} {
		c.UpdateNavLabels(lang)
		c.UpdateFooter(lang)
		c.UpdateLanguageSwitch(lang)
	}

	q := snapshot(t, d)
	var labels []string
	q.Find(".nav-links a").Each(func(_ int, s *goquery.Selection) { labels = append(labels, s.Text()) })
	assert.Equal(t, []string{"主页", "经历", "出版物"}, labels)
	assert.Equal(t, "EN", q.Find("#language-switch").Text())

	copyright := q.Find("#copyright-text")
	assert.True(t, strings.HasPrefix(copyright.Text(), "© 2025 "), copyright.Text())
	assert.Contains(t, copyright.Text(), "远行工作室")
	assert.Equal(t, "_blank", copyright.Find("a").AttrOr("target", ""))
}

func TestDisplayName(t *testing.T) {
	d, c := newChrome(true)
	c.SetDisplayName("  Ada Lovelace ")
	assert.Equal(t, "Ada Lovelace", c.DisplayName())
	assert.Equal(t, "Ada Lovelace", snapshot(t, d).Find("#nav-logo-name").Text())
}

func TestApplyTheme(t *testing.T) {
	d, c := newChrome(true)

	c.ApplyTheme("")
	q := snapshot(t, d)
	assert.True(t, q.Find("body").HasClass("dark-theme"))
	assert.Equal(t, 1, q.Find("#theme-switch i.fa-sun").Length())
	assert.Equal(t, state.ThemeDark, c.Theme())

	c.ApplyTheme(state.ThemeLight)
	q = snapshot(t, d)
	assert.True(t, q.Find("body").HasClass("light-theme"))
	assert.False(t, q.Find("body").HasClass("dark-theme"))
	assert.Equal(t, 1, q.Find("#theme-switch i.fa-moon").Length())
	assert.Equal(t, state.ThemeLight, c.Theme())
}
