package dom

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestDocument_Skeleton(t *testing.T) {
	d := NewDocument("en", "Ada")
	Append(d.Body(), El("main", ID("main")))

	var sb strings.Builder
	require.NoError(t, d.Render(&sb))
	out := sb.String()

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, `<html lang="en">`)
	assert.Contains(t, out, "<title>Ada</title>")
	assert.Contains(t, out, `<main id="main"></main>`)

	d.SetLang("zh")
	assert.Equal(t, 1, d.Find(`html[lang="zh"]`).Length())
}

func TestDocument_Require(t *testing.T) {
	d := NewDocument("en", "")
	_, err := d.Require("nope")
	assert.True(t, errors.Is(err, ErrMissingTarget))

	Append(d.Body(), El("div", ID("yes")))
	n, err := d.Require("yes")
	require.NoError(t, err)
	assert.Equal(t, "div", n.Data)

	outer, err := d.OuterHTML("yes")
	require.NoError(t, err)
	assert.Equal(t, `<div id="yes"></div>`, outer)
}

func TestClasses(t *testing.T) {
	n := El("div", Class("a", "", "b"))
	assert.Equal(t, []string{"a", "b"}, Classes(n))

	AddClass(n, "c")
	AddClass(n, "a")
	assert.Equal(t, []string{"a", "b", "c"}, Classes(n))

	RemoveClass(n, "b")
	assert.False(t, HasClass(n, "b"))

	ToggleClass(n, "active", true)
	assert.True(t, HasClass(n, "active"))
	ToggleClass(n, "active", false)
	ToggleClass(n, "a", false)
	ToggleClass(n, "c", false)
	_, ok := Attr(n, "class")
	assert.False(t, ok, "empty class attribute is dropped")
}

func TestSetTextAndHTML(t *testing.T) {
	n := El("div")
	SetText(n, "<b>not markup</b>")
	out, _ := Render(n)
	assert.Equal(t, "<div>&lt;b&gt;not markup&lt;/b&gt;</div>", out)

	require.NoError(t, SetHTML(n, `<p>one</p><p>two <a href="x">link</a></p>`))
	assert.Equal(t, "onetwo link", TextContent(n))
	assert.Len(t, FindAll(n, func(e *html.Node) bool { return e.Data == "p" }), 2)

	SetText(n, "")
	assert.Nil(t, n.FirstChild)
}

func TestHidden(t *testing.T) {
	n := El("section")
	SetHidden(n, true)
	assert.True(t, IsHidden(n))
	SetHidden(n, false)
	assert.False(t, IsHidden(n))
}

func TestModule(t *testing.T) {
	m := NewModule("paper", "paper-module")
	row, cols, err := Columns(2, []int{1, 2}, []string{"paper-logo-column", "paper-info-column"})
	require.NoError(t, err)
	m.Add(Header("A Title", "fas fa-file-alt"), row)
	Append(cols[0], Image("images/publication/a.png", "A Title image", "200px"))

	out, err := Render(m.Container)
	require.NoError(t, err)

	assert.Contains(t, out, `class="module-container paper paper-module"`)
	assert.Contains(t, out, `<div class="module-left-border"></div>`)
	assert.Contains(t, out, `<h3 class="module-title"><i class="fas fa-file-alt"></i><span>A Title</span></h3>`)
	assert.Contains(t, out, `class="module-column column-1 paper-logo-column" style="flex: 1"`)
	assert.Contains(t, out, `class="module-column column-2 paper-info-column" style="flex: 2"`)
	assert.Contains(t, out, `src="images/publication/a.png"`)
}

func TestColumns_Count(t *testing.T) {
	for _, n := range []int{0, 4} {
		_, _, err := Columns(n, nil, nil)
		assert.ErrorIs(t, err, ErrColumnCount)
	}
	_, cols, err := Columns(3, nil, nil)
	require.NoError(t, err)
	assert.Len(t, cols, 3)
}

func TestLinkButton(t *testing.T) {
	out, err := Render(LinkButton("Code", "https://example.com", "fas fa-code", "code-button"))
	require.NoError(t, err)
	assert.Equal(t,
		`<a class="module-button code-button" href="https://example.com" target="_blank" rel="noopener noreferrer"><i class="fas fa-code"></i><span>Code</span></a>`,
		out)
}
