// Package dom holds the server-side HTML document a visitor sees and the
// helpers renderers use to build and patch it.
package dom

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrMissingTarget is returned when an update needs an element that does
// not exist (yet).
var ErrMissingTarget = errors.New("dom: missing target")

// Document is an HTML page held in memory.
//
// Lookups and mutations do not lock on their own. Callers group them in
// Update or View so one render step never interleaves with another.
type Document struct {
	mu   sync.Mutex
	root *html.Node
	head *html.Node
	body *html.Node
}

// NewDocument creates an empty page with the given title.
func NewDocument(lang, title string) *Document {
	root := &html.Node{Type: html.DocumentNode}
	Append(root, &html.Node{Type: html.DoctypeNode, Data: "html"})

	htmlEl := El("html", A("lang", lang))
	head := El("head")
	Append(head,
		El("meta", A("charset", "utf-8")),
		El("meta", A("name", "viewport"), A("content", "width=device-width, initial-scale=1")),
		Append(El("title"), Text(title)),
	)
	body := El("body")
	Append(htmlEl, head, body)
	Append(root, htmlEl)

	return &Document{root: root, head: head, body: body}
}

// Update runs fn with exclusive access to the document.
func (d *Document) Update(fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn()
}

// View runs fn with exclusive access for reading.
func (d *Document) View(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Head returns the head element.
func (d *Document) Head() *html.Node { return d.head }

// Body returns the body element.
func (d *Document) Body() *html.Node { return d.body }

// ByID returns the element with id, or nil.
func (d *Document) ByID(id string) *html.Node {
	return FindByID(d.body, id)
}

// Require returns the element with id or an error wrapping ErrMissingTarget.
func (d *Document) Require(id string) (*html.Node, error) {
	if n := d.ByID(id); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("%w: #%s", ErrMissingTarget, id)
}

// Find runs a CSS selector over the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return goquery.NewDocumentFromNode(d.root).Find(selector)
}

// SetLang updates the lang attribute of the html element.
func (d *Document) SetLang(lang string) {
	if d.body.Parent != nil {
		SetAttr(d.body.Parent, "lang", lang)
	}
}

// Render writes the whole page.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// OuterHTML renders the element with id. The caller must hold the lock.
func (d *Document) OuterHTML(id string) (string, error) {
	n, err := d.Require(id)
	if err != nil {
		return "", err
	}
	return Render(n)
}
