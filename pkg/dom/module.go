package dom

import (
	"errors"
	"strconv"

	"golang.org/x/net/html"
)

// ErrColumnCount is returned by Columns for layouts outside 1..3 columns.
var ErrColumnCount = errors.New("dom: column count must be between 1 and 3")

// Module is a content card: a container with a left border and a content
// wrapper that receives the header, columns and body.
type Module struct {
	Container *html.Node
	Content   *html.Node
}

// NewModule builds div.module-container.<kind>.<class>.
func NewModule(kind, class string) Module {
	container := El("div", Class("module-container", kind, class))
	content := El("div", Class("module-content-wrapper"))
	Append(container, El("div", Class("module-left-border")), content)
	return Module{Container: container, Content: content}
}

// Add appends nodes to the content wrapper.
func (m Module) Add(nodes ...*html.Node) Module {
	Append(m.Content, nodes...)
	return m
}

// Header builds the module title row with an icon.
func Header(title, iconClass string) *html.Node {
	h3 := El("h3", Class("module-title"))
	if iconClass != "" {
		Append(h3, El("i", Class(iconClass)))
	}
	Append(h3, Append(El("span"), Text(title)))

	return Append(El("div", Class("module-header")), Append(El("div"), h3))
}

// Columns builds a flex row. widths and classes are optional per column.
func Columns(count int, widths []int, classes []string) (*html.Node, []*html.Node, error) {
	if count < 1 || count > 3 {
		return nil, nil, ErrColumnCount
	}

	row := El("div", Class("module-columns"))
	cols := make([]*html.Node, count)
	for i := range count {
		var extra string
		if i < len(classes) {
			extra = classes[i]
		}
		col := El("div", Class("module-column", "column-"+strconv.Itoa(i+1), extra))
		if i < len(widths) && widths[i] > 0 {
			SetAttr(col, "style", "flex: "+strconv.Itoa(widths[i]))
		}
		cols[i] = col
		Append(row, col)
	}
	return row, cols, nil
}

// Image builds a centered image block.
func Image(src, alt, width string) *html.Node {
	img := El("img", Class("module-image"), A("src", src), A("alt", alt), A("loading", "lazy"))
	if width != "" {
		SetAttr(img, "style", "width: "+width+"; height: auto")
	}
	return Append(El("div", Class("module-image-container")), img)
}

// Content builds div.module-content.<class> from trusted markup.
func Content(class, fragment string) (*html.Node, error) {
	n := El("div", Class("module-content", class))
	if err := SetHTML(n, fragment); err != nil {
		return nil, err
	}
	return n, nil
}

// LinkButton builds an outbound button that opens in a new tab.
func LinkButton(text, href, iconClass, class string) *html.Node {
	a := El("a",
		Class("module-button", class),
		A("href", href),
		A("target", "_blank"),
		A("rel", "noopener noreferrer"),
	)
	if iconClass != "" {
		Append(a, El("i", Class(iconClass)))
	}
	return Append(a, Append(El("span"), Text(text)))
}

// Paragraph builds a <p> holding text.
func Paragraph(text string) *html.Node {
	return Append(El("p"), Text(text))
}
