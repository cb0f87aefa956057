// Package dom provides the in-process host display surface the view engine
// renders into: an HTML document tree with CSS-selector queries and the
// small set of splice operations the render pipeline needs.
//
// The document is a single-writer shared resource. The engine never clones
// it; commits mutate it in place.
package dom

import (
	"fmt"
	"strings"

	"github.com/ericchiang/css"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document wraps a parsed HTML tree and serves as the attachment target for
// a view tree.
type Document struct {
	root *html.Node
}

// Parse parses a complete HTML document.
func Parse(markup string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return &Document{root: root}, nil
}

// MustParse parses markup and panics on error. For fixtures and tests.
func MustParse(markup string) *Document {
	doc, err := Parse(markup)
	if err != nil {
		panic(err)
	}
	return doc
}

// Root returns the document root node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the document's body element, or nil if the tree has none.
func (d *Document) Body() *html.Node {
	var body *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return false
		}
		return true
	})
	return body
}

// Query returns the first node in the document matching the CSS selector,
// or nil when nothing matches.
func (d *Document) Query(selector string) (*html.Node, error) {
	return Query(d.root, selector)
}

// String serializes the document back to markup.
func (d *Document) String() (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, d.root); err != nil {
		return "", fmt.Errorf("serializing document: %w", err)
	}
	return sb.String(), nil
}

// Query returns the first node under scope matching the CSS selector, or
// nil when nothing matches. The scope node itself is a candidate.
func Query(scope *html.Node, selector string) (*html.Node, error) {
	if scope == nil {
		return nil, nil
	}
	sel, err := css.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("parsing selector %q: %w", selector, err)
	}
	matches := sel.Select(scope)
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

// walk visits n and its descendants depth-first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}
