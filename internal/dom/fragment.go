package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseFragment parses markup in body context and returns a detached
// container element holding the parsed nodes as its children.
func ParseFragment(markup string) (*html.Node, error) {
	ctx := &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing fragment: %w", err)
	}
	container := NewElement("div")
	for _, n := range nodes {
		Detach(n)
		container.AppendChild(n)
	}
	return container, nil
}

// NewElement creates a detached element node.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// Detach unlinks n from its parent, if any.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// ReplaceNode swaps old for replacement in old's parent. replacement is
// detached from any previous parent first. No-op when old has no parent.
func ReplaceNode(old, replacement *html.Node) {
	parent := old.Parent
	if parent == nil {
		return
	}
	Detach(replacement)
	parent.InsertBefore(replacement, old)
	parent.RemoveChild(old)
}

// ReplaceWithChildren replaces old with the children of container, keeping
// their order. Used to splice a prepared child's content over its
// placeholder.
func ReplaceWithChildren(old, container *html.Node) {
	parent := old.Parent
	if parent == nil {
		return
	}
	for container.FirstChild != nil {
		c := container.FirstChild
		container.RemoveChild(c)
		parent.InsertBefore(c, old)
	}
	parent.RemoveChild(old)
}

// MoveChildren detaches every child of from and appends them to to.
func MoveChildren(from, to *html.Node) {
	for from.FirstChild != nil {
		c := from.FirstChild
		from.RemoveChild(c)
		to.AppendChild(c)
	}
}

// Empty removes every child of n.
func Empty(n *html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
}

// FirstElementChild returns n's first child of element type, or nil.
func FirstElementChild(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// ElementChildCount returns the number of element-type children of n.
func ElementChildCount(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			count++
		}
	}
	return count
}

// Attr returns the value of the named attribute on n and whether it is set.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces the named attribute on n.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) (string, error) {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("serializing node: %w", err)
		}
	}
	return sb.String(), nil
}

// OuterHTML serializes n itself.
func OuterHTML(n *html.Node) (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return "", fmt.Errorf("serializing node: %w", err)
	}
	return sb.String(), nil
}
