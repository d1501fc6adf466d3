package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Element is the Document implementation of Node. The zero value is a
// detached, empty node; every accessor on it returns the zero result.
type Element struct {
	n   *html.Node
	doc *Document
}

var _ Node = Element{}

// Tag implements Node.
func (e Element) Tag() string {
	if e.n == nil || e.n.Type != html.ElementNode {
		return ""
	}
	return e.n.Data
}

// Attr implements Node.
func (e Element) Attr(name string) (string, bool) {
	if e.n == nil {
		return "", false
	}
	for _, a := range e.n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// AttrNames implements Node.
func (e Element) AttrNames() []string {
	if e.n == nil {
		return nil
	}
	names := make([]string, 0, len(e.n.Attr))
	for _, a := range e.n.Attr {
		names = append(names, a.Key)
	}
	return names
}

// BackgroundImage implements Node. It resolves the inline style only; the
// in-memory document has no stylesheet cascade.
func (e Element) BackgroundImage() string {
	style, ok := e.Attr("style")
	if !ok {
		return ""
	}
	return backgroundImage(style)
}

// Children implements Node.
func (e Element) Children() []Node {
	if e.n == nil {
		return nil
	}
	var out []Node
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, Element{n: c, doc: e.doc})
		}
	}
	return out
}

// IsConnected implements Node.
func (e Element) IsConnected() bool {
	if e.n == nil || e.doc == nil {
		return false
	}
	top := e.n
	for top.Parent != nil {
		top = top.Parent
	}
	return top == e.doc.root
}

// Parent 返回父元素，已分离或位于根部时返回 false
func (e Element) Parent() (Element, bool) {
	if e.n == nil || e.n.Parent == nil || e.n.Parent.Type != html.ElementNode {
		return Element{}, false
	}
	return Element{n: e.n.Parent, doc: e.doc}, true
}

// ID 返回 id 属性
func (e Element) ID() string {
	v, _ := e.Attr("id")
	return v
}

// backgroundImage extracts the background image from an inline style
// declaration list.
func backgroundImage(style string) string {
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "background-image":
			return value
		case "background":
			if strings.Contains(strings.ToLower(value), "url(") {
				return value
			}
		}
	}
	return ""
}
