package tallyxml

import (
	"strings"

	"github.com/beevik/etree"
)

// Node is a read-only view of one element of a parsed export.
// Methods are safe on a nil *Node and return zero values.
type Node struct {
	el *etree.Element
}

// Tag returns the element tag, including any prefix
func (n *Node) Tag() string {
	if n == nil {
		return ""
	}
	return n.el.FullTag()
}

// Value returns the element's own trimmed text
func (n *Node) Value() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.el.Text())
}

// InnerText returns the trimmed text of the element and all its descendants
func (n *Node) InnerText() string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	collectText(n.el, &b)
	return strings.TrimSpace(b.String())
}

func collectText(el *etree.Element, b *strings.Builder) {
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			b.WriteString(t.Data)
		case *etree.Element:
			collectText(t, b)
		}
	}
}

// Attr returns an attribute value, or "" when absent
func (n *Node) Attr(key string) string {
	if n == nil {
		return ""
	}
	return n.el.SelectAttrValue(key, "")
}

// First returns the first descendant with the tag in document order
func (n *Node) First(tag string) *Node {
	if n == nil {
		return nil
	}
	var found *etree.Element
	walk(n.el, func(e *etree.Element) bool {
		if e.FullTag() == tag {
			found = e
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return &Node{el: found}
}

// FindAll returns every descendant with the tag in document order.
// Matches nested inside a match are included.
func (n *Node) FindAll(tag string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	walk(n.el, func(e *etree.Element) bool {
		if e.FullTag() == tag {
			out = append(out, &Node{el: e})
		}
		return true
	})
	return out
}

// Children returns the direct children with the tag
func (n *Node) Children(tag string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.el.ChildElements() {
		if c.FullTag() == tag {
			out = append(out, &Node{el: c})
		}
	}
	return out
}

// Text returns the trimmed text of the first descendant with the tag
func (n *Node) Text(tag string) string {
	return n.First(tag).Value()
}

// Texts returns the trimmed text of every descendant with the tag
func (n *Node) Texts(tag string) []string {
	nodes := n.FindAll(tag)
	out := make([]string, 0, len(nodes))
	for _, c := range nodes {
		out = append(out, c.Value())
	}
	return out
}

// Has reports whether a descendant with the tag exists
func (n *Node) Has(tag string) bool {
	return n.First(tag) != nil
}

// Name returns the NAME attribute, falling back to the first NAME element
func (n *Node) Name() string {
	if name := strings.TrimSpace(n.Attr("NAME")); name != "" {
		return name
	}
	return n.Text("NAME")
}

// Collection returns the BODY/IMPORTDATA/REQUESTDATA element that holds the
// exported objects, or the node itself when the envelope is missing.
func (n *Node) Collection() *Node {
	if n == nil {
		return nil
	}
	if data := n.First("BODY").First("IMPORTDATA").First("REQUESTDATA"); data != nil {
		return data
	}
	return n
}

// walk visits descendants depth-first in document order until fn returns false
func walk(e *etree.Element, fn func(*etree.Element) bool) bool {
	for _, c := range e.ChildElements() {
		if !fn(c) {
			return false
		}
		if !walk(c, fn) {
			return false
		}
	}
	return true
}
