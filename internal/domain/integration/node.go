package integration

import (
	"strconv"
	"strings"
)

// NodeKind tags the variant held by a Node
type NodeKind uint8

const (
	NodeNull NodeKind = iota
	NodeScalar
	NodeArray
	NodeObject
)

// Field is a named child of an object node. Fields keep document order.
type Field struct {
	Key   string
	Value Node
}

// Node is a neutral document tree decoded from JSON or XML response bodies.
// Scalars keep their textual form; numbers are not interpreted until asked.
type Node struct {
	kind   NodeKind
	scalar string
	items  []Node
	fields []Field
}

// Null returns an empty node
func Null() Node { return Node{} }

// Scalar returns a leaf node
func Scalar(s string) Node { return Node{kind: NodeScalar, scalar: s} }

// Array returns a list node
func Array(items ...Node) Node { return Node{kind: NodeArray, items: items} }

// Object returns a map node
func Object(fields ...Field) Node { return Node{kind: NodeObject, fields: fields} }

func (n Node) Kind() NodeKind  { return n.kind }
func (n Node) IsNull() bool    { return n.kind == NodeNull }
func (n Node) Items() []Node   { return n.items }
func (n Node) Fields() []Field { return n.fields }

// Text returns the scalar value. Objects decoded from XML elements that carry
// both attributes and text expose the text under "#text".
func (n Node) Text() (string, bool) {
	switch n.kind {
	case NodeScalar:
		return n.scalar, true
	case NodeObject:
		if t, ok := n.Get("#text"); ok {
			return t.Text()
		}
	}
	return "", false
}

// Get returns the first field named key
func (n Node) Get(key string) (Node, bool) {
	for _, f := range n.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Node{}, false
}

// Int interprets the node's text as an integer. Decimal forms with a zero
// fraction ("42.0") are accepted.
func (n Node) Int() (int64, bool) {
	s, ok := n.Text()
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// FindFirst searches the tree for the first field named key. An object's own
// fields are checked before its descendants; siblings are visited in
// document order.
func (n Node) FindFirst(key string) (Node, bool) {
	var found Node
	ok := n.walk(key, func(v Node) bool {
		found = v
		return true
	})
	return found, ok
}

// FindID returns the first field named key whose value is a positive integer.
// Non-numeric matches are skipped, so a stray "id" attribute or empty element
// does not hide a usable one deeper in the tree.
func (n Node) FindID(key string) (int64, bool) {
	var id int64
	ok := n.walk(key, func(v Node) bool {
		if parsed, isInt := v.Int(); isInt && parsed > 0 {
			id = parsed
			return true
		}
		return false
	})
	return id, ok
}

func (n Node) walk(key string, accept func(Node) bool) bool {
	switch n.kind {
	case NodeObject:
		for _, f := range n.fields {
			if f.Key == key && accept(f.Value) {
				return true
			}
		}
		for _, f := range n.fields {
			if f.Value.walk(key, accept) {
				return true
			}
		}
	case NodeArray:
		for _, item := range n.items {
			if item.walk(key, accept) {
				return true
			}
		}
	}
	return false
}
