package tree

import "context"

// Node is a plain in-memory tree node used by Fake. It is the concrete
// type tests build fixtures out of; FakeElement wraps *Node to satisfy
// Element.
type Node struct {
	RoleV      string
	SubroleV   string
	ValueV     string
	Attributes map[string]any
	ChildrenV  []*Node
	parent     *Node
}

// NewNode constructs a Node and wires child->parent back-pointers.
func NewNode(role string, children ...*Node) *Node {
	n := &Node{RoleV: role, Attributes: map[string]any{}}
	for _, c := range children {
		c.parent = n
	}
	n.ChildrenV = children
	return n
}

// WithValue sets the node's text value and returns it for chaining.
func (n *Node) WithValue(v string) *Node { n.ValueV = v; return n }

// WithSubrole sets the node's subrole and returns it for chaining.
func (n *Node) WithSubrole(s string) *Node { n.SubroleV = s; return n }

// WithAttr sets an attribute and returns the node for chaining.
func (n *Node) WithAttr(name string, value any) *Node {
	n.Attributes[name] = value
	return n
}

// Fake is a Tree backed entirely by an in-memory Node graph: no external
// process, no deadlines that can actually fire. It exists so C2 and its
// tests never depend on a live chat client or a running browser.
type Fake struct {
	RootNode *Node
	Bounds   Bounds
}

// NewFake constructs a Fake tree with default bounds.
func NewFake(root *Node) *Fake {
	return &Fake{RootNode: root, Bounds: DefaultBounds()}
}

func (f *Fake) Root(ctx context.Context) (Element, error) {
	if f.RootNode == nil {
		return nil, unavailable(nil, "fake tree has no root")
	}
	return &fakeElement{n: f.RootNode, bounds: f.Bounds}, nil
}

func (f *Fake) Close() error { return nil }

type fakeElement struct {
	n      *Node
	bounds Bounds
}

func (e *fakeElement) Role(ctx context.Context) (string, error) { return e.n.RoleV, nil }

func (e *fakeElement) Subrole(ctx context.Context) (string, error) { return e.n.SubroleV, nil }

func (e *fakeElement) Attribute(ctx context.Context, name string) (any, error) {
	return e.n.Attributes[name], nil
}

func (e *fakeElement) Value(ctx context.Context) (string, error) {
	if err := CheckValueLength(e.bounds, len(e.n.ValueV)); err != nil {
		return "", err
	}
	return e.n.ValueV, nil
}

func (e *fakeElement) Children(ctx context.Context) ([]Element, error) {
	if err := CheckChildCount(e.bounds, len(e.n.ChildrenV)); err != nil {
		return nil, err
	}
	out := make([]Element, len(e.n.ChildrenV))
	for i, c := range e.n.ChildrenV {
		out[i] = &fakeElement{n: c, bounds: e.bounds}
	}
	return out, nil
}

func (e *fakeElement) Parent(ctx context.Context, depth int) (Element, error) {
	n := e.n
	for i := 0; i < depth; i++ {
		if n.parent == nil {
			return nil, unavailable(nil, "requested ancestor beyond tree root")
		}
		n = n.parent
	}
	return &fakeElement{n: n, bounds: e.bounds}, nil
}
