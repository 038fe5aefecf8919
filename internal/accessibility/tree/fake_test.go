package tree

import (
	"context"
	"strings"
	"testing"
)

func TestFakeTreeWalk(t *testing.T) {
	child := NewNode("text").WithValue("hello")
	root := NewNode("group", child)
	ft := NewFake(root)

	r, err := ft.Root(context.Background())
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	role, _ := r.Role(context.Background())
	if role != "group" {
		t.Fatalf("expected role group, got %s", role)
	}
	children, err := r.Children(context.Background())
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(children))
	}
	v, _ := children[0].Value(context.Background())
	if v != "hello" {
		t.Fatalf("expected hello, got %q", v)
	}
	p, err := children[0].Parent(context.Background(), 1)
	if err != nil {
		t.Fatalf("Parent: %v", err)
	}
	prole, _ := p.Role(context.Background())
	if prole != "group" {
		t.Fatalf("expected parent role group, got %s", prole)
	}
}

func TestFakeTreeRejectsOversizedChildren(t *testing.T) {
	children := make([]*Node, 0, 5)
	for i := 0; i < 5; i++ {
		children = append(children, NewNode("item"))
	}
	root := NewNode("list", children...)
	ft := &Fake{RootNode: root, Bounds: Bounds{MaxChildren: 2, MaxValue: 100}}

	r, _ := ft.Root(context.Background())
	_, err := r.Children(context.Background())
	if err == nil {
		t.Fatalf("expected error for oversized children")
	}
	if !strings.Contains(err.Error(), "TreeUnavailable") {
		t.Fatalf("expected TreeUnavailable kind, got %v", err)
	}
}

func TestFakeTreeRejectsOversizedValue(t *testing.T) {
	root := NewNode("text").WithValue(strings.Repeat("a", 10))
	ft := &Fake{RootNode: root, Bounds: Bounds{MaxChildren: 1000, MaxValue: 5}}

	r, _ := ft.Root(context.Background())
	_, err := r.Value(context.Background())
	if err == nil {
		t.Fatalf("expected error for oversized value")
	}
}
