// Package tree abstracts a read-only accessibility tree: element
// attributes, children, role/subrole, and value, with timeout-bounded
// reads. It is the Go-side half of C1; the platform accessibility API
// itself is an external collaborator the spec explicitly puts out of
// scope — this package owns only the boundary and its bounds.
package tree

import (
	"context"

	"github.com/kimjune01/slunk/internal/slunkerr"
)

// Bounds caps the size of trees this package will walk, protecting the
// walker from runaway UI nodes (e.g. a virtualized list that reports an
// unbounded child count, or a value blob pasted into a message box).
type Bounds struct {
	MaxChildren int
	MaxValue    int
}

// DefaultBounds matches the specification's literal defaults.
func DefaultBounds() Bounds {
	return Bounds{MaxChildren: 1000, MaxValue: 1_000_000}
}

// Element is an opaque, short-lived handle into the accessibility tree.
// Implementations must treat Elements as invalid outside the call that
// produced them; nothing in this package stores an Element across
// operations.
type Element interface {
	// Role returns the element's accessibility role (e.g. "list", "group").
	Role(ctx context.Context) (string, error)
	// Subrole returns a role refinement, or "" if none applies.
	Subrole(ctx context.Context) (string, error)
	// Attribute looks up a named attribute, returning (nil, nil) if absent.
	Attribute(ctx context.Context, name string) (any, error)
	// Value returns the element's text value, or "" if it has none.
	// Implementations must reject values longer than the adapter's
	// configured MaxValue with a TreeUnavailable-kind error.
	Value(ctx context.Context) (string, error)
	// Children returns the element's direct children in document order.
	// Implementations must reject more than MaxChildren with a
	// TreeUnavailable-kind error rather than silently truncating.
	Children(ctx context.Context) ([]Element, error)
	// Parent walks up depth ancestors; depth=0 returns the element itself.
	Parent(ctx context.Context, depth int) (Element, error)
}

// Tree is the entry point an adapter implements: it resolves a root handle
// for a running application process.
type Tree interface {
	// Root returns the root element of the focused window, or a
	// TreeUnavailable error if no window is focused or the process is gone.
	Root(ctx context.Context) (Element, error)
	// Close releases any resources (a CDP session, a cached AX tree snapshot)
	// held by the adapter.
	Close() error
}

// unavailable builds a TreeUnavailable error, the one error kind this
// package's callers are expected to see from Tree/Element methods.
func unavailable(cause error, msg string) error {
	return slunkerr.Wrap(slunkerr.KindTreeUnavailable, cause, msg,
		"retry on the next observation tick", "confirm the chat window still has focus")
}
