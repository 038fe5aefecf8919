// Package cdp implements tree.Tree against a Chromium DevTools Protocol
// Accessibility domain session. Most mainstream chat clients (Slack,
// Discord, Microsoft Teams desktop) embed a Chromium renderer, so driving
// the CDP accessibility tree of that renderer is a concrete, real
// implementation of the otherwise-external "platform accessibility API"
// the specification treats as out of scope. It is grounded on the
// teacher's chromedp usage in internal/web/web.go, generalized from DOM
// scraping to the Accessibility domain.
package cdp

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/chromedp"

	"github.com/kimjune01/slunk/internal/accessibility/tree"
)

// Adapter drives a live Chromium accessibility tree over CDP.
type Adapter struct {
	allocCtx   context.Context
	allocCause context.CancelFunc
	browserCtx context.Context
	browserCancel context.CancelFunc
	bounds     tree.Bounds
	readDeadline time.Duration
}

// Options configures Adapter construction.
type Options struct {
	// RemoteURL is a ws:// DevTools endpoint for an already-running
	// Chromium process (e.g. the chat client launched with
	// --remote-debugging-port). When empty, chromedp launches its own
	// headless Chromium instead, useful for local development.
	RemoteURL    string
	Bounds       tree.Bounds
	ReadDeadline time.Duration
}

// New connects to (or launches) a Chromium instance and returns an Adapter.
func New(ctx context.Context, opt Options) (*Adapter, error) {
	if opt.Bounds == (tree.Bounds{}) {
		opt.Bounds = tree.DefaultBounds()
	}
	if opt.ReadDeadline == 0 {
		opt.ReadDeadline = 2 * time.Second
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opt.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opt.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("cdp: start browser session: %w", err)
	}

	return &Adapter{
		allocCtx:      allocCtx,
		allocCause:    allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		bounds:        opt.Bounds,
		readDeadline:  opt.ReadDeadline,
	}, nil
}

// Root fetches the full accessibility tree for the current page and
// returns its top-level node wrapped as a tree.Element.
func (a *Adapter) Root(ctx context.Context) (tree.Element, error) {
	readCtx, cancel := tree.WithDeadline(ctx, a.readDeadline)
	defer cancel()

	nodes, err := accessibility.GetFullAXTree().Do(chromedp.FromContext(a.browserCtx).Target.WithContext(readCtx))
	if err != nil {
		return nil, tree.DeadlineExceeded(readCtx, fmt.Errorf("cdp: fetch accessibility tree: %w", err))
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("cdp: accessibility tree is empty")
	}
	byID := make(map[accessibility.AXNodeID]*accessibility.AXNode, len(nodes))
	for _, n := range nodes {
		byID[n.NodeID] = n
	}
	return &element{node: nodes[0], byID: byID, bounds: a.bounds, deadline: a.readDeadline}, nil
}

// Close shuts down the browser session.
func (a *Adapter) Close() error {
	a.browserCancel()
	a.allocCause()
	return nil
}

type element struct {
	node     *accessibility.AXNode
	byID     map[accessibility.AXNodeID]*accessibility.AXNode
	bounds   tree.Bounds
	deadline time.Duration
	parentID accessibility.AXNodeID
}

func (e *element) Role(ctx context.Context) (string, error) {
	if e.node.Role == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", e.node.Role.Value), nil
}

func (e *element) Subrole(ctx context.Context) (string, error) {
	for _, p := range e.node.Properties {
		if p.Name == "subrole" && p.Value != nil {
			return fmt.Sprintf("%v", p.Value.Value), nil
		}
	}
	return "", nil
}

func (e *element) Attribute(ctx context.Context, name string) (any, error) {
	for _, p := range e.node.Properties {
		if string(p.Name) == name && p.Value != nil {
			return p.Value.Value, nil
		}
	}
	return nil, nil
}

func (e *element) Value(ctx context.Context) (string, error) {
	if e.node.Value == nil {
		return "", nil
	}
	s := fmt.Sprintf("%v", e.node.Value.Value)
	if err := tree.CheckValueLength(e.bounds, len(s)); err != nil {
		return "", err
	}
	return s, nil
}

func (e *element) Children(ctx context.Context) ([]tree.Element, error) {
	if err := tree.CheckChildCount(e.bounds, len(e.node.ChildIds)); err != nil {
		return nil, err
	}
	out := make([]tree.Element, 0, len(e.node.ChildIds))
	for _, id := range e.node.ChildIds {
		child, ok := e.byID[id]
		if !ok {
			continue
		}
		out = append(out, &element{node: child, byID: e.byID, bounds: e.bounds, deadline: e.deadline, parentID: e.node.NodeID})
	}
	return out, nil
}

func (e *element) Parent(ctx context.Context, depth int) (tree.Element, error) {
	cur := e
	for i := 0; i < depth; i++ {
		parent, ok := cur.byID[cur.parentID]
		if !ok {
			return nil, fmt.Errorf("cdp: requested ancestor beyond known tree")
		}
		var grandparentID accessibility.AXNodeID
		for id, n := range cur.byID {
			for _, c := range n.ChildIds {
				if c == parent.NodeID {
					grandparentID = id
				}
			}
		}
		cur = &element{node: parent, byID: cur.byID, bounds: cur.bounds, deadline: cur.deadline, parentID: grandparentID}
	}
	return cur, nil
}
