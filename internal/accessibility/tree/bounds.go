package tree

import (
	"context"
	"fmt"
	"time"

	"github.com/kimjune01/slunk/internal/slunkerr"
)

// WithDeadline attaches a per-operation deadline to ctx, bounding every
// tree read as the specification requires. If the parent context already
// carries an earlier deadline, that earlier one wins.
func WithDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

// CheckChildCount rejects child counts beyond b.MaxChildren, protecting the
// walker from a UI node that (falsely or not) reports an unbounded number
// of children.
func CheckChildCount(b Bounds, n int) error {
	if n > b.MaxChildren {
		return unavailable(nil, fmt.Sprintf("element reports %d children, exceeds max_children=%d", n, b.MaxChildren))
	}
	return nil
}

// CheckValueLength rejects values longer than b.MaxValue.
func CheckValueLength(b Bounds, n int) error {
	if n > b.MaxValue {
		return unavailable(nil, fmt.Sprintf("element value is %d chars, exceeds max_value=%d", n, b.MaxValue))
	}
	return nil
}

// DeadlineExceeded reports whether err represents ctx's deadline having
// fired, translating it into the shared Timeout kind for callers above the
// accessibility boundary that don't otherwise see context.DeadlineExceeded.
func DeadlineExceeded(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return slunkerr.Wrap(slunkerr.KindTimeout, err, "accessibility read exceeded its deadline")
	}
	return err
}
