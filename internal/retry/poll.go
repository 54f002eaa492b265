// Package retry implements the bounded poll used to wait for eventually
// consistent resources on the commerce platform.
package retry

import (
	"context"
	"time"
)

// Outcome tags how a poll ended.
type Outcome int

const (
	// Resolved means the check reported the resource as ready.
	Resolved Outcome = iota
	// Exhausted means every retry ran and the resource never appeared.
	Exhausted
	// Pending means the context ended before the retry budget was spent.
	Pending
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case Exhausted:
		return "exhausted"
	case Pending:
		return "pending"
	}
	return "unknown"
}

// Policy bounds a poll: one initial check plus at most Retries further checks,
// Interval apart.
type Policy struct {
	Retries  int
	Interval time.Duration
	// Wait defaults to a context-aware timer; tests replace it.
	Wait func(ctx context.Context, d time.Duration) error
}

// Check fetches the current state. ready reports whether polling can stop.
type Check[T any] func(ctx context.Context, attempt int) (value T, ready bool, err error)

// Poll runs check until it is ready, the retry budget is spent, or ctx ends.
// The last observed value is returned with every outcome. A check error aborts
// the poll immediately.
func Poll[T any](ctx context.Context, p Policy, check Check[T]) (T, Outcome, error) {
	wait := p.Wait
	if wait == nil {
		wait = Sleep
	}

	value, ready, err := check(ctx, 0)
	if err != nil {
		return value, Pending, err
	}

	for attempt := 1; !ready && attempt <= p.Retries; attempt++ {
		if werr := wait(ctx, p.Interval); werr != nil {
			return value, Pending, nil
		}
		value, ready, err = check(ctx, attempt)
		if err != nil {
			return value, Pending, err
		}
	}

	if !ready {
		return value, Exhausted, nil
	}
	return value, Resolved, nil
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
