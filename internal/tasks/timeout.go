package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotx/internal/shared"
)

// WithTimeout runs fn in its own goroutine and waits for the first of: fn returning, the deadline d,
// or ctx being canceled.
//
// On the deadline the context passed to fn is canceled with cause [shared.ErrTimeout] and the returned
// error wraps [shared.ErrTimeout]; when ctx ends first the error wraps [shared.ErrCanceled].
// fn is not waited for in either case. A non-positive d disables the deadline.
//
// Nothing here touches OS processes: callers that started one destroy it by id.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("%w: %w", shared.ErrCanceled, context.Cause(ctx))
	}

	cctx, cancel := context.WithCancelCause(ctx)
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(cctx)
		done <- result{v, err}
	}()

	var deadline <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case r := <-done:
		cancel(nil)
		return r.v, r.err
	case <-deadline:
		cancel(shared.ErrTimeout)
		return zero, fmt.Errorf("%w after %s", shared.ErrTimeout, d)
	case <-ctx.Done():
		cause := context.Cause(ctx)
		cancel(shared.ErrCanceled)
		return zero, fmt.Errorf("%w: %w", shared.ErrCanceled, cause)
	}
}
