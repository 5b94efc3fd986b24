package runner

import (
	"context"
	"errors"
	"time"
)

type outcome[T any] struct {
	v   T
	err error
}

// bounded runs fn under a deadline of d. It returns when fn returns or when
// the deadline passes, whichever comes first, so a collaborator that ignores
// its context cannot hang the caller. If fn succeeds after bounded has
// already given up, abandon (when non-nil) receives the value so the
// resource can be released.
func bounded[T any](ctx context.Context, op string, d time.Duration, fn func(context.Context) (T, error), abandon func(T)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	ch := make(chan outcome[T], 1)
	go func() {
		v, err := fn(cctx)
		ch <- outcome[T]{v: v, err: err}
	}()

	select {
	case res := <-ch:
		return res.v, classify(ctx, cctx, op, d, res.err)
	case <-cctx.Done():
		select {
		case res := <-ch:
			return res.v, classify(ctx, cctx, op, d, res.err)
		default:
		}

		go func() {
			res := <-ch
			if res.err == nil && abandon != nil {
				abandon(res.v)
			}
		}()

		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{Op: op, After: d}
	}
}

// classify turns a deadline-caused failure into a *TimeoutError. A cancelled
// parent context is reported as-is.
func classify(parent, cctx context.Context, op string, d time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if parent.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op, After: d, Err: err}
	}
	return err
}
