package resilience

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout bounds operations when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Timeout bounds how long a caller waits for an operation. The operation
// receives a context carrying the deadline; an operation that ignores it
// keeps running in the background but its result is discarded.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a timeout guard. Non-positive durations use DefaultTimeout.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &Timeout{d: d}
}

// Duration returns the configured bound.
func (t *Timeout) Duration() time.Duration {
	return t.d
}

// Execute runs op and returns ErrTimeout if it has not finished within the bound.
// Cancellation of the parent context is returned as the context's error.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := callTimeout(ctx, t.d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// callTimeout hands fn's value back over the completion channel so that a
// result produced after the deadline is never observed by the caller.
func callTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	var zero T

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{v: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() != nil {
				return zero, ErrTimeout
			}
			return zero, o.err
		}
		return o.v, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}

// ExecuteWithTimeout runs op under a one-off timeout guard.
func ExecuteWithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	return NewTimeout(d).Execute(ctx, op)
}

// CallWithTimeout runs fn under a one-off timeout guard and returns its value.
// Non-positive durations use DefaultTimeout.
func CallWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	return callTimeout(ctx, NewTimeout(d).d, fn)
}
