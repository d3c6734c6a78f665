package listing

import (
	"context"
	"time"
)

// race runs fn against a timeout. fn gets a context detached from the
// caller's cancellation, so a call that loses the race is abandoned and left
// to finish on its own rather than cancelled.
func race[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		v, err := fn(detached)
		done <- result{value: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-timer.C:
		return zero, errStoreTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
