package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Do runs fn until it succeeds, the attempt count is exhausted or ctx is done.
func Do(ctx context.Context, fn func() error, opts ...OptionFunc) error {
	_, err := DoWithResult(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	}, opts...)
	return err
}

// DoWithResult does a given function with retry.
func DoWithResult[T any](ctx context.Context, fn func() (T, error), opts ...OptionFunc) (T, error) {
	opt := defaultOption()
	for _, o := range opts {
		o(&opt)
	}

	var retryCount int
	for {
		t, err := fn()
		if err == nil {
			return t, nil
		}
		retryCount++
		if retryCount >= opt.maxRetryCount {
			return t, errors.Join(err, fmt.Errorf("retry count exceeded: %d", retryCount))
		}

		select {
		case <-time.After(opt.delay):
		case <-ctx.Done():
			return t, errors.Join(err, ctx.Err())
		}
	}
}
