package backoff

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/timestone/internal/pkg/clock"
)

type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	if e.err == nil {
		return "retryable: <nil>"
	}
	return "retryable: " + e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// Retryable marks err so Do tries again. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var rerr *retryableError
	return errors.As(err, &rerr)
}

// Do calls fn until it succeeds, returns an error not marked Retryable, or b
// stops. Between attempts it sleeps through ts for the delay b returns.
//
// When b stops, the last error is returned with the Retryable marker removed.
// An interrupted sleep returns the interruption error.
func Do(ctx context.Context, ts clock.TimeSource, b retry.Backoff, fn func(ctx context.Context) error) error {
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		var rerr *retryableError
		if !errors.As(err, &rerr) {
			return err
		}

		next, stop := b.Next()
		if stop {
			return rerr.Unwrap()
		}

		if err := ts.Sleep(ctx, next); err != nil {
			return err
		}
	}
}
