package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/timestone/internal/pkg/clock"
	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	// Arrange
	mt := clock.NewMutable(clock.WithMillis(0))
	b, err := NewExponential(mt, 100*time.Millisecond, time.Second, 2)
	if err != nil {
		t.Fatalf("NewExponential() error = %v", err)
	}
	attempts := 0

	// Act
	err = Do(context.Background(), mt, b, func(context.Context) error {
		attempts++
		if attempts < 4 {
			return Retryable(errors.New("not yet"))
		}
		return nil
	})

	// Assert
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 4 {
		t.Fatalf("attempts = %d, want 4", attempts)
	}
	if got := mt.Millis(); got != 100+200+400 {
		t.Fatalf("clock = %d, want 700", got)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	mt := clock.NewMutable(clock.WithMillis(0))
	permanent := errors.New("permanent")
	attempts := 0

	err := Do(context.Background(), mt, retry.NewConstant(time.Second), func(context.Context) error {
		attempts++
		return permanent
	})

	if !errors.Is(err, permanent) {
		t.Fatalf("Do() error = %v, want %v", err, permanent)
	}
	if attempts != 1 || mt.Millis() != 0 {
		t.Fatalf("attempts = %d clock = %d, want 1 and 0", attempts, mt.Millis())
	}
}

func TestDoStopsWhenBackoffStops(t *testing.T) {
	mt := clock.NewMutable(clock.WithMillis(0))
	b, err := NewExponential(mt, time.Second, 10*time.Second, 2)
	if err != nil {
		t.Fatalf("NewExponential() error = %v", err)
	}
	last := errors.New("still failing")
	attempts := 0

	err = Do(context.Background(), mt, retry.WithMaxRetries(2, b), func(context.Context) error {
		attempts++
		return Retryable(last)
	})

	if !errors.Is(err, last) || IsRetryable(err) {
		t.Fatalf("Do() error = %v, want unwrapped %v", err, last)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if got := mt.Millis(); got != 3000 {
		t.Fatalf("clock = %d, want 3000", got)
	}
}

func TestDoInterrupted(t *testing.T) {
	mt := clock.NewMutable(clock.WithMillis(0))
	ctx, cancel := context.WithCancel(context.Background())

	err := Do(ctx, mt, retry.NewConstant(time.Second), func(context.Context) error {
		cancel()
		return Retryable(errors.New("retry me"))
	})

	if !errors.Is(err, goerror.ErrInterrupted) {
		t.Fatalf("Do() error = %v, want ErrInterrupted", err)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Fatal("Retryable(nil) should be nil")
	}

	base := errors.New("base")
	wrapped := Retryable(base)
	if !IsRetryable(wrapped) || !errors.Is(wrapped, base) {
		t.Fatalf("Retryable(base) = %v, want retryable wrapping base", wrapped)
	}
	if IsRetryable(base) {
		t.Fatal("plain error reported as retryable")
	}
}
