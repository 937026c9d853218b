package backoff

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/timestone/internal/pkg/clock"
	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
)

var _ retry.Backoff = (*Exponential)(nil)

// Exponential is a delay that starts at an initial value and is multiplied after
// every use, up to a maximum.
type Exponential struct {
	time       clock.TimeSource
	initial    time.Duration
	maxDelay   time.Duration
	multiplier float64

	mu      sync.Mutex
	current time.Duration
}

// NewExponential validates the settings and returns an Exponential backoff.
// initial and maxDelay must be positive and multiplier must be greater than 1.
func NewExponential(ts clock.TimeSource, initial, maxDelay time.Duration, multiplier float64) (*Exponential, error) {
	if ts == nil {
		return nil, goerror.NewInvalidInput(errors.New("time source is required"))
	}
	if initial <= 0 || maxDelay <= 0 || multiplier <= 1 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return nil, goerror.NewInvalidInput(nil,
			"initial", "must be positive",
			"max", "must be positive",
			"multiplier", "must be greater than 1",
		)
	}

	return &Exponential{
		time:       ts,
		initial:    initial,
		maxDelay:   maxDelay,
		multiplier: multiplier,
		current:    initial,
	}, nil
}

// Backoff sleeps for the current delay on the time source, then grows the
// delay for the next call. An interrupted sleep is returned and leaves the
// delay unchanged.
func (e *Exponential) Backoff(ctx context.Context) error {
	if err := e.time.Sleep(ctx, e.Current()); err != nil {
		return err
	}
	e.grow()
	return nil
}

// Next returns the current delay and grows it. It never asks to stop; wrap it
// with retry.WithMaxRetries for that.
func (e *Exponential) Next() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.current
	e.current = e.grown(e.current)
	return next, false
}

// Current returns the delay the next Backoff or Next call will use.
func (e *Exponential) Current() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Reset restores the initial delay.
func (e *Exponential) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = e.initial
}

func (e *Exponential) grow() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = e.grown(e.current)
}

func (e *Exponential) grown(d time.Duration) time.Duration {
	next := float64(d) * e.multiplier
	if next >= float64(e.maxDelay) {
		return e.maxDelay
	}
	return time.Duration(next)
}
