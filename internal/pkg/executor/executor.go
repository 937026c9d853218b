// Package executor provides CallerRuns, an executor that runs every task on the
// goroutine that submits it.
//
// CallerRuns never starts goroutines and has no queue. What it adds over a plain
// function call is bookkeeping: it counts in-flight tasks, refuses new work once
// shut down, and lets other goroutines wait until the in-flight count drops to
// zero. That wait is budgeted through an injected clock.TimeSource, so tests can
// drive it with a clock.MutableTime instead of real time.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shandysiswandi/timestone/internal/pkg/clock"
	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
	"go.uber.org/atomic"
)

// Task is a unit of work. Its error is returned to whoever called Execute.
type Task func() error

// CallerRuns executes tasks synchronously on the calling goroutine.
//
// Its lifecycle is RUNNING -> SHUTDOWN. It is terminated once it is shut down
// and no task is in flight.
type CallerRuns struct {
	time     clock.TimeSource
	shutdown *atomic.Bool

	// mu guards running and changed. changed is closed and replaced whenever
	// running moves, which wakes every waiter.
	mu      sync.Mutex
	running int
	changed chan struct{}
}

// New returns a CallerRuns that measures AwaitTermination budgets with ts.
// A nil ts means clock.System.
func New(ts clock.TimeSource) *CallerRuns {
	if ts == nil {
		ts = clock.System
	}

	return &CallerRuns{
		time:     ts,
		shutdown: atomic.NewBool(false),
		changed:  make(chan struct{}),
	}
}

// Execute runs task on the calling goroutine and returns its error.
//
// It returns goerror.ErrRejected without running task if the executor has been
// shut down. A shutdown that happens while task is running does not stop it.
// The in-flight count is released even if task panics; the panic is not
// recovered.
func (e *CallerRuns) Execute(task Task) error {
	if e.shutdown.Load() {
		return goerror.ErrRejected
	}

	e.mu.Lock()
	e.running++
	e.signalLocked()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running--
		e.signalLocked()
		e.mu.Unlock()
	}()

	return task()
}

// InvokeAll executes tasks in order on the calling goroutine. It stops at the
// first rejection and returns every task error joined together.
func (e *CallerRuns) InvokeAll(tasks ...Task) error {
	var errs []error
	for _, task := range tasks {
		if task == nil {
			continue
		}

		err := e.Execute(task)
		if errors.Is(err, goerror.ErrRejected) {
			errs = append(errs, err)
			break
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Shutdown stops accepting new tasks. It does not wait for or interrupt tasks
// already running. Calling it more than once has no further effect.
func (e *CallerRuns) Shutdown() {
	e.shutdown.Store(true)
}

// ShutdownNow is Shutdown. Tasks are never queued, so there is nothing pending
// to return.
func (e *CallerRuns) ShutdownNow() []Task {
	e.Shutdown()
	return []Task{}
}

// IsShutdown reports whether Shutdown has been called.
func (e *CallerRuns) IsShutdown() bool {
	return e.shutdown.Load()
}

// IsTerminated reports whether the executor is shut down with no task in flight.
func (e *CallerRuns) IsTerminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown.Load() && e.running == 0
}

// Running returns the number of tasks currently in flight.
func (e *CallerRuns) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// AwaitTermination blocks until no task is in flight or until timeout has
// elapsed on the executor's time source, whichever comes first. It reports
// whether the in-flight count reached zero.
//
// The elapsed budget is measured with the time source's Millis, and the
// remaining budget is slept through the time source's Sleep, so a MutableTime
// consumes the budget by advancing instead of blocking. A zero or negative
// timeout only checks the count. If ctx is cancelled while waiting, it returns
// false and an error matching goerror.ErrInterrupted.
//
// Like the standard executor contract, it does not require Shutdown to have
// been called; it only waits for in-flight work.
func (e *CallerRuns) AwaitTermination(ctx context.Context, timeout time.Duration) (bool, error) {
	remaining := timeout.Milliseconds()

	e.mu.Lock()
	defer e.mu.Unlock()

	for e.running > 0 && remaining > 0 {
		start := e.time.Millis()
		if err := e.waitLocked(ctx, time.Duration(remaining)*time.Millisecond); err != nil {
			return false, err
		}
		remaining -= e.time.Millis() - start
	}

	return e.running == 0, nil
}

// WaitTermination blocks until no task is in flight, with no time limit. It
// returns an error matching goerror.ErrInterrupted if ctx is cancelled first.
func (e *CallerRuns) WaitTermination(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.running > 0 {
		if err := e.waitLocked(ctx, 0); err != nil {
			return err
		}
	}

	return nil
}

// waitLocked releases mu until running changes, the budget is slept through
// the time source, or ctx is done, then reacquires mu. A zero budget waits for
// a change only. Must be called with mu held.
func (e *CallerRuns) waitLocked(ctx context.Context, budget time.Duration) error {
	if err := ctx.Err(); err != nil {
		return goerror.NewInterrupted(err)
	}

	changed := e.changed
	e.mu.Unlock()
	defer e.mu.Lock()

	var expired chan struct{}
	cancel := context.CancelFunc(func() {})
	if budget > 0 {
		var sleepCtx context.Context
		sleepCtx, cancel = context.WithCancel(ctx)

		expired = make(chan struct{})
		go func() {
			defer close(expired)
			//nolint:errcheck // an interrupted sleep only means the wait ended another way
			_ = e.time.Sleep(sleepCtx, budget)
		}()
	}

	var err error
	select {
	case <-changed:
	case <-expired:
	case <-ctx.Done():
		err = goerror.NewInterrupted(ctx.Err())
	}

	// The sleeper must be gone before the wait ends; a clock it advanced may
	// still be notifying listeners.
	cancel()
	if expired != nil {
		<-expired
	}
	return err
}

// signalLocked wakes every waiter. Must be called with mu held.
func (e *CallerRuns) signalLocked() {
	close(e.changed)
	e.changed = make(chan struct{})
}
