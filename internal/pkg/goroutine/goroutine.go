package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shandysiswandi/timestone/internal/pkg/executor"
	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
	"github.com/shandysiswandi/timestone/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is used when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 100

// Manager runs functions in goroutines with a configurable concurrency limit.
//
// Each goroutine submits its function to an executor.CallerRuns, so the function
// runs on that goroutine while the executor tracks it as in flight. Wait shuts
// the executor down and waits for termination.
type Manager struct {
	exec *executor.CallerRuns
	sema chan struct{}

	mu   sync.Mutex
	errs []error

	// pending counts goroutines that were accepted but have not entered the
	// executor yet.
	pending sync.WaitGroup
	stateMu sync.RWMutex
	closed  bool
}

// NewManager creates a new Manager with the provided maximum concurrency.
// A nil exec means a fresh executor on the system clock.
func NewManager(maxGoroutine int, exec *executor.CallerRuns) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}
	if exec == nil {
		exec = executor.New(nil)
	}

	return &Manager{
		exec: exec,
		sema: make(chan struct{}, maxGoroutine), // Semaphore to limit goroutines
	}
}

var (
	// ErrClosed is returned by Go after Wait. It matches goerror.ErrRejected.
	ErrClosed = goerror.NewRejected("Goroutine manager is closed")
	// ErrLimitReached is returned by Go when every slot is taken. It matches
	// goerror.ErrRejected.
	ErrLimitReached = goerror.NewRejected("Maximum goroutine limit reached")
)

// Go schedules a function to run in a goroutine if capacity is available.
//
// It returns ErrLimitReached when the manager is at its concurrency limit,
// ErrClosed once Wait has been called, and goerror.ErrRejected when the shared
// executor is shut down. In those cases f never runs.
func (g *Manager) Go(pCtx context.Context, f func(ctx context.Context) error) error {
	if g == nil {
		return goerror.ErrRejected
	}

	g.stateMu.RLock()
	defer g.stateMu.RUnlock()

	if g.closed {
		return ErrClosed
	}
	if g.exec.IsShutdown() {
		return goerror.ErrRejected
	}

	select {
	case g.sema <- struct{}{}: // Acquire a semaphore slot
	default:
		slog.WarnContext(pCtx, "maximum goroutine limit reached, rejecting new goroutine", "limit", cap(g.sema))
		return ErrLimitReached
	}

	g.pending.Add(1)
	go func() {
		defer func() { <-g.sema }() // Release semaphore slot

		entered := false
		err := g.exec.Execute(func() error {
			entered = true
			g.pending.Done()
			return g.run(pCtx, f)
		})
		if !entered {
			g.pending.Done()
		}
		if errors.Is(err, goerror.ErrRejected) {
			slog.WarnContext(pCtx, "executor shut down before the goroutine started")
			return
		}
		if err != nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
	}()

	return nil
}

func (g *Manager) run(pCtx context.Context, f func(ctx context.Context) error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			paths := stacktrace.InternalPaths(stack)
			if len(paths) == 0 {
				slog.ErrorContext(pCtx, "panic occurred in goroutine", "stack", string(stack))
			} else {
				slog.ErrorContext(pCtx, "panic occurred in goroutine", "stack", paths)
			}
		}
	}()

	select {
	case <-pCtx.Done():
		slog.WarnContext(pCtx, "goroutine canceled", "because", pCtx.Err())
		return nil
	default:
		return f(pCtx)
	}
}

// Running returns the number of goroutines currently executing.
func (g *Manager) Running() int {
	if g == nil {
		return 0
	}
	return g.exec.Running()
}

// Wait closes the manager, blocks until all scheduled goroutines finish and
// returns any collected errors. A positive timeout bounds the wait on the
// executor's clock; a zero timeout waits without limit.
//
// The executor is shut down only after every goroutine accepted by Go has
// entered it, so accepted functions always run.
func (g *Manager) Wait(ctx context.Context, timeout time.Duration) error {
	if g == nil {
		return nil
	}

	g.stateMu.Lock()
	g.closed = true
	g.stateMu.Unlock()

	g.pending.Wait()
	g.exec.Shutdown()

	var waitErr error
	if timeout > 0 {
		terminated, err := g.exec.AwaitTermination(ctx, timeout)
		if err == nil && !terminated {
			err = goerror.NewBusiness("goroutines still running after timeout", goerror.CodeTimeout)
		}
		waitErr = err
	} else {
		waitErr = g.exec.WaitTermination(ctx)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	errs := make([]error, 0, len(g.errs)+1)
	errs = append(errs, g.errs...)
	errs = append(errs, waitErr)
	return errors.Join(errs...)
}
