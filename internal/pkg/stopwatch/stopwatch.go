// Package stopwatch measures elapsed time on a clock.TimeSource.
package stopwatch

import (
	"sync"
	"time"

	"github.com/shandysiswandi/timestone/internal/pkg/clock"
	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
)

var (
	// ErrNotStarted is returned by Stop before Start was called.
	ErrNotStarted = goerror.NewBusiness("Stopwatch has not been started", goerror.CodeConflict)

	// ErrNotStopped is returned by Elapsed unless the stopwatch was started and then stopped.
	ErrNotStopped = goerror.NewBusiness("Stopwatch has not been started or stopped properly", goerror.CodeConflict)
)

// StopWatch records a start and an end instant read from a time source.
type StopWatch struct {
	time clock.TimeSource

	mu      sync.Mutex
	start   time.Time
	end     time.Time
	started bool
	stopped bool
}

// New returns a StopWatch reading instants from ts. A nil ts means clock.System.
func New(ts clock.TimeSource) *StopWatch {
	if ts == nil {
		ts = clock.System
	}
	return &StopWatch{time: ts}
}

// Start records the start instant and clears any previous end instant.
func (s *StopWatch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.start = s.time.Instant()
	s.end = time.Time{}
	s.started = true
	s.stopped = false
}

// Stop records the end instant.
func (s *StopWatch) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	s.end = s.time.Instant()
	s.stopped = true
	return nil
}

// Elapsed returns the time between Start and Stop.
func (s *StopWatch) Elapsed() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || !s.stopped {
		return 0, ErrNotStopped
	}
	return s.end.Sub(s.start), nil
}
