package entity

import "time"

// ClockState is a snapshot of the application time source.
type ClockState struct {
	Instant time.Time
	Millis  int64
	Zone    string
	Mutable bool
}

// ExecutorState is a snapshot of the task executor lifecycle.
type ExecutorState struct {
	Shutdown   bool
	Terminated bool
	Running    int
}

// TaskRun describes one execution of the simulated flaky job.
type TaskRun struct {
	ID       string        `json:"id"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
	Async    bool          `json:"async"`
	// Replayed is set when the run was answered from an earlier request with
	// the same idempotency key.
	Replayed bool `json:"-"`
}
