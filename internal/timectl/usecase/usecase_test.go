package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/timestone/internal/pkg/clock"
	"github.com/shandysiswandi/timestone/internal/pkg/config"
	"github.com/shandysiswandi/timestone/internal/pkg/executor"
	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
	"github.com/shandysiswandi/timestone/internal/pkg/goroutine"
	"github.com/shandysiswandi/timestone/internal/pkg/uid"
	"github.com/shandysiswandi/timestone/internal/pkg/validator"
)

const testConfig = `
backoff:
  max_ms: 1000
  multiplier: 2
  max_retries: 4
`

type fixture struct {
	uc   *Usecase
	mt   *clock.MutableTime
	exec *executor.CallerRuns
	mgr  *goroutine.Manager
}

func newFixture(t *testing.T, ts clock.TimeSource) fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfig))
	if err != nil {
		t.Fatalf("NewViperFromBytes() error = %v", err)
	}

	mt, _ := ts.(*clock.MutableTime)
	exec := executor.New(ts)
	mgr := goroutine.NewManager(4, exec)
	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("NewV10Validator() error = %v", err)
	}

	return fixture{
		uc: New(Dependency{
			Config:    cfg,
			Clock:     ts,
			Executor:  exec,
			Goroutine: mgr,
			UUID:      uid.Static("run-1"),
			Validator: v,
		}),
		mt:   mt,
		exec: exec,
		mgr:  mgr,
	}
}

func TestGetClock(t *testing.T) {
	f := newFixture(t, clock.NewMutable(clock.WithMillis(0), clock.WithLocation(time.UTC)))
	zone := time.FixedZone("UTC+7", 7*3600)

	tests := []struct {
		name     string
		in       GetClockInput
		wantZone string
		wantHour int
	}{
		{name: "own zone", in: GetClockInput{}, wantZone: "UTC", wantHour: 0},
		{name: "other zone", in: GetClockInput{Zone: zone}, wantZone: "UTC+7", wantHour: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.uc.GetClock(context.Background(), tt.in)

			if err != nil {
				t.Fatalf("GetClock() error = %v", err)
			}
			if got.Zone != tt.wantZone || got.Instant.Hour() != tt.wantHour {
				t.Fatalf("GetClock() = %+v", got)
			}
			if got.Millis != 0 || !got.Mutable {
				t.Fatalf("GetClock() = %+v, want millis 0 and mutable", got)
			}
		})
	}
}

func TestAdvanceClock(t *testing.T) {
	// Arrange
	f := newFixture(t, clock.NewMutable(clock.WithMillis(1000)))

	// Act
	got, err := f.uc.AdvanceClock(context.Background(), AdvanceClockInput{DurationMs: 1500})

	// Assert
	if err != nil {
		t.Fatalf("AdvanceClock() error = %v", err)
	}
	if got.Millis != 2500 || f.mt.Millis() != 2500 {
		t.Fatalf("AdvanceClock() millis = %d, clock = %d, want 2500", got.Millis, f.mt.Millis())
	}

	if _, err := f.uc.AdvanceClock(context.Background(), AdvanceClockInput{DurationMs: -500}); err != nil {
		t.Fatalf("AdvanceClock(-500) error = %v", err)
	}
	if f.mt.Millis() != 2000 {
		t.Fatalf("clock = %d after rewind, want 2000", f.mt.Millis())
	}
}

func TestAdvanceClockErrors(t *testing.T) {
	t.Run("zero duration", func(t *testing.T) {
		f := newFixture(t, clock.NewMutable())
		_, err := f.uc.AdvanceClock(context.Background(), AdvanceClockInput{})

		var gerr *goerror.Error
		if !errors.As(err, &gerr) || gerr.Code() != goerror.CodeInvalidInput {
			t.Fatalf("AdvanceClock() error = %v, want invalid input", err)
		}
	})

	t.Run("system clock", func(t *testing.T) {
		f := newFixture(t, clock.New())
		_, err := f.uc.AdvanceClock(context.Background(), AdvanceClockInput{DurationMs: 10})

		if !errors.Is(err, errClockNotControllable) {
			t.Fatalf("AdvanceClock() error = %v, want errClockNotControllable", err)
		}
	})
}

func TestRunSleepTask(t *testing.T) {
	tests := []struct {
		name        string
		in          SleepTaskInput
		wantElapsed time.Duration
	}{
		{name: "first attempt", in: SleepTaskInput{SleepMs: 100, Attempts: 1}, wantElapsed: 0},
		{name: "three attempts", in: SleepTaskInput{SleepMs: 100, Attempts: 3}, wantElapsed: 300 * time.Millisecond},
		{name: "capped delay", in: SleepTaskInput{SleepMs: 400, Attempts: 4}, wantElapsed: 2200 * time.Millisecond},
		{name: "initial above cap", in: SleepTaskInput{SleepMs: 1500, Attempts: 3}, wantElapsed: 3000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newFixture(t, clock.NewMutable(clock.WithMillis(0)))

			// Act
			start := time.Now()
			run, err := f.uc.RunSleepTask(context.Background(), tt.in)

			// Assert
			if err != nil {
				t.Fatalf("RunSleepTask() error = %v", err)
			}
			if time.Since(start) > time.Second {
				t.Fatal("RunSleepTask() waited in real time")
			}
			if run.ID != "run-1" || run.Attempts != tt.in.Attempts {
				t.Fatalf("RunSleepTask() = %+v", run)
			}
			if run.Elapsed != tt.wantElapsed {
				t.Fatalf("Elapsed = %v, want %v", run.Elapsed, tt.wantElapsed)
			}
			if f.mt.Millis() != tt.wantElapsed.Milliseconds() {
				t.Fatalf("clock = %d, want %d", f.mt.Millis(), tt.wantElapsed.Milliseconds())
			}
			if f.exec.Running() != 0 {
				t.Fatalf("Running() = %d, want 0", f.exec.Running())
			}
		})
	}
}

func TestRunSleepTaskValidation(t *testing.T) {
	f := newFixture(t, clock.NewMutable())

	tests := []struct {
		name  string
		in    SleepTaskInput
		field string
	}{
		{name: "zero sleep", in: SleepTaskInput{SleepMs: 0, Attempts: 1}, field: "sleep_ms"},
		{name: "zero attempts", in: SleepTaskInput{SleepMs: 10, Attempts: 0}, field: "attempts"},
		{name: "too many attempts", in: SleepTaskInput{SleepMs: 10, Attempts: 6}, field: "attempts"},
		{name: "sleep overflows a duration", in: SleepTaskInput{SleepMs: 18446744073710, Attempts: 2}, field: "sleep_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.RunSleepTask(context.Background(), tt.in)

			var gerr *goerror.Error
			if !errors.As(err, &gerr) || gerr.Fields()[tt.field] == "" {
				t.Fatalf("RunSleepTask() error = %v, want field %s", err, tt.field)
			}
		})
	}
}

func TestRunSleepTaskRejectedAfterShutdown(t *testing.T) {
	f := newFixture(t, clock.NewMutable(clock.WithMillis(0)))
	f.exec.Shutdown()

	_, err := f.uc.RunSleepTask(context.Background(), SleepTaskInput{SleepMs: 10, Attempts: 2})

	if !errors.Is(err, goerror.ErrRejected) {
		t.Fatalf("RunSleepTask() error = %v, want ErrRejected", err)
	}
	if f.mt.Millis() != 0 {
		t.Fatalf("clock moved to %d for a rejected task", f.mt.Millis())
	}
}

func TestRunSleepTaskInterrupted(t *testing.T) {
	f := newFixture(t, clock.NewMutable(clock.WithMillis(0)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.uc.RunSleepTask(ctx, SleepTaskInput{SleepMs: 10, Attempts: 2})

	if !errors.Is(err, goerror.ErrInterrupted) {
		t.Fatalf("RunSleepTask() error = %v, want ErrInterrupted", err)
	}
}

func TestRunSleepTaskAsync(t *testing.T) {
	// Arrange
	f := newFixture(t, clock.NewMutable(clock.WithMillis(0)))

	// Act
	run, err := f.uc.RunSleepTask(context.Background(), SleepTaskInput{SleepMs: 100, Attempts: 2, Async: true})
	if err != nil {
		t.Fatalf("RunSleepTask() error = %v", err)
	}
	waitErr := f.mgr.Wait(context.Background(), 0)

	// Assert
	if waitErr != nil {
		t.Fatalf("Wait() error = %v", waitErr)
	}
	if !run.Async || run.ID != "run-1" {
		t.Fatalf("RunSleepTask() = %+v", run)
	}
	if f.mt.Millis() != 100 {
		t.Fatalf("clock = %d, want 100 after the async run", f.mt.Millis())
	}
}

// saturate replaces the fixture's goroutine manager with a single-slot one
// whose slot stays taken until the test ends.
func saturate(t *testing.T, f fixture) {
	t.Helper()

	mgr := goroutine.NewManager(1, f.exec)
	gate := make(chan struct{})
	started := make(chan struct{})
	if err := mgr.Go(context.Background(), func(context.Context) error {
		close(started)
		<-gate
		return nil
	}); err != nil {
		t.Fatalf("Go() error = %v", err)
	}
	<-started
	t.Cleanup(func() { close(gate) })

	f.uc.goroutine = mgr
}

func TestRunSleepTaskAsyncRejectedWhenSaturated(t *testing.T) {
	// Arrange
	f := newFixture(t, clock.NewMutable(clock.WithMillis(0)))
	saturate(t, f)

	// Act
	run, err := f.uc.RunSleepTask(context.Background(), SleepTaskInput{SleepMs: 100, Attempts: 3, Async: true})

	// Assert
	if !errors.Is(err, goerror.ErrRejected) {
		t.Fatalf("RunSleepTask() = %+v, %v, want ErrRejected", run, err)
	}
	if run != nil {
		t.Fatalf("RunSleepTask() returned a run that was never started: %+v", run)
	}
	if f.mt.Millis() != 0 {
		t.Fatalf("clock = %d, want 0", f.mt.Millis())
	}
}

func TestExecutorState(t *testing.T) {
	f := newFixture(t, clock.NewMutable())

	got, _ := f.uc.ExecutorState(context.Background())
	if got.Shutdown || got.Terminated || got.Running != 0 {
		t.Fatalf("ExecutorState() = %+v", got)
	}

	f.exec.Shutdown()
	got, _ = f.uc.ExecutorState(context.Background())
	if !got.Shutdown || !got.Terminated {
		t.Fatalf("ExecutorState() = %+v after shutdown", got)
	}
}
