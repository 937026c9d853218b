package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/timestone/internal/pkg/backoff"
	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
	"github.com/shandysiswandi/timestone/internal/pkg/idempotency"
	"github.com/shandysiswandi/timestone/internal/pkg/stopwatch"
	"github.com/shandysiswandi/timestone/internal/timectl/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultMaxDelay   = 30 * time.Second
	defaultMultiplier = 2.0
	defaultMaxRetries = 10
)

var errNotYet = errors.New("job has not succeeded yet")

type SleepTaskInput struct {
	// SleepMs is the first backoff delay.
	SleepMs int64 `validate:"gt=0,ms_duration"`
	// Attempts is the attempt on which the simulated job succeeds.
	Attempts int `validate:"gte=1"`
	// Async runs the job on the goroutine manager and returns immediately.
	Async bool
	// IdempotencyKey, when set, makes a repeated request replay the first run.
	IdempotencyKey string `validate:"omitempty,max=128,printascii"`
}

// RunSleepTask submits a simulated flaky job to the executor. The job fails
// until its Attempts-th attempt, and every retry waits on the application
// clock with exponential backoff starting at SleepMs. On a MutableTime the
// whole run completes without real waiting and advances the clock by the sum
// of the delays.
func (s *Usecase) RunSleepTask(ctx context.Context, in SleepTaskInput) (*entity.TaskRun, error) {
	ctx, span := s.startSpan(ctx, "RunSleepTask")
	defer span.End()

	if err := s.validate(in); err != nil {
		return nil, err
	}
	if in.Attempts > s.maxRetries()+1 {
		return nil, goerror.NewInvalidInput(nil, "attempts", "must not exceed max retries + 1")
	}

	if in.IdempotencyKey != "" && s.idem != nil {
		span.SetAttributes(attribute.String("task.idempotency_key", in.IdempotencyKey))
		return s.runOnce(ctx, in)
	}

	if s.exec.IsShutdown() {
		return nil, goerror.ErrRejected
	}

	run := s.newRun(in)
	if in.Async {
		if err := s.spawn(ctx, run, in, nil); err != nil {
			return nil, err
		}
		return run, nil
	}

	if err := s.execute(ctx, run, in); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Usecase) newRun(in SleepTaskInput) *entity.TaskRun {
	return &entity.TaskRun{ID: s.uuid.Generate(), Async: in.Async}
}

// spawn runs the job on the goroutine manager. done, if set, receives the
// finished run or its error. A run the manager refuses is reported as
// goerror.ErrRejected and done is not called.
func (s *Usecase) spawn(ctx context.Context, run *entity.TaskRun, in SleepTaskInput, done func(ctx context.Context, run *entity.TaskRun, err error)) error {
	err := s.goroutine.Go(s.ctx, func(ctx context.Context) error {
		async := *run
		err := s.execute(ctx, &async, in)
		if done != nil {
			done(ctx, &async, err)
		}
		if err != nil {
			slog.ErrorContext(ctx, "async sleep task failed", "task_id", async.ID, "error", err)
			return err
		}
		slog.InfoContext(ctx, "async sleep task finished",
			"task_id", async.ID, "attempts", async.Attempts, "elapsed_ms", async.Elapsed.Milliseconds())
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "async sleep task not accepted", "task_id", run.ID, "error", err)
		s.countTask(ctx, goerror.ErrRejected)
		return goerror.ErrRejected
	}
	return nil
}

// runOnce runs the job at most once per idempotency key. A completed key
// replays the stored run. A key whose run was rejected or interrupted is
// released so the request can be retried.
func (s *Usecase) runOnce(ctx context.Context, in SleepTaskInput) (*entity.TaskRun, error) {
	key := in.IdempotencyKey

	state, payload, err := s.idem.Acquire(ctx, key)
	if err != nil {
		return nil, asServerError(err)
	}

	switch state {
	case idempotency.StateInProgress:
		return nil, idempotency.ErrAlreadyInProgress
	case idempotency.StateFailed:
		return nil, idempotency.ErrAlreadyFailed
	case idempotency.StateCompleted:
		return decodeRun(payload, true)
	}

	if s.exec.IsShutdown() {
		s.settle(ctx, key, nil, goerror.ErrRejected)
		return nil, goerror.ErrRejected
	}

	run := s.newRun(in)
	if in.Async {
		err := s.spawn(ctx, run, in, func(ctx context.Context, done *entity.TaskRun, err error) {
			s.settle(ctx, key, done, err)
		})
		if err != nil {
			s.settle(context.WithoutCancel(ctx), key, nil, err)
			return nil, err
		}
		return run, nil
	}

	err = s.execute(ctx, run, in)
	// the request context may be cancelled already
	s.settle(context.WithoutCancel(ctx), key, run, err)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// settle records the outcome of a claimed key.
func (s *Usecase) settle(ctx context.Context, key string, run *entity.TaskRun, runErr error) {
	var err error
	switch {
	case errors.Is(runErr, goerror.ErrRejected), errors.Is(runErr, goerror.ErrInterrupted):
		err = s.idem.Release(ctx, key)
	case runErr != nil:
		err = s.idem.Fail(ctx, key)
	default:
		var result []byte
		if result, err = json.Marshal(run); err == nil {
			err = s.idem.Complete(ctx, key, result)
		}
	}

	if err != nil {
		slog.ErrorContext(ctx, "failed to record idempotency key", "key", key, "error", err)
	}
}

func decodeRun(payload []byte, replayed bool) (*entity.TaskRun, error) {
	var run entity.TaskRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, goerror.NewServer(err)
	}
	run.Replayed = replayed
	return &run, nil
}

func asServerError(err error) error {
	var gerr *goerror.Error
	if errors.As(err, &gerr) {
		return err
	}
	return goerror.NewServer(err)
}

func (s *Usecase) execute(ctx context.Context, run *entity.TaskRun, in SleepTaskInput) error {
	b, err := backoff.NewExponential(s.clock,
		time.Duration(in.SleepMs)*time.Millisecond,
		max(s.maxDelay(), time.Duration(in.SleepMs)*time.Millisecond),
		s.multiplier(),
	)
	if err != nil {
		return err
	}

	sw := stopwatch.New(s.clock)
	err = s.exec.Execute(func() error {
		sw.Start()
		defer func() {
			//nolint:errcheck // Start was called above
			_ = sw.Stop()
		}()

		return backoff.Do(ctx, s.clock, retry.WithMaxRetries(uint64(in.Attempts-1), b), func(context.Context) error {
			run.Attempts++
			if run.Attempts < in.Attempts {
				return backoff.Retryable(errNotYet)
			}
			return nil
		})
	})
	s.countTask(ctx, err)

	if errors.Is(err, goerror.ErrRejected) || errors.Is(err, goerror.ErrInterrupted) {
		return err
	}
	if err != nil {
		slog.ErrorContext(ctx, "sleep task failed", "task_id", run.ID, "error", err)
		return goerror.NewServer(err)
	}

	run.Elapsed, err = sw.Elapsed()
	return err
}

func (s *Usecase) countTask(ctx context.Context, err error) {
	if s.tasks == nil {
		return
	}

	outcome := "ok"
	switch {
	case errors.Is(err, goerror.ErrRejected):
		outcome = "rejected"
	case errors.Is(err, goerror.ErrInterrupted):
		outcome = "interrupted"
	case err != nil:
		outcome = "failed"
	}
	s.tasks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (s *Usecase) maxRetries() int {
	if s.cfg == nil {
		return defaultMaxRetries
	}
	if v := s.cfg.GetInt("backoff.max_retries"); v > 0 {
		return v
	}
	return defaultMaxRetries
}

func (s *Usecase) maxDelay() time.Duration {
	if s.cfg == nil {
		return defaultMaxDelay
	}
	if v := s.cfg.GetMillis("backoff.max_ms"); v > 0 {
		return v
	}
	return defaultMaxDelay
}

func (s *Usecase) multiplier() float64 {
	if s.cfg == nil {
		return defaultMultiplier
	}
	if v := s.cfg.GetFloat64("backoff.multiplier"); v > 1 {
		return v
	}
	return defaultMultiplier
}
