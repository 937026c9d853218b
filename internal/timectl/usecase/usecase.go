package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/timestone/internal/pkg/clock"
	"github.com/shandysiswandi/timestone/internal/pkg/config"
	"github.com/shandysiswandi/timestone/internal/pkg/executor"
	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
	"github.com/shandysiswandi/timestone/internal/pkg/idempotency"
	"github.com/shandysiswandi/timestone/internal/pkg/instrument"
	"github.com/shandysiswandi/timestone/internal/pkg/uid"
	"github.com/shandysiswandi/timestone/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type taskExecutor interface {
	Execute(task executor.Task) error
	IsShutdown() bool
	IsTerminated() bool
	Running() int
}

type spawner interface {
	Go(ctx context.Context, f func(ctx context.Context) error) error
}

// advancer is implemented by controllable time sources.
type advancer interface {
	Advance(d time.Duration) time.Time
}

type Usecase struct {
	ctx       context.Context
	cfg       config.Config
	clock     clock.TimeSource
	exec      taskExecutor
	goroutine spawner
	uuid      uid.StringID
	validator validator.Validator
	idem      idempotency.Idempotency
	ins       instrument.Instrumentation
	tasks     metric.Int64Counter
}

type Dependency struct {
	// Ctx bounds asynchronous task runs. It is cancelled on application stop.
	Ctx       context.Context
	Config    config.Config
	Clock     clock.TimeSource
	Executor  taskExecutor
	Goroutine spawner
	UUID      uid.StringID
	Validator validator.Validator
	// Idempotency is optional; without it idempotency keys are ignored.
	Idempotency idempotency.Idempotency
	Instrument  instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	if dep.Ctx == nil {
		dep.Ctx = context.Background()
	}
	if dep.Instrument == nil {
		dep.Instrument = instrument.NewNoop()
	}
	if dep.Validator == nil {
		v, err := validator.NewV10Validator()
		if err != nil {
			slog.Error("failed to create validator", "error", err)
		}
		dep.Validator = v
	}

	tasks, err := dep.Instrument.Meter("timectl").Int64Counter(
		"timestone.executor.tasks",
		metric.WithDescription("Number of tasks submitted to the executor"),
	)
	if err != nil {
		slog.Error("failed to create executor task counter", "error", err)
	}

	return &Usecase{
		ctx:       dep.Ctx,
		cfg:       dep.Config,
		clock:     dep.Clock,
		exec:      dep.Executor,
		goroutine: dep.Goroutine,
		uuid:      dep.UUID,
		validator: dep.Validator,
		idem:      dep.Idempotency,
		ins:       dep.Instrument,
		tasks:     tasks,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("timectl.usecase").Start(ctx, "timectl.usecase."+name)
}

func (s *Usecase) validate(in any) error {
	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}
	return nil
}
