package inbound

import (
	"context"

	"github.com/shandysiswandi/timestone/internal/timectl/entity"
	"github.com/shandysiswandi/timestone/internal/timectl/usecase"
)

type uc interface {
	GetClock(ctx context.Context, in usecase.GetClockInput) (*entity.ClockState, error)
	AdvanceClock(ctx context.Context, in usecase.AdvanceClockInput) (*entity.ClockState, error)
	RunSleepTask(ctx context.Context, in usecase.SleepTaskInput) (*entity.TaskRun, error)
	ExecutorState(ctx context.Context) (*entity.ExecutorState, error)
}
