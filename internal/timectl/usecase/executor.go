package usecase

import (
	"context"

	"github.com/shandysiswandi/timestone/internal/timectl/entity"
)

func (s *Usecase) ExecutorState(ctx context.Context) (*entity.ExecutorState, error) {
	_, span := s.startSpan(ctx, "ExecutorState")
	defer span.End()

	return &entity.ExecutorState{
		Shutdown:   s.exec.IsShutdown(),
		Terminated: s.exec.IsTerminated(),
		Running:    s.exec.Running(),
	}, nil
}
