package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
	"github.com/shandysiswandi/timestone/internal/timectl/entity"
)

var errClockNotControllable = goerror.NewBusiness("Clock is not controllable in the current mode", goerror.CodeConflict)

type GetClockInput struct {
	// Zone selects the reporting zone; nil keeps the time source's zone.
	Zone *time.Location
}

func (s *Usecase) GetClock(ctx context.Context, in GetClockInput) (*entity.ClockState, error) {
	_, span := s.startSpan(ctx, "GetClock")
	defer span.End()

	ts := s.clock
	if in.Zone != nil {
		ts = ts.WithZone(in.Zone)
	}

	_, mutable := s.clock.(advancer)
	return &entity.ClockState{
		Instant: ts.Now(),
		Millis:  ts.Millis(),
		Zone:    ts.Zone().String(),
		Mutable: mutable,
	}, nil
}

type AdvanceClockInput struct {
	DurationMs int64 `validate:"ms_duration"`
}

func (s *Usecase) AdvanceClock(ctx context.Context, in AdvanceClockInput) (*entity.ClockState, error) {
	ctx, span := s.startSpan(ctx, "AdvanceClock")
	defer span.End()

	if err := s.validate(in); err != nil {
		return nil, err
	}

	adv, ok := s.clock.(advancer)
	if !ok {
		return nil, errClockNotControllable
	}

	if in.DurationMs < 0 {
		slog.WarnContext(ctx, "rewinding the clock", "duration_ms", in.DurationMs)
	}
	adv.Advance(time.Duration(in.DurationMs) * time.Millisecond)

	return s.GetClock(ctx, GetClockInput{})
}
