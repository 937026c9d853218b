package inbound

import (
	"strings"

	"github.com/shandysiswandi/timestone/internal/pkg/router"
	"github.com/shandysiswandi/timestone/internal/timectl/usecase"
)

const headerIdempotencyKey = "Idempotency-Key"

type HTTPEndpoint struct {
	uc uc
}

// GetClock reports the application clock, optionally viewed in another zone.
// @Router /api/v1/clock [get]
func (h *HTTPEndpoint) GetClock(r *router.Request) (any, error) {
	loc, err := r.GetQueryLocation("zone")
	if err != nil {
		return nil, err
	}

	state, err := h.uc.GetClock(r.Context(), usecase.GetClockInput{Zone: loc})
	if err != nil {
		return nil, err
	}

	return newClockResponse(state), nil
}

// AdvanceClock moves a controllable clock. It fails with 409 on the system clock.
// @Router /api/v1/clock/advance [post]
func (h *HTTPEndpoint) AdvanceClock(r *router.Request) (any, error) {
	var req AdvanceClockRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	state, err := h.uc.AdvanceClock(r.Context(), usecase.AdvanceClockInput{DurationMs: req.DurationMs})
	if err != nil {
		return nil, err
	}

	return ClockAdvanceResponse{ClockResponse: newClockResponse(state)}, nil
}

// RunSleepTask runs the simulated flaky job. An Idempotency-Key header makes
// retries of the same request replay the first run.
// @Router /api/v1/tasks/sleep [post]
func (h *HTTPEndpoint) RunSleepTask(r *router.Request) (any, error) {
	var req SleepTaskRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	run, err := h.uc.RunSleepTask(r.Context(), usecase.SleepTaskInput{
		SleepMs:  req.SleepMs,
		Attempts: req.Attempts,
		Async:    req.Async,

		IdempotencyKey: strings.TrimSpace(r.Header.Get(headerIdempotencyKey)),
	})
	if err != nil {
		return nil, err
	}

	return SleepTaskResponse{
		ID:        run.ID,
		Attempts:  run.Attempts,
		ElapsedMs: run.Elapsed.Milliseconds(),
		Async:     run.Async,
		Replayed:  run.Replayed,
	}, nil
}

func (h *HTTPEndpoint) ExecutorState(r *router.Request) (any, error) {
	state, err := h.uc.ExecutorState(r.Context())
	if err != nil {
		return nil, err
	}

	return ExecutorResponse{
		Shutdown:   state.Shutdown,
		Terminated: state.Terminated,
		Running:    state.Running,
	}, nil
}
