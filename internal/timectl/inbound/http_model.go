package inbound

import (
	"net/http"
	"time"

	"github.com/shandysiswandi/timestone/internal/timectl/entity"
)

type AdvanceClockRequest struct {
	DurationMs int64 `json:"duration_ms"`
}

type ClockResponse struct {
	Instant time.Time `json:"instant"`
	Millis  int64     `json:"millis"`
	Zone    string    `json:"zone"`
	Mutable bool      `json:"mutable"`
}

func newClockResponse(s *entity.ClockState) ClockResponse {
	return ClockResponse{Instant: s.Instant, Millis: s.Millis, Zone: s.Zone, Mutable: s.Mutable}
}

type ClockAdvanceResponse struct {
	ClockResponse
}

func (ClockAdvanceResponse) Message() string { return "clock advanced" }

type SleepTaskRequest struct {
	SleepMs  int64 `json:"sleep_ms"`
	Attempts int   `json:"attempts"`
	Async    bool  `json:"async"`
}

type SleepTaskResponse struct {
	ID        string `json:"id"`
	Attempts  int    `json:"attempts"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Async     bool   `json:"async"`
	Replayed  bool   `json:"replayed,omitempty"`
}

func (r SleepTaskResponse) StatusCode() int {
	if r.Async {
		return http.StatusAccepted
	}
	return http.StatusOK
}

func (r SleepTaskResponse) Message() string {
	if r.Replayed {
		return "task replayed"
	}
	if r.Async {
		return "task accepted"
	}
	return "task finished"
}

type ExecutorResponse struct {
	Shutdown   bool `json:"shutdown"`
	Terminated bool `json:"terminated"`
	Running    int  `json:"running"`
}
