package inbound

import "github.com/shandysiswandi/timestone/internal/pkg/router"

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.GET("/api/v1/clock", end.GetClock)
	r.POST("/api/v1/clock/advance", end.AdvanceClock)

	r.POST("/api/v1/tasks/sleep", end.RunSleepTask)
	r.GET("/api/v1/executor", end.ExecutorState)
}
