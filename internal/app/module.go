package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/timestone/internal/timectl"
)

func (a *App) initModules() {
	if !a.config.GetBool("modules.timectl.enabled") {
		slog.Warn("module timectl is disabled")
		return
	}

	if err := timectl.New(timectl.Dependency{
		Ctx:         a.ctx,
		Config:      a.config,
		Instrument:  a.ins,
		Clock:       a.clock,
		Executor:    a.executor,
		Goroutine:   a.goroutine,
		UUID:        a.uuid,
		Validator:   a.validator,
		Idempotency: a.idemp,
		Router:      a.router,
	}); err != nil {
		slog.Error("failed to init module timectl", "error", err)
		os.Exit(1)
	}
}
