package timectl

import (
	"context"
	"errors"

	"github.com/shandysiswandi/timestone/internal/pkg/clock"
	"github.com/shandysiswandi/timestone/internal/pkg/config"
	"github.com/shandysiswandi/timestone/internal/pkg/executor"
	"github.com/shandysiswandi/timestone/internal/pkg/goroutine"
	"github.com/shandysiswandi/timestone/internal/pkg/idempotency"
	"github.com/shandysiswandi/timestone/internal/pkg/instrument"
	"github.com/shandysiswandi/timestone/internal/pkg/router"
	"github.com/shandysiswandi/timestone/internal/pkg/uid"
	"github.com/shandysiswandi/timestone/internal/pkg/validator"
	"github.com/shandysiswandi/timestone/internal/timectl/inbound"
	"github.com/shandysiswandi/timestone/internal/timectl/usecase"
)

type Dependency struct {
	Ctx         context.Context
	Config      config.Config
	Instrument  instrument.Instrumentation
	Clock       clock.TimeSource
	Executor    *executor.CallerRuns
	Goroutine   *goroutine.Manager
	UUID        uid.StringID
	Validator   validator.Validator
	Idempotency idempotency.Idempotency
	Router      *router.Router
}

func New(dep Dependency) error {
	if dep.Clock == nil || dep.Executor == nil || dep.Goroutine == nil || dep.Router == nil {
		return errors.New("timectl: missing required dependency")
	}
	if dep.UUID == nil {
		dep.UUID = uid.NewUUID()
	}

	uc := usecase.New(usecase.Dependency{
		Ctx:         dep.Ctx,
		Config:      dep.Config,
		Clock:       dep.Clock,
		Executor:    dep.Executor,
		Goroutine:   dep.Goroutine,
		UUID:        dep.UUID,
		Validator:   dep.Validator,
		Idempotency: dep.Idempotency,
		Instrument:  dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}
