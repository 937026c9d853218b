package app

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/timestone/internal/pkg/clock"
	"github.com/shandysiswandi/timestone/internal/pkg/config"
	"github.com/shandysiswandi/timestone/internal/pkg/executor"
	"github.com/shandysiswandi/timestone/internal/pkg/goroutine"
	"github.com/shandysiswandi/timestone/internal/pkg/idempotency"
	"github.com/shandysiswandi/timestone/internal/pkg/instrument"
	"github.com/shandysiswandi/timestone/internal/pkg/router"
	"github.com/shandysiswandi/timestone/internal/pkg/uid"
	"github.com/shandysiswandi/timestone/internal/pkg/validator"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	clock         clock.TimeSource
	clockListener clock.Listener
	executor      *executor.CallerRuns
	goroutine     *goroutine.Manager
	uuid          uid.StringID
	validator     validator.Validator
	cacheConn     *redis.Client
	idemp         idempotency.Idempotency

	// server
	router     *router.Router
	httpServer *http.Server

	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initClock()
	app.initInstrument()
	app.initLibraries()
	app.initCache()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
