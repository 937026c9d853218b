package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/shandysiswandi/timestone/internal/pkg/clock"
	"github.com/shandysiswandi/timestone/internal/pkg/config"
	"github.com/shandysiswandi/timestone/internal/pkg/executor"
	"github.com/shandysiswandi/timestone/internal/pkg/goroutine"
	"github.com/shandysiswandi/timestone/internal/pkg/idempotency"
	"github.com/shandysiswandi/timestone/internal/pkg/instrument"
	"github.com/shandysiswandi/timestone/internal/pkg/router"
	"github.com/shandysiswandi/timestone/internal/pkg/uid"
	"github.com/shandysiswandi/timestone/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
)

const (
	clockModeSystem  = "system"
	clockModeMutable = "mutable"
)

func (a *App) initConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	if tz := cfg.GetString("app.tz"); tz != "" {
		//nolint:errcheck,gosec // ignore error
		os.Setenv("TZ", tz)
	}

	a.config = cfg
}

func (a *App) initClock() {
	ts, err := newTimeSource(a.config)
	if err != nil {
		slog.Error("failed to init clock", "error", err)
		os.Exit(1)
	}
	a.clock = ts
}

// newTimeSource builds the application time source from clock.* keys.
func newTimeSource(cfg config.Config) (clock.TimeSource, error) {
	loc := cfg.GetLocation("clock.zone")

	switch mode := strings.ToLower(strings.TrimSpace(cfg.GetString("clock.mode"))); mode {
	case "", clockModeSystem:
		return clock.NewSystem(loc), nil
	case clockModeMutable:
		opts := []clock.MutableOption{clock.WithLocation(loc)}
		if start := cfg.GetInt64("clock.start_millis"); start != 0 {
			opts = append(opts, clock.WithMillis(start))
		}
		return clock.NewMutable(opts...), nil
	default:
		return nil, fmt.Errorf("unknown clock.mode %q, want %s or %s", mode, clockModeSystem, clockModeMutable)
	}
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
		Clock:            a.clock,
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.uuid = uid.NewUUID()

	v10, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validator", "error", err)
		os.Exit(1)
	}
	a.validator = v10

	a.executor = executor.New(a.clock)
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"), a.executor)

	if mt, ok := a.clock.(*clock.MutableTime); ok {
		a.clockListener = newClockListener(a.ctx, a.ins)
		mt.AddListener(a.clockListener)
		slog.Warn("running on a controllable clock", "millis", mt.Millis(), "zone", mt.Zone().String())
	}
}

// newClockListener logs and counts every change of a controllable clock.
func newClockListener(ctx context.Context, ins instrument.Instrumentation) *clock.FuncListener {
	advances, err := ins.Meter("clock").Int64Counter(
		"timestone.clock.advances",
		metric.WithDescription("Number of controllable clock changes"),
	)
	if err != nil {
		slog.Error("failed to create clock advance counter", "error", err)
	}

	return clock.ListenerFunc(func(millis int64) error {
		slog.DebugContext(ctx, "clock changed", "millis", millis)
		if advances != nil {
			advances.Add(ctx, 1)
		}
		return nil
	})
}

// initCache connects to Redis for idempotency keys. It is skipped unless
// redis.enabled is set.
func (a *App) initCache() {
	if !a.config.GetBool("redis.enabled") {
		slog.Info("redis is disabled, idempotency keys are ignored")
		return
	}

	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
	a.idemp = idempotency.New(rdb,
		idempotency.WithPrefix(a.config.GetString("redis.idempotency.prefix")),
		idempotency.WithLockDuration(a.config.GetMillis("redis.idempotency.lock_ms")),
		idempotency.WithStateTTL(a.config.GetSecond("redis.idempotency.ttl_seconds")),
	)
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		Instrument: a.ins,
		Clock:      a.clock,
	})

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.idle_timeout_seconds"),
	}
}

func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{
			name: "ClockListener",
			fn: func(context.Context) error {
				if mt, ok := a.clock.(*clock.MutableTime); ok && a.clockListener != nil {
					mt.RemoveListener(a.clockListener)
				}
				return nil
			},
		},
		{
			name: "Cache",
			fn: func(context.Context) error {
				if a.cacheConn == nil {
					return nil
				}
				return a.cacheConn.Close()
			},
		},
		{
			name: "Instrument",
			fn: func(ctx context.Context) error {
				return a.ins.Shutdown(ctx)
			},
		},
		{
			name: "Config",
			fn: func(context.Context) error {
				return a.config.Close()
			},
		},
	}
}
