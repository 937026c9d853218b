package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Start launches the HTTP server and returns a channel closed on shutdown.
func (a *App) Start() <-chan struct{} {
	terminateChan := make(chan struct{})

	go func() {
		slog.Info("http server listening", "address", a.httpServer.Addr)

		if err := a.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen and serve http server", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigint)

		<-sigint

		close(terminateChan)

		slog.Info("application gracefully shutdown")
	}()

	return terminateChan
}

// Serve runs the HTTP server on the provided listener for tests.
func (a *App) Serve(l net.Listener) <-chan error {
	errChan := make(chan error, 1)

	go func() {
		errChan <- a.httpServer.Serve(l)
		close(errChan)
	}()

	return errChan
}

// Stop gracefully shuts down the server and closes resources.
//
// The HTTP server stops first so no new task reaches the executor. The
// goroutine manager then drains asynchronous runs, and the executor gets
// executor.await_termination_ms on the application clock to finish what is
// still in flight. The app context is cancelled only after that budget, so
// asynchronous runs are not interrupted while draining.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to close resources", "name", "HTTP Server", "error", err)
	}

	budget := a.config.GetMillis("executor.await_termination_ms")
	if budget <= 0 {
		budget = 5 * time.Second
	}

	slog.InfoContext(ctx, "waiting for all goroutine to finish")
	if err := a.goroutine.Wait(ctx, budget); err != nil {
		slog.ErrorContext(ctx, "error from goroutines executions", "error", err)
	}

	a.executor.Shutdown()
	terminated, err := a.executor.AwaitTermination(ctx, budget)
	switch {
	case err != nil:
		slog.ErrorContext(ctx, "interrupted while awaiting executor termination", "error", err)
	case !terminated:
		slog.WarnContext(ctx, "executor still has tasks in flight", "running", a.executor.Running(), "budget", budget.String())
	default:
		slog.InfoContext(ctx, "executor terminated")
	}

	if a.cancel != nil {
		a.cancel()
	}

	for _, closer := range a.closers {
		if err := closer.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resources", "name", closer.name, "error", err)
		}
	}
}
