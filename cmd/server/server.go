package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// serve runs the HTTP server and, when configured, the worker pool and
// report scheduler. Cancelling ctx starts a graceful shutdown bounded by
// server.shutdown_timeout.
func (app *application) serve(ctx context.Context, handler http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if app.pool != nil {
		if err := app.pool.Start(gctx); err != nil {
			return fmt.Errorf("failed to start worker pool: %w", err)
		}
	}
	if app.scheduler != nil {
		app.scheduler.Start()
		app.logger.Info("Report schedule active", "spec", app.config.Jobs.ReportSchedule)
	}

	g.Go(func() error {
		app.logger.Info("Starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("Shutting down server...")
		return app.shutdown(server)
	})

	err := g.Wait()
	app.logger.Info("Server shutdown completed")
	return err
}

// shutdown stops accepting requests first, then drains background work so
// jobs enqueued by in-flight requests still reach the queue.
func (app *application) shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
	}
	if app.scheduler != nil {
		app.scheduler.Stop(ctx)
	}
	if app.pool != nil {
		poolCtx, poolCancel := context.WithTimeout(context.Background(), app.config.Jobs.ShutdownTimeout)
		defer poolCancel()
		if err := app.pool.Shutdown(poolCtx); err != nil {
			errs = append(errs, err)
		}
	}

	app.cleanup()
	return errors.Join(errs...)
}
