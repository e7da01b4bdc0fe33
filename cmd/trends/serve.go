package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/covid-trends-etl/internal/adapter/http"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Rerun the pipeline every RUN_INTERVAL and serve health, metrics and results over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.pipeline, a.pipeline, a.logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	// Start pipeline loop.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.pipeline.Serve(ctx, a.cfg.RunInterval); err != nil {
			a.logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		a.logger.Warn("pipeline did not stop before shutdown timeout")
	}

	a.logger.Info("shutdown complete")
	return nil
}
