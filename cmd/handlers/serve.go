package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"newsdesk/internal/logger"
	"newsdesk/internal/scheduler"
	"newsdesk/internal/server"
)

// NewServeCmd creates the serve command that runs the HTTP API server
func NewServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the news aggregation API server",
		Long: `Start the HTTP API server.

The server exposes extraction triggers, highlight and article listings,
run status, and the retrieval-backed chat endpoint. When a refresh interval
is configured, a background scheduler re-runs extraction for every category
on that cadence.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runServe(cmd.Context()); err != nil {
				logger.Error("Server exited with error", err)
				os.Exit(1)
			}
		},
	}

	return serveCmd
}

func runServe(ctx context.Context) error {
	log := logger.Get()

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	var sched *scheduler.Scheduler
	if svc.cfg.Server.RefreshInterval != "" {
		interval, err := time.ParseDuration(svc.cfg.Server.RefreshInterval)
		if err != nil {
			return err
		}
		sched = scheduler.New(svc.runner)
		if err := sched.Start(ctx, interval); err != nil {
			return err
		}
		defer sched.Stop()
	}

	srv := server.New(svc.store, svc.runner, svc.bot, svc.cfg.Server)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Let in-flight extraction runs finish before closing the stores.
	svc.runner.Wait()
	return nil
}
