package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/api"
	"github.com/shelfwise/shelfwise/internal/scheduler"
	"github.com/shelfwise/shelfwise/internal/scheduler/tasks"
	"github.com/shelfwise/shelfwise/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog HTTP API",
	Long: `Serves the catalog API under /api/v1/catalog and Prometheus metrics on
/metrics. The provider config is re-read on a schedule and on
POST /api/v1/catalog/reload.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(a.cfg.Store.Path, log)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	sched, err := scheduler.New(log)
	if err != nil {
		return err
	}
	if err := tasks.RegisterReloadProviderConfigTask(sched, a.router, a.cfg.Catalog.ReloadCron); err != nil {
		return err
	}
	if err := tasks.RegisterPruneLookupCacheTask(sched, a.cache, log); err != nil {
		return err
	}
	sched.Start(ctx)

	server := api.NewServer(a.router, db, sched, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(a.cfg.Server.Address())
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return errors.Join(err, server.Shutdown(shutdownCtx), sched.Stop())
}
