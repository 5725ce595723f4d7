// Standalone scheduler worker. Runs the campaign polling loop without the
// HTTP API, for deployments that separate the web tier from send workers.
// Multiple instances coordinate through the database claim, so running this
// alongside the API server's embedded loop is safe.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"outreach-server/internal/bootstrap"
	"outreach-server/internal/config"
	"outreach-server/internal/observability"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := observability.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %s", err)
	}

	deps, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize dependencies: %s", err)
	}
	defer deps.Cleanup()

	logger.Info(ctx, "Starting scheduler worker...")
	go deps.Scheduler.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "Shutting down scheduler worker...")
	deps.Scheduler.Stop()
	cancel()
}
