package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ilkoid/agribot/internal/server"
	"github.com/ilkoid/agribot/pkg/imageprep"
	"github.com/ilkoid/agribot/pkg/utils"
)

// sweepInterval: как часто вычищаются простаивающие сессии без трафика.
const sweepInterval = time.Minute

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the AgriBot HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	app, err := initialize(configPath, "")
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			utils.Error("Shutdown cleanup failed", "error", err)
		}
	}()

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	srv := server.New(app.cfg.Server, server.Deps{
		Chat:           app.orch,
		MaxUploadBytes: app.cfg.Images.MaxUploadMB * imageprep.MB,
		Observer:       app.metrics,
		Metrics:        app.metrics.Handler(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		sweepSessions(gctx, app)
		return nil
	})

	return g.Wait()
}

// sweepSessions периодически запускает вытеснение по TTL.
func sweepSessions(ctx context.Context, app *components) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			utils.Debug("Sessions swept", "active", app.sessions.Len())
		}
	}
}
