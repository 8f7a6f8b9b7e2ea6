package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/courseflow/courseflow/internal/pkg/logger"
	"github.com/courseflow/courseflow/internal/repository"
)

func main() {
	logger.InitBootstrap()

	app, err := initializeApplication()
	if err != nil {
		logger.S().Errorf("startup failed: %v", err)
		os.Exit(1)
	}
	defer app.Cleanup()

	if err := logger.Init(logger.OptionsFromConfig(app.Config.Log)); err != nil {
		logger.S().Errorf("logger init failed: %v", err)
		os.Exit(1)
	}

	if err := run(app); err != nil {
		logger.S().Errorf("server exited with error: %v", err)
		os.Exit(1)
	}
}

func run(app *Application) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := repository.EnsureSchema(migrateCtx, app.DB); err != nil {
		return err
	}

	if err := app.Workers.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.With(zap.String("component", "server")).Info("listening",
			zap.String("addr", app.Server.Addr),
		)
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.With(zap.String("component", "server")).Info("shutting down")

		shutdownTimeout := time.Duration(app.Config.Server.ShutdownTimeoutSeconds) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := app.Server.Shutdown(shutdownCtx)

		// Workers stop after the HTTP surface so intake rejections during
		// drain are the server's, not the queue's.
		app.Workers.Stop()
		return err
	})

	return g.Wait()
}
