package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robalyx/socialgraph/internal/bot"
	"github.com/robalyx/socialgraph/internal/export"
	"github.com/robalyx/socialgraph/internal/redis"
	"github.com/robalyx/socialgraph/internal/rest"
	"github.com/robalyx/socialgraph/internal/setup"
	"github.com/robalyx/socialgraph/internal/setup/telemetry"
	"github.com/robalyx/socialgraph/internal/statistics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// BotLogDir specifies where bot log files are stored.
const BotLogDir = "logs"

// Server timeouts.
const (
	ReadTimeout     = 5 * time.Second
	WriteTimeout    = 30 * time.Second
	ShutdownTimeout = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, telemetry.ServiceBot, BotLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(context.Background())

	if err := run(ctx, app); err != nil {
		app.Logger.Error("Bot stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, app *setup.App) error {
	// Drop edges left behind by members who opted out while we were offline
	if err := app.Engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start graph engine: %w", err)
	}

	discordBot, err := bot.New(&app.Config.Bot.Discord, app.Engine, app.Logger)
	if err != nil {
		return err
	}
	defer discordBot.Close()

	var reporter *statistics.Reporter

	if app.Config.Bot.Stats.Enabled {
		if err := app.RedisManager.Ping(ctx, redis.StatsDBIndex); err != nil {
			return err
		}

		client, err := app.RedisManager.GetClient(redis.StatsDBIndex)
		if err != nil {
			return fmt.Errorf("failed to get stats client: %w", err)
		}

		interval := time.Duration(app.Config.Bot.Stats.IntervalSeconds) * time.Second
		reporter = statistics.NewReporter(client, app.Engine, interval, app.Logger)
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(discordBot.Start)

	if app.Config.Bot.Status.Enabled {
		p.Go(func(ctx context.Context) error {
			return runStatusServer(ctx, app, reporter)
		})
	}

	if reporter != nil {
		p.Go(func(ctx context.Context) error {
			reporter.Run(ctx)
			return nil
		})
	}

	app.Logger.Info("Bot has been started. Waiting for interrupt signal to gracefully shutdown...",
		zap.String("instance_id", app.LogManager.GetInstanceID()))

	return p.Wait()
}

// runStatusServer serves the status endpoints until the context is cancelled.
func runStatusServer(ctx context.Context, app *setup.App, reporter *statistics.Reporter) error {
	graphFile, _ := app.Exporter.Path(export.FormatGEXF)

	opts := rest.Options{
		GraphFile:   graphFile,
		ExportToken: app.Config.Bot.Status.ExportToken,
	}
	if reporter != nil {
		opts.Hourly = reporter
	}

	handler, err := rest.NewServer(app.Engine, opts, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to create status server: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", app.Config.Bot.Status.Host, app.Config.Bot.Status.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		app.Logger.Info("Status server started", zap.String("addr", addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("Status server forced to shutdown", zap.Error(err))
	}

	app.Logger.Info("Status server gracefully stopped")

	return nil
}
