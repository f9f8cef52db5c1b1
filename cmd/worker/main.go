package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/cowork-market/cowork/internal/app"
	"github.com/cowork-market/cowork/internal/observability"
	"github.com/cowork-market/cowork/internal/platform/cache"
	"github.com/cowork-market/cowork/internal/platform/db"
	"github.com/cowork-market/cowork/internal/shared"
	"github.com/cowork-market/cowork/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.UsesFakeAuth() {
		slog.Default().Error("worker requires backend auth mode")
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	backends, err := app.NewSessionBackends(cfg, pool, redisClient, logger)
	if err != nil {
		logger.Error("init session backend", slog.Any("error", err))
		os.Exit(1)
	}
	metrics := observability.NewMetrics().Jobs()
	var invalidateJob *jobs.SessionInvalidateJob
	if backends.Invalidator != nil {
		invalidateJob = jobs.NewSessionInvalidateJob(backends.Invalidator, logger, metrics)
	} else {
		logger.Warn("session cache disabled, skipping session invalidation handler")
	}
	maintenanceJob := jobs.NewMaintenanceJob(shared.NewAuditLogger(pool), shared.NewIdempotencyStore(pool), cfg.AuditRetention, logger, metrics)

	pruneTask, err := jobs.NewMaintenancePruneTask(jobs.MaintenancePrunePayload{})
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  jobs.TaskHandlers(invalidateJob, maintenanceJob),
		Cron: []jobs.CronRegistration{
			{Spec: "30 3 * * *", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
