package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/atlas-erp/atlas-payroll/internal/app"
	"github.com/atlas-erp/atlas-payroll/internal/authz"
	"github.com/atlas-erp/atlas-payroll/internal/identity"
	"github.com/atlas-erp/atlas-payroll/internal/payroll"
	"github.com/atlas-erp/atlas-payroll/internal/platform/cache"
	"github.com/atlas-erp/atlas-payroll/internal/platform/db"
	"github.com/atlas-erp/atlas-payroll/internal/shared"
	"github.com/atlas-erp/atlas-payroll/jobs"
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

	logger := app.NewLogger(cfg)

	rates, err := cfg.Rates()
	if err != nil {
		logger.Error("parse payroll rates", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	identityService := identity.NewService(identity.NewRepository(pool))

	authzCache := authz.NewCache(redisClient, cfg.AuthzCacheTTL)
	authzService := authz.NewService(pool, authzCache, logger)

	auditLogger := shared.NewAuditLogger(pool)

	payrollRepo := payroll.NewRepository(pool)
	payrollService := payroll.NewService(payrollRepo, identityService, authzService, auditLogger, rates, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPayrollRecalculate, Handler: jobs.NewRecalculateHandler(payrollService, logger)},
			{Type: jobs.TaskPayrollIntegrity, Handler: jobs.NewIntegrityHandler(payrollService, redisClient, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 1 * * *", Task: jobs.NewIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
