package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/bakehouse-erp/bakehouse-erp/internal/app"
	"github.com/bakehouse-erp/bakehouse-erp/internal/finishedgoods"
	"github.com/bakehouse-erp/bakehouse-erp/internal/materials"
	"github.com/bakehouse-erp/bakehouse-erp/internal/observability"
	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/cache"
	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/db"
	"github.com/bakehouse-erp/bakehouse-erp/jobs"
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
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	materialsRepo := materials.NewRepository(pool)
	materialsService := materials.NewService(materialsRepo, nil)

	goodsRepo := finishedgoods.NewRepository(pool)
	stockCache := finishedgoods.NewStockCache(redisClient, cfg.StockCacheTTL)
	goodsService := finishedgoods.NewService(goodsRepo, stockCache, nil)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	mailer := jobs.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	jobMetrics := observability.NewJobMetrics(nil)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Metrics:   jobMetrics,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: jobs.NewSendEmailHandler(mailer, logger)},
			{Type: jobs.TaskTypeLedgerIntegrity, Handler: jobs.NewLedgerIntegrityHandler(pool, logger, jobMetrics)},
			{Type: jobs.TaskTypeLotExpiry, Handler: jobs.NewLotExpiryHandler(goodsService, logger)},
			{Type: jobs.TaskTypeLowStockScan, Handler: jobs.NewLowStockScanHandler(materialsService, goodsService, client, cfg.AlertRecipient, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: jobs.NewLedgerIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
			{Spec: "10 0 * * *", Task: jobs.NewLotExpiryTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 6 * * *", Task: jobs.NewLowStockScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
