package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bakehouse-erp/bakehouse-erp/internal/app"
	"github.com/bakehouse-erp/bakehouse-erp/internal/catalog"
	"github.com/bakehouse-erp/bakehouse-erp/internal/finishedgoods"
	"github.com/bakehouse-erp/bakehouse-erp/internal/masterdata"
	"github.com/bakehouse-erp/bakehouse-erp/internal/materials"
	"github.com/bakehouse-erp/bakehouse-erp/internal/observability"
	"github.com/bakehouse-erp/bakehouse-erp/internal/payroll"
	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/cache"
	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/db"
	"github.com/bakehouse-erp/bakehouse-erp/internal/production"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
	"github.com/bakehouse-erp/bakehouse-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Warn("redis unavailable, stock cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	productRepo := masterdata.NewRepository(pool)
	masterDataHandler := masterdata.NewHandler(productRepo)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, auditLogger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	materialsRepo := materials.NewRepository(pool)
	materialsService := materials.NewService(materialsRepo, auditLogger)
	materialsHandler := materials.NewHandler(logger, materialsService)

	payrollRepo := payroll.NewRepository(pool)
	payrollService := payroll.NewService(payrollRepo, auditLogger)
	payrollHandler := payroll.NewHandler(payrollService)

	goodsRepo := finishedgoods.NewRepository(pool)
	stockCache := finishedgoods.NewStockCache(redisClient, cfg.StockCacheTTL)
	goodsService := finishedgoods.NewService(goodsRepo, stockCache, auditLogger)
	goodsHandler := finishedgoods.NewHandler(goodsService, idempotencyStore)

	productionRepo := production.NewRepository(pool)
	productionService := production.NewService(productionRepo, catalogRepo, productRepo, materialsRepo, goodsService, auditLogger, cfg.TxRetryAttempts)
	productionHandler := production.NewHandler(productionService, idempotencyStore)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		MasterDataHandler: masterDataHandler,
		CatalogHandler:    catalogHandler,
		MaterialsHandler:  materialsHandler,
		GoodsHandler:      goodsHandler,
		ProductionHandler: productionHandler,
		PayrollHandler:    payrollHandler,
		JobHandler:        jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
