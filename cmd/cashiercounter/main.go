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

	"github.com/odyssey-erp/cashiercounter/internal/app"
	"github.com/odyssey-erp/cashiercounter/internal/cashier"
	"github.com/odyssey-erp/cashiercounter/internal/discount"
	"github.com/odyssey-erp/cashiercounter/internal/incentive"
	"github.com/odyssey-erp/cashiercounter/internal/observability"
	"github.com/odyssey-erp/cashiercounter/internal/platform/cache"
	"github.com/odyssey-erp/cashiercounter/internal/platform/db"
	"github.com/odyssey-erp/cashiercounter/internal/purchase"
	"github.com/odyssey-erp/cashiercounter/internal/rbac"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
	"github.com/odyssey-erp/cashiercounter/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, serving uncached", slog.Any("error", err))
	}
	var store *cache.Store
	if redisClient != nil {
		store = cache.NewStore(redisClient, cfg.CachePrefix, cfg.CacheTTL).WithLogger(logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{Source: rbacService, Logger: logger, Header: cfg.ActorHeader}

	discountRepo := discount.NewRepository(dbpool)
	purchaseRepo := purchase.NewRepository(dbpool)
	engine := discount.NewEngine(
		discountRepo,
		discountRepo,
		purchaseRepo,
		cfg.Treatment(),
	)

	purchaseService := purchase.NewService(purchaseRepo, engine, rbac.NewChecker(rbacService),
		purchase.ServiceConfig{ApprovalThreshold: cfg.ApprovalThreshold}, logger)
	discountService := discount.NewService(discountRepo, store, logger)
	cashierService := cashier.NewService(cashier.NewRepository(dbpool), shared.NewIdempotencyStore(dbpool), logger)
	reports := incentive.NewReports(incentive.NewRepository(dbpool), store)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBACMiddleware:     rbacMiddleware,
		PurchaseHandler:    purchase.NewHandler(logger, purchaseService, rbacMiddleware),
		DiscountHandler:    discount.NewHandler(logger, discountService, rbacMiddleware),
		CashierHandler:     cashier.NewHandler(logger, cashierService, rbacMiddleware),
		IncentiveHandler:   incentive.NewHandler(logger, reports, jobClient, rbacMiddleware),
		PermissionsHandler: rbac.NewHandler(logger, rbacService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            observability.NewMetrics(),
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
