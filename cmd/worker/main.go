package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/cashiercounter/internal/app"
	"github.com/odyssey-erp/cashiercounter/internal/discount"
	"github.com/odyssey-erp/cashiercounter/internal/incentive"
	jobmetrics "github.com/odyssey-erp/cashiercounter/internal/jobs"
	"github.com/odyssey-erp/cashiercounter/internal/observability"
	"github.com/odyssey-erp/cashiercounter/internal/platform/cache"
	"github.com/odyssey-erp/cashiercounter/internal/platform/db"
	"github.com/odyssey-erp/cashiercounter/internal/purchase"
	"github.com/odyssey-erp/cashiercounter/internal/rbac"
	"github.com/odyssey-erp/cashiercounter/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: int32(cfg.IncentiveWorkers + 2)})
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
	store := cache.NewStore(redisClient, cfg.CachePrefix, cfg.CacheTTL).WithLogger(logger)

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

	discountRepo := discount.NewRepository(pool)
	scheduler := incentive.NewScheduler(incentive.Deps{
		Promotions: discountRepo,
		Suppliers:  discountRepo,
		Turnover:   purchase.NewRepository(pool),
		Tiers:      discount.NewCachedLookups(discountRepo, store),
		Snapshots:  incentive.NewRepository(pool),
		CreditNote: incentive.NewRepository(pool),
		Recipients: rbac.NewService(pool),
		Notifier:   incentive.NewMailNotifier(jobClient),
		Cache:      store,
	}, incentive.Config{
		Workers:          cfg.IncentiveWorkers,
		ReminderInterval: cfg.ReminderInterval,
		ManagerRole:      cfg.ManagerRole,
		RetentionDays:    cfg.RetentionDays,
		Currency:         cfg.Currency,
	}, logger)

	obs := observability.NewMetrics()
	metrics := jobmetrics.NewMetrics(obs.Registerer())
	if cfg.WorkerMetricsAddr != "" {
		go serveMetrics(ctx, logger, cfg.WorkerMetricsAddr, obs.Handler())
	}
	incentiveJob := jobs.NewIncentiveJob(scheduler, logger, metrics)
	mailer := jobs.NewMailer(jobs.MailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: append(incentiveJob.Handlers(),
			jobs.TaskHandler{Type: jobs.TaskTypeSendEmail, Handler: mailer.Handle},
		),
		Cron: jobs.CronRegistrations(cfg.CronDaily, cfg.CronWeekly, cfg.CronCleanup),
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

// serveMetrics exposes the worker's job metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}()
	logger.Info("worker metrics listening", slog.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("worker metrics server", slog.Any("error", err))
	}
}
