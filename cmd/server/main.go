package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/inkwell/courier/internal/api"
	"github.com/inkwell/courier/internal/config"
	"github.com/inkwell/courier/internal/db"
	"github.com/inkwell/courier/internal/dispatch"
	"github.com/inkwell/courier/internal/email"
	"github.com/inkwell/courier/internal/metrics"
	"github.com/inkwell/courier/internal/ratelimiter"
	"github.com/inkwell/courier/internal/render"
	"github.com/inkwell/courier/internal/repository"
	"github.com/inkwell/courier/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	issueRepo := repository.NewPgIssueRepository(pool)
	subscriberRepo := repository.NewPgSubscriberRepository(pool)
	queueRepo := repository.NewPgQueueRepository(pool)
	sender := email.NewPostmarkClient(cfg.EmailBaseURL, cfg.EmailSender, cfg.EmailServerToken, cfg.SendTimeout)
	limiter := ratelimiter.New(cfg.SendRateLimit)
	renderer := render.New()

	publisher := service.NewPublisherService(issueRepo, logger, m.IssuesPublished.Inc)
	subscriptions := service.NewSubscriptionService(subscriberRepo, sender, cfg.BaseURL, logger)

	// ---- dispatcher pool ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	onSent, onRetried, onAbandoned := m.WorkerHooks()
	sink := dispatch.NewLogSink(logger, onAbandoned)
	dispatcher := dispatch.NewPool(cfg, queueRepo, issueRepo, renderer, sender, limiter, sink, logger, dispatch.MetricHooks{
		OnSent:    onSent,
		OnRetried: onRetried,
	})
	dispatcher.Start(workerCtx)

	// Queue depth gauge refresher; cheap COUNT(*) on an interval.
	go func() {
		ticker := time.NewTicker(cfg.IdlePollInterval * 10)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if depth, err := queueRepo.Depth(workerCtx); err == nil {
					m.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// ---- HTTP server ----
	router := api.NewRouter(publisher, subscriptions, queueRepo, subscriberRepo, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal all workers to stop claiming new tasks.
	cancelWorkers()

	// 3. Wait for in-flight workers to finish their current task.
	dispatcher.Wait()

	logger.Info("server stopped cleanly")
}
