package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"apgc/backend/internal/config"
	"apgc/backend/internal/db"
	"apgc/backend/internal/logging"
	"apgc/backend/internal/metrics"
	"apgc/backend/internal/notify"
	"apgc/backend/internal/queue"
	"apgc/backend/internal/repository"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.Logging, "worker")
	if err != nil {
		log.Fatalf("log error: %v", err)
	}
	defer func() {
		_ = cleanup()
	}()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("worker_stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()
	repo := repository.New(pool)
	m := metrics.New()

	w := &worker{
		linker:         repo,
		sender:         notify.NewSMTPSender(cfg.SMTP, logger),
		metrics:        m,
		logger:         logger,
		backoff:        queue.Backoff,
		reconcileEvery: cfg.Worker.ReconcileInterval,
		dequeueWait:    cfg.Worker.DequeueWait,
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer func() {
			_ = client.Close()
		}()
		w.queue = queue.New(client, logger)
	} else {
		logger.Warn("redis_not_configured", "effect", "queued ticket e-mails are not consumed")
	}

	metricsSrv := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.reconcileLoop(gctx) })
	if w.queue != nil {
		g.Go(func() error { return w.consume(gctx) })
	}
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	logger.Info("worker_started", "queue", w.queue != nil, "reconcile_every", w.reconcileEvery.String())
	return g.Wait()
}
