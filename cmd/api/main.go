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

	"apgc/backend/internal/auth"
	"apgc/backend/internal/cache"
	"apgc/backend/internal/checkin"
	"apgc/backend/internal/config"
	"apgc/backend/internal/db"
	"apgc/backend/internal/http/handlers"
	"apgc/backend/internal/http/middleware"
	"apgc/backend/internal/integrations"
	"apgc/backend/internal/integrations/xendit"
	"apgc/backend/internal/logging"
	"apgc/backend/internal/metrics"
	"apgc/backend/internal/notify"
	"apgc/backend/internal/payments"
	"apgc/backend/internal/queue"
	"apgc/backend/internal/rate"
	"apgc/backend/internal/repository"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.Logging, "api")
	if err != nil {
		log.Fatalf("log error: %v", err)
	}
	defer func() {
		_ = cleanup()
	}()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api_stopped", "error", err)
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
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	repo := repository.New(pool)
	m := metrics.New()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer func() {
			_ = redisClient.Close()
		}()
	}

	var invalidator cache.Invalidator = cache.Nop{}
	if redisClient != nil {
		invalidator = cache.NewRedisInvalidator(redisClient, logger)
	}

	var uploader payments.QRUploader
	if cfg.S3.Bucket != "" {
		s3Client, err := integrations.NewS3(ctx, cfg.S3)
		if err != nil {
			return fmt.Errorf("s3: %w", err)
		}
		uploader = s3Client
	}

	gateway := xendit.NewClient(xendit.Config{
		BaseURL:       cfg.Xendit.BaseURL,
		SecretKey:     cfg.Xendit.SecretKey,
		CallbackToken: cfg.Xendit.CallbackToken,
		Timeout:       cfg.Xendit.Timeout,
		RatePerSecond: cfg.Xendit.RatePerSecond,
	}, nil, logger)
	if cfg.Xendit.CallbackToken == "" {
		logger.Warn("xendit_callback_token_missing", "effect", "all webhook deliveries will be rejected")
	}

	processor := payments.NewProcessor(payments.ProcessorConfig{
		TicketPrefix:  cfg.TicketPrefix,
		NotifyTimeout: cfg.SMTP.Timeout,
	}, payments.ProcessorDeps{
		Store:       repo,
		Verifier:    gateway,
		Sender:      buildSender(cfg, redisClient, logger),
		Invalidator: invalidator,
		Uploader:    uploader,
		Metrics:     m,
		Logger:      logger,
	})

	h := handlers.New(handlers.Deps{
		Store: repo,
		Registrar: payments.NewRegistrar(repo, gateway, payments.RegistrarConfig{
			Currency:   cfg.Invoice.Currency,
			SuccessURL: cfg.Invoice.SuccessURL,
			FailureURL: cfg.Invoice.FailureURL,
		}, m, logger),
		Processor: processor,
		Validator: checkin.NewValidator(repo, m, logger),
		Operators: auth.NewOperatorAuthenticator(cfg.Operator.Login, cfg.Operator.PasswordHash),
		Metrics:   m,
	}, cfg, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger, m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	h.Register(r, rate.NewKeyedLimiter(cfg.Operator.ScanRatePerS, cfg.Operator.ScanRateBurst))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api_listening", "addr", cfg.HTTPAddr, "notify_mode", cfg.NotifyMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown", "service", "api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		processor.Wait()
		return err
	})
	return g.Wait()
}

func buildSender(cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) notify.Sender {
	switch cfg.NotifyMode {
	case config.NotifyModeQueue:
		return notify.NewQueueSender(queue.New(redisClient, logger), logger)
	case config.NotifyModeLog:
		return notify.NewLogSender(logger)
	default:
		if cfg.SMTP.Host == "" {
			logger.Warn("smtp_not_configured", "effect", "ticket e-mails will be logged only")
			return notify.NewLogSender(logger)
		}
		return notify.NewSMTPSender(cfg.SMTP, logger)
	}
}
