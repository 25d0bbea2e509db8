package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/audit"
	"github.com/lalithlochan/orderpulse/internal/carrier"
	"github.com/lalithlochan/orderpulse/internal/config"
	"github.com/lalithlochan/orderpulse/internal/db"
	"github.com/lalithlochan/orderpulse/internal/feed"
	"github.com/lalithlochan/orderpulse/internal/mailer"
	"github.com/lalithlochan/orderpulse/internal/metrics"
	"github.com/lalithlochan/orderpulse/internal/notify"
	"github.com/lalithlochan/orderpulse/internal/observ"
	"github.com/lalithlochan/orderpulse/internal/redis"
	"github.com/lalithlochan/orderpulse/internal/scanner"
	"github.com/lalithlochan/orderpulse/internal/tracking"
	"github.com/lalithlochan/orderpulse/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting orderpulse",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
	)

	// Initialize database connection
	ctx := context.Background()
	dbConfig := db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}

	database, err := db.New(ctx, dbConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	logger.Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("database", cfg.DBName),
	)

	repo := db.NewRepository(database, logger)

	// Redis is a best-effort dedup pre-check; the engine runs without it.
	redisConfig := redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	var dedupe notify.DedupeCache
	redisClient, err := redis.New(ctx, redisConfig, logger)
	if err != nil {
		logger.Warn("redis unavailable, dedup cache disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
	} else {
		dedupe = redis.NewDedupeCache(redisClient, logger)
		defer redisClient.Close()
	}

	// Optional dispatch feed for downstream consumers.
	var publisher notify.FeedPublisher
	if cfg.SQSQueueURL != "" {
		producer, err := feed.NewProducer(ctx, feed.Config{
			Region:   cfg.SQSRegion,
			QueueURL: cfg.SQSQueueURL,
		}, logger)
		if err != nil {
			logger.Warn("sqs producer unavailable, dispatch feed disabled",
				zap.Error(err),
			)
		} else {
			publisher = producer
		}
	}

	// Mail transport: SES outside development, log-only otherwise.
	var mail mailer.Mailer
	if cfg.Env == "development" {
		mail = mailer.NewLogMailer(logger)
	} else {
		sesMailer, err := mailer.NewSESMailer(ctx, mailer.SESConfig{
			Region:    cfg.AWSRegion,
			FromEmail: cfg.SESFromEmail,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create SES mailer: %w", err)
		}
		mail = sesMailer
	}

	// Dispatch pipeline
	toggles := notify.NewToggleResolver(repo, logger)
	templates := notify.NewTemplateResolver(repo, logger)
	scopes := notify.NewScopeResolver(repo, cfg.SourceScopeMap, cfg.RecentOrderWindow, logger)
	dispatcher := notify.NewDispatcher(repo, toggles, repo, dedupe, publisher, logger)

	auditLog := audit.New(repo, logger)

	shippingScan := scanner.NewShippingOverdueScanner(repo, dispatcher, scopes, logger)
	paymentScan := scanner.NewPaymentReminderScanner(repo, dispatcher, scopes, logger)

	eventWorker := worker.New(repo, repo, templates, mail, auditLog, logger)

	// Carrier tracking
	retryPolicy := carrier.NewRetryPolicy(3, 500*time.Millisecond, logger)
	dhl := carrier.NewDHLAdapter(carrier.AdapterConfig{
		Endpoint: cfg.DHLTrackingURL,
		Timeout:  cfg.CarrierTimeout,
	}, retryPolicy, logger)
	dpd := carrier.NewDPDAdapter(carrier.AdapterConfig{
		Endpoint: cfg.DPDTrackingURL,
		Timeout:  cfg.CarrierTimeout,
	}, retryPolicy, logger)

	history := tracking.NewHistoryService(logger, dhl, dpd)
	reconciler := tracking.NewReconciler(history, repo, cfg.CarrierPriority, logger)

	logger.Info("dispatch and tracking pipeline initialized",
		zap.Bool("redis_dedupe", dedupe != nil),
		zap.Bool("dispatch_feed", publisher != nil),
		zap.Strings("carrier_priority", cfg.CarrierPriority),
	)

	loopCtx, loopCancel := context.WithCancel(context.Background())
	defer loopCancel()

	// Worker loop: claim and deliver queued events.
	go func() {
		ticker := time.NewTicker(cfg.WorkerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if err := eventWorker.Run(loopCtx, cfg.WorkerBatchSize); err != nil {
					logger.Error("worker run failed", zap.Error(err))
				}
			}
		}
	}()

	// Scanner loop: overdue shipments and prepayment reminders.
	go func() {
		ticker := time.NewTicker(cfg.ScanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if err := shippingScan.Run(loopCtx); err != nil {
					logger.Error("shipping-overdue scan failed", zap.Error(err))
				}
				if err := paymentScan.Run(loopCtx); err != nil {
					logger.Error("payment-reminder scan failed", zap.Error(err))
				}
			}
		}
	}()

	// Tracking sync loop: reconcile carrier history into delivery dates.
	go func() {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if err := reconciler.Sync(loopCtx); err != nil {
					logger.Error("tracking sync failed", zap.Error(err))
				}
			}
		}
	}()

	logger.Info("background loops started",
		zap.Duration("worker_interval", cfg.WorkerInterval),
		zap.Duration("scan_interval", cfg.ScanInterval),
		zap.Duration("sync_interval", cfg.SyncInterval),
	)

	// Setup router
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		loopCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
