package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/animequotestudio/studio/internal/cache"
	"github.com/animequotestudio/studio/internal/classify"
	"github.com/animequotestudio/studio/internal/config"
	"github.com/animequotestudio/studio/internal/database"
	"github.com/animequotestudio/studio/internal/ingest"
	"github.com/animequotestudio/studio/internal/logging"
	"github.com/animequotestudio/studio/internal/metrics"
	"github.com/animequotestudio/studio/internal/queue"
	"github.com/animequotestudio/studio/internal/scheduler"
	"github.com/animequotestudio/studio/internal/stats"
)

// The worker drains the stats event queue and folds view/download
// events into the aggregate counters.
func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Cache invalidation is optional; stats just go stale if redis is
	// down.
	var statsCache stats.StatsCache
	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warnf("Redis unavailable, running without cache invalidation: %v", err)
	} else {
		defer redisCache.Close()
		statsCache = redisCache
	}

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	// Metrics server
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Warnf("Metrics server stopped: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(ctx)
		}()
	}

	aggregator := stats.NewAggregator(repo, statsCache, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.ConsumeEvents(ctx, aggregator.Handle); err != nil {
		logger.Fatalf("Failed to start consuming events: %v", err)
	}

	// Periodic maintenance; ingest and classify only run here when an
	// interval is configured, otherwise they stay admin-triggered.
	var locker scheduler.Locker
	if redisCache != nil {
		locker = redisCache
	}
	sched := scheduler.New(locker, logger)
	sched.Add(scheduler.Task{
		Name:     "refresh_stats",
		Interval: cfg.Scheduler.StatsRefreshInterval,
		Run:      repo.RefreshQuoteCount,
	})
	ingestor := ingest.New(cfg.Ingest, repo, logger)
	sched.Add(scheduler.Task{
		Name:     "ingest",
		Interval: cfg.Scheduler.IngestInterval,
		Run: func(ctx context.Context) error {
			_, err := ingestor.Run(ctx)
			return err
		},
	})
	chat := classify.NewChatClient(
		cfg.Classifier.BaseURL,
		cfg.Classifier.APIKey,
		cfg.Classifier.Model,
		cfg.Classifier.Temperature,
		cfg.Classifier.MaxAttempts,
		cfg.Classifier.BackoffBase,
		cfg.Classifier.Timeout,
	)
	classifier := classify.NewClassifier(cfg.Classifier, repo, chat, logger)
	sched.Add(scheduler.Task{
		Name:     "classify",
		Interval: cfg.Scheduler.ClassifyInterval,
		Run: func(ctx context.Context) error {
			_, err := classifier.ClassifyBatch(ctx, 0)
			return err
		},
	})
	sched.Start()
	defer sched.Stop()

	logger.Info("Stats worker started")

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down worker...")
	cancel()
	logger.Info("Worker stopped")
}
