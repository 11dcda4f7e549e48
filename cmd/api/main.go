package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/animequotestudio/studio/internal/cache"
	"github.com/animequotestudio/studio/internal/classify"
	"github.com/animequotestudio/studio/internal/compose"
	"github.com/animequotestudio/studio/internal/config"
	"github.com/animequotestudio/studio/internal/database"
	"github.com/animequotestudio/studio/internal/ingest"
	"github.com/animequotestudio/studio/internal/ledger"
	"github.com/animequotestudio/studio/internal/logging"
	"github.com/animequotestudio/studio/internal/metrics"
	"github.com/animequotestudio/studio/internal/middleware"
	"github.com/animequotestudio/studio/internal/queue"
	"github.com/animequotestudio/studio/internal/storage"
	"github.com/animequotestudio/studio/internal/tracing"
	"github.com/animequotestudio/studio/pkg/models"
)

// quoteRepository is the slice of database.Repository the handlers read
// through.
type quoteRepository interface {
	Health(ctx context.Context) error
	GetQuote(ctx context.Context, id int64) (*models.Quote, error)
	SearchQuotes(ctx context.Context, q string, limit int) ([]*models.Quote, error)
	RandomQuote(ctx context.Context) (*models.Quote, error)
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	GetAppStats(ctx context.Context) (*models.AppStats, error)
}

// usageLedger tracks per-user counters and favorites
type usageLedger interface {
	RecordView(ctx context.Context, quoteID int64, userID, referrer string)
	ReserveDownload(ctx context.Context, userID string, limit int) (used int, ok bool)
	ReleaseDownload(ctx context.Context, userID string)
	RecordDownload(ctx context.Context, userID string, quoteID int64, backgroundName, fontName string)
	DownloadsToday(ctx context.Context, userID string) (int, error)
	ToggleFavorite(ctx context.Context, userID string, quoteID int64, want bool) error
	Favorites(ctx context.Context, userID string) ([]int64, error)
}

// exportStore archives rendered cards
type exportStore interface {
	UploadExport(ctx context.Context, userID string, quoteID int64, data []byte) (string, error)
}

type quoteIngestor interface {
	Run(ctx context.Context) (int, error)
}

type emotionClassifier interface {
	ClassifyBatch(ctx context.Context, limit int) (*models.ClassifyReport, error)
}

// API bundles handler dependencies
type API struct {
	cfg        *config.Config
	repo       quoteRepository
	cache      *cache.Cache
	storage    exportStore
	ledger     usageLedger
	composer   *compose.Composer
	ingestor   quoteIngestor
	classifier emotionClassifier
	log        *logging.Logger
}

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

	if err := cfg.ValidateAdmin(); err != nil {
		logger.Warnf("Admin endpoints not fully configured: %v", err)
	}

	// Initialize JWT secret from config
	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.Warnf("Tracing disabled: %v", err)
		} else {
			defer closer.Close()
		}
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Redis is optional; without it the API serves uncached reads and
	// the ledger falls back to advisory DB quota counts.
	var counters ledger.Counters
	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warnf("Redis unavailable, running without cache: %v", err)
		redisCache = nil
	} else {
		defer redisCache.Close()
		counters = redisCache
	}

	// Initialize storage
	stor, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// The events queue is optional as well; stats then lag until the
	// aggregate row is recomputed on read.
	var events ledger.EventPublisher
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Warnf("Queue unavailable, stats events disabled: %v", err)
	} else {
		defer q.Close()
		events = q
	}

	composer, err := compose.NewComposer(cfg.Studio)
	if err != nil {
		logger.Fatalf("Failed to initialize composer: %v", err)
	}

	led := ledger.New(repo, counters, events, logger)

	ingestor := ingest.New(cfg.Ingest, repo, logger)

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

	api := &API{
		cfg:        cfg,
		repo:       repo,
		cache:      redisCache,
		storage:    stor,
		ledger:     led,
		composer:   composer,
		ingestor:   ingestor,
		classifier: classifier,
		log:        logger,
	}

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

	// Setup router
	router := setupRouter(api, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

func setupRouter(api *API, logger *logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())
	router.HandleMethodNotAllowed = true

	limiter := middleware.NewRateLimiter(20, 40)

	// Health check
	router.GET("/health", api.healthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(limiter))
	{
		// Public catalog and quote reads
		v1.GET("/quotes/search", api.searchQuotes)
		v1.GET("/quotes/random", api.randomQuote)
		v1.GET("/quotes/:id", api.getQuote)
		v1.POST("/quotes/:id/view", middleware.OptionalJWTAuth(), api.recordView)
		v1.GET("/stats", api.getStats)
		v1.GET("/plans", api.listPlans)

		// Authenticated user surface
		me := v1.Group("/me", middleware.JWTAuth())
		{
			me.GET("/plan", api.getMyPlan)
			me.GET("/favorites", api.listFavorites)
			me.PUT("/favorites/:id", api.addFavorite)
			me.DELETE("/favorites/:id", api.removeFavorite)
			me.GET("/downloads/today", api.getDownloadsToday)
		}
		v1.POST("/quotes/:id/export", middleware.JWTAuth(), api.exportQuote)

		// Admin surface, shared-secret gated
		admin := v1.Group("/admin", middleware.SharedSecretAuth(api.cfg.Auth.IngestKey))
		{
			admin.POST("/ingest", api.runIngest)
			admin.POST("/classify", api.runClassify)
		}
	}

	return router
}
