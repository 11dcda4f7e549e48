package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Queue      QueueConfig
	Auth       AuthConfig
	Studio     StudioConfig
	Classifier ClassifierConfig
	Ingest     IngestConfig
	Metrics    MetricsConfig
	Tracing    TracingConfig
	Logging    LoggingConfig
	Scheduler  SchedulerConfig
}

// SchedulerConfig holds intervals for the worker's periodic tasks. A
// zero interval disables the task.
type SchedulerConfig struct {
	StatsRefreshInterval time.Duration
	IngestInterval       time.Duration
	ClassifyInterval     time.Duration
}

// LoggingConfig holds structured logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string
	IngestKey string
}

// StudioConfig holds image export configuration
type StudioConfig struct {
	CanvasWidth   int
	CanvasHeight  int
	MarginX       int
	MaxFontSize   int
	MinFontSize   int
	FontSizeStep  int
	MaxLines      int
	LineSpacing   int
	WatermarkText string
}

// ClassifierConfig holds emotion classifier configuration
type ClassifierConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float64
	SubBatchSize int
	DefaultLimit int
	MaxLimit     int
	MaxAttempts  int
	BackoffBase  time.Duration
	Threshold    float64
	Timeout      time.Duration
}

// IngestConfig holds quote ingestion configuration
type IngestConfig struct {
	UpstreamURL string
	Source      string
	ChunkSize   int
	Timeout     time.Duration
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// ValidateAdmin checks the configuration required by the admin endpoints.
// The API still serves the public surface without these, so the caller
// logs the result at startup rather than failing outright; the affected
// endpoints then refuse cleanly at request time.
func (c *Config) ValidateAdmin() error {
	if c.Auth.IngestKey == "" {
		return fmt.Errorf("auth.ingestKey is required for admin endpoints")
	}
	if c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier.apiKey is required for classification")
	}
	return nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Scheduler defaults; ingest and classify stay manual unless an
	// interval is configured
	viper.SetDefault("scheduler.statsRefreshInterval", "10m")
	viper.SetDefault("scheduler.ingestInterval", "0")
	viper.SetDefault("scheduler.classifyInterval", "0")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "quotestudio")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Storage defaults
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accessKeyID", "minioadmin")
	viper.SetDefault("storage.secretAccessKey", "minioadmin")
	viper.SetDefault("storage.bucketName", "exports")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.useSSL", false)

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Auth defaults
	viper.SetDefault("auth.jwtSecret", "")
	viper.SetDefault("auth.ingestKey", "")

	// Studio defaults, matching the 1200x630 social-card layout
	viper.SetDefault("studio.canvasWidth", 1200)
	viper.SetDefault("studio.canvasHeight", 630)
	viper.SetDefault("studio.marginX", 120)
	viper.SetDefault("studio.maxFontSize", 56)
	viper.SetDefault("studio.minFontSize", 26)
	viper.SetDefault("studio.fontSizeStep", 2)
	viper.SetDefault("studio.maxLines", 4)
	viper.SetDefault("studio.lineSpacing", 14)
	viper.SetDefault("studio.watermarkText", "AnimeQuoteStudio.com")

	// Classifier defaults
	viper.SetDefault("classifier.baseURL", "https://api.openai.com/v1")
	viper.SetDefault("classifier.apiKey", "")
	viper.SetDefault("classifier.model", "gpt-4o-mini")
	viper.SetDefault("classifier.temperature", 0.2)
	viper.SetDefault("classifier.subBatchSize", 20)
	viper.SetDefault("classifier.defaultLimit", 100)
	viper.SetDefault("classifier.maxLimit", 200)
	viper.SetDefault("classifier.maxAttempts", 3)
	viper.SetDefault("classifier.backoffBase", "300ms")
	viper.SetDefault("classifier.threshold", 0.55)
	viper.SetDefault("classifier.timeout", "60s")

	// Ingest defaults
	viper.SetDefault("ingest.upstreamURL", "https://yurippe.vercel.app/api/quotes")
	viper.SetDefault("ingest.source", "yurippe")
	viper.SetDefault("ingest.chunkSize", 500)
	viper.SetDefault("ingest.timeout", "30s")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "quotestudio")
	viper.SetDefault("tracing.jaegerEndpoint", "http://localhost:14268/api/traces")
}
