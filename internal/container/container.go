package container

import (
	"context"
	"fmt"

	"citypee/internal/config"
	"citypee/internal/dataset"
	"citypee/internal/duplicate"
	"citypee/internal/metrics"
	"citypee/internal/properties"
	"citypee/internal/ratelimit"
	"citypee/internal/repository"
	"citypee/internal/service"
	"citypee/internal/summarycache"
	"citypee/internal/validation"
	"citypee/pkg/database"
	"citypee/pkg/logger"
	"citypee/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	RedisClient *redis.Client
	DB          *database.PostgresDB

	Dataset     *dataset.FileProvider
	Suggestions repository.SuggestionRepository
	Limiter     ratelimit.Limiter
	Recorder    *metrics.Recorder
	Collector   metrics.Collector
	Cache       summarycache.Store

	SuggestionService *service.SuggestionService
	SummaryService    *service.SummaryService
}

// New creates a new dependency injection container. Redis is optional: when
// it cannot be reached the in-memory limiter and cache are used instead. A
// configured database must be reachable.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Component("redis").Logger)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Redis client, using in-memory rate limiting and caching")
		} else {
			c.RedisClient = client
			log.Info("Redis client initialized successfully")
		}
	} else {
		log.Info("Redis URL not configured, using in-memory rate limiting and caching")
	}

	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, cfg.DBAutoMigrate)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = db
		c.Suggestions = repository.NewPostgresSuggestionRepository(db)
		log.Info("Storing suggestions in Postgres")
	} else {
		c.Suggestions = repository.NewMemorySuggestionRepository()
		log.Info("Database URL not configured, storing suggestions in memory")
	}

	registry, err := properties.Default()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load property catalogue: %w", err)
	}

	level, err := metrics.ParseLevel(cfg.MetricsLevel)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Recorder = metrics.NewRecorder(metrics.Config{
		Enabled:        cfg.MetricsEnabled,
		Level:          level,
		MaxLabelValues: cfg.MetricsMaxLabelValues,
		SamplingRate:   cfg.MetricsSamplingRate,
		LatencyBuffer:  cfg.MetricsLatencyBuffer,
	}, log)

	c.Collector, err = metrics.NewCollector(metrics.CollectorConfig{
		Source:  cfg.MetricsSource,
		URL:     cfg.MetricsSourceURL,
		Timeout: cfg.MetricsSourceTimeout,
	}, c.Recorder, log)
	if err != nil {
		c.Close()
		return nil, err
	}

	limits := ratelimit.Config{Limit: cfg.RateLimitMax, Window: cfg.RateLimitWindow}
	if c.RedisClient != nil {
		c.Limiter = ratelimit.NewRedisLimiter(c.RedisClient, limits)
		c.Cache = summarycache.NewRedisStore(c.RedisClient)
	} else {
		c.Limiter = ratelimit.NewMemoryLimiter(limits)
		c.Cache = summarycache.NewMemoryStore()
	}

	c.Dataset = dataset.NewFileProvider(cfg.ToiletDataPath, cfg.DatasetCacheTTL, log)
	detector := duplicate.NewDetector(c.Dataset, c.Suggestions, cfg.DuplicateThresholdMeters, log)
	engine := validation.NewEngine(registry)

	c.SuggestionService = service.NewSuggestionService(engine, detector, c.Limiter, c.Suggestions, c.Recorder, log)
	c.SummaryService = service.NewSummaryService(c.Recorder, c.Cache, c.Collector, cfg.SummaryCacheTTL, log)

	log.WithFields(map[string]interface{}{
		"properties":     registry.Len(),
		"metrics_level":  c.Recorder.Level(),
		"metrics_source": c.Collector.Source(),
		"redis":          c.HasRedis(),
		"database":       c.DB != nil,
	}).Info("Container initialized")

	return c, nil
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// Close releases external connections. It is safe to call more than once.
func (c *Container) Close() {
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.WithError(err).Warn("Failed to close Redis connection")
		}
		c.RedisClient = nil
	}
	if c.DB != nil {
		c.DB.Close()
		c.DB = nil
	}
}
