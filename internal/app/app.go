// Package app wires configuration, storage and services into a runnable container
// shared by the HTTP server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sk-governance-api/internal/governance"
	"github.com/noah-isme/sk-governance-api/internal/repository"
	"github.com/noah-isme/sk-governance-api/internal/service"
	"github.com/noah-isme/sk-governance-api/pkg/cache"
	"github.com/noah-isme/sk-governance-api/pkg/config"
	"github.com/noah-isme/sk-governance-api/pkg/database"
	"github.com/noah-isme/sk-governance-api/pkg/jobs"
)

// Container holds the long-lived dependencies of the process.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *sqlx.DB
	Redis *redis.Client

	Metrics    *service.MetricsService
	Cache      *service.CacheService
	Auth       *service.AuthService
	Terms      *service.TermService
	Statistics *service.StatisticsService

	Jobs       *jobs.Queue
	Reconciler *service.ReconcileWorker
}

// New connects to Postgres and Redis and builds every service. Redis is optional: when
// it cannot be reached statistics are served uncached.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	c := &Container{Config: cfg, Logger: logger, DB: db, Metrics: service.NewMetricsService()}

	var cacheRepo service.CacheRepository
	if cfg.Stats.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
		} else {
			c.Redis = client
			cacheRepo = repository.NewCacheRepository(client, logger)
		}
	}
	c.Cache = service.NewCacheService(cacheRepo, c.Metrics, cfg.Stats.CacheTTL, logger, cacheRepo != nil)

	c.Auth = service.NewAuthService(logger, AuthConfig(cfg))

	terms := repository.NewTermRepository(db)
	c.Statistics = service.NewStatisticsService(
		terms,
		repository.NewOfficialRepository(db),
		repository.NewBarangayRepository(db),
		c.Cache,
		c.Metrics,
		governance.DefaultCapacity(),
		cfg.Terms.Location(),
		logger.Named("statistics"),
	)
	c.Terms = service.NewTermService(
		terms,
		repository.NewAuditRepository(db),
		c.Statistics,
		c.Cache,
		c.Metrics,
		validator.New(),
		logger.Named("terms"),
		TermServiceConfig(cfg),
	)

	mux := jobs.NewMux()
	c.Jobs = jobs.NewQueue("terms", mux.Dispatch, jobs.QueueConfig{
		Workers:    cfg.Terms.WorkerConcurrency,
		MaxRetries: cfg.Terms.WorkerRetries,
		RetryDelay: 30 * time.Second,
		Logger:     logger,
	})
	interval := time.Duration(0)
	if cfg.Reconcile.Enabled {
		interval = cfg.Reconcile.Interval
	}
	c.Reconciler = service.NewReconcileWorker(c.Terms, c.Jobs, interval, logger.Named("reconcile"))
	mux.Handle(service.JobTypeReconcileTerms, c.Reconciler.Handle)

	return c, nil
}

// StartBackground starts the job queue and, when enabled, the reconcile schedule.
func (c *Container) StartBackground(ctx context.Context) {
	c.Jobs.Start(ctx)
	if c.Config.Reconcile.Enabled {
		c.Reconciler.Start(ctx)
	}
}

// Close stops background work and releases connections.
func (c *Container) Close() {
	if c.Jobs != nil {
		c.Jobs.Stop()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("failed to close postgres", zap.Error(err))
		}
	}
}

// AuthConfig maps JWT settings onto the auth service.
func AuthConfig(cfg *config.Config) service.AuthConfig {
	return service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	}
}

// TermServiceConfig maps term settings onto the lifecycle policy.
func TermServiceConfig(cfg *config.Config) service.TermServiceConfig {
	return service.TermServiceConfig{
		Policy: governance.Policy{
			ReopenOnExtend: cfg.Terms.ExtendReopensCompleted,
			Dates: governance.DateValidator{
				MaxPastYears:   cfg.Terms.MaxPastYears,
				MaxFutureYears: cfg.Terms.MaxFutureYears,
			},
		},
		Location: cfg.Terms.Location(),
	}
}
