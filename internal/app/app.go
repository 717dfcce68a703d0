// Package app holds the start-up wiring shared by the server, the worker and the jobs.
package app

import (
	"context" // Startup timeouts
	"fmt"     // Error formatting
	"time"    // Timeouts

	"clube_beneficios/internal/cashback" // Cashback split
	"clube_beneficios/internal/config"   // Configuration
	"clube_beneficios/internal/db"       // Database connections
	"clube_beneficios/internal/metrics"  // Prometheus collectors
	"clube_beneficios/internal/tenant"   // Club databases

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/gorm"                 // GORM ORM library
)

// SetupLogger configures the standard logrus logger: text in development, JSON in production
func SetupLogger(cfg *config.Config) {
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// Tenants bundles the master database with the club database cache
type Tenants struct {
	Master   *gorm.DB
	Cache    *tenant.Cache
	Resolver *tenant.Resolver
}

// OpenTenants connects to the master database and prepares lazy club connections
func OpenTenants(cfg *config.Config, m *metrics.Metrics) (*Tenants, error) {
	master, err := db.Open(cfg.DBDriver, cfg.MasterDSN)
	if err != nil {
		return nil, fmt.Errorf("master database: %w", err)
	}
	opener := tenant.DSNOpener(func(dsn string) (*gorm.DB, error) {
		return db.Open(cfg.DBDriver, dsn)
	}, cfg.TenantDSN)
	cache := tenant.NewCache(opener, cfg.TenantIdleTTL)
	cache.OnSizeChange = m.TenantPoolSize
	return &Tenants{Master: master, Cache: cache, Resolver: tenant.NewResolver(master, cache)}, nil
}

// Close releases every club pool and the master pool
func (t *Tenants) Close() {
	t.Cache.Close()
	if sqlDB, err := t.Master.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// OpenRedis returns nil when no address is configured
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		logrus.Info("REDIS_ADDR not set, caching disabled")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}

// Split reads the cashback split from the configuration
func Split(cfg *config.Config) (cashback.Split, error) {
	pcts, err := cfg.CashbackPercentages()
	if err != nil {
		return cashback.Split{}, err
	}
	return cashback.NewSplit(pcts)
}
