// Package app builds the review service and its collaborators from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/at-ishikawa/reviewer/internal/bootstrap"
	"github.com/at-ishikawa/reviewer/internal/catalog"
	"github.com/at-ishikawa/reviewer/internal/config"
	"github.com/at-ishikawa/reviewer/internal/database"
	"github.com/at-ishikawa/reviewer/internal/lock"
	"github.com/at-ishikawa/reviewer/internal/review"
	"github.com/at-ishikawa/reviewer/internal/schedule"
)

// Components are the collaborators of the review service selected by configuration.
type Components struct {
	Repository schedule.Repository
	Locker     lock.Locker
	// Catalog is nil when no catalog driver is configured.
	Catalog catalog.Provider

	db    *sqlx.DB
	redis *goredis.Client
}

// Build creates the configured components.
// Connections it opens are closed by app's shutdown hooks.
func Build(cfg *config.Config, app *bootstrap.App) (*Components, error) {
	var c Components

	switch cfg.Store.Driver {
	case "memory":
		c.Repository = schedule.NewMemoryRepository()
	case "yaml":
		c.Repository = schedule.NewYAMLRepository(cfg.Store.Directory)
	case "mysql":
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("database.Open() > %w", err)
		}
		app.AddCloser("database", db)
		c.db = db
		c.Repository = schedule.NewDBRepository(db)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	switch cfg.Lock.Driver {
	case "local":
		c.Locker = lock.NewLocal()
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		app.AddCloser("redis", client)
		c.redis = client
		c.Locker = lock.NewRedis(client, lock.RedisConfig{
			Prefix:      cfg.Redis.Prefix,
			TTL:         cfg.Lock.TTL,
			WaitTimeout: cfg.Lock.WaitTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown lock driver %q", cfg.Lock.Driver)
	}

	switch cfg.Catalog.Driver {
	case "none":
	case "yaml":
		c.Catalog = catalog.NewYAMLProvider(cfg.Catalog.Directory)
	case "http":
		provider := catalog.NewHTTPProvider(catalog.HTTPConfig{
			BaseURL:          cfg.Catalog.BaseURL,
			Token:            cfg.Catalog.Token,
			Timeout:          cfg.Catalog.Timeout,
			MaxRetryAttempts: cfg.Catalog.MaxRetryAttempts,
			RetryDelay:       cfg.Catalog.RetryDelay,
		})
		app.AddCloser("catalog", provider)
		c.Catalog = provider
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Catalog.Driver)
	}

	return &c, nil
}

// NewService creates the review service backed by the components.
func (c *Components) NewService(cfg *config.Config) *review.Service {
	opts := []review.Option{
		review.WithLocker(c.Locker),
		review.WithConflictRetries(cfg.Review.ConflictRetries),
	}
	if c.Catalog != nil {
		opts = append(opts, review.WithCatalog(c.Catalog))
	}
	return review.NewService(c.Repository, opts...)
}

// DB returns the MySQL connection, or nil when records are not stored in MySQL.
func (c *Components) DB() *sqlx.DB {
	return c.db
}

// Ping checks the connections to the database and Redis, if any.
func (c *Components) Ping(ctx context.Context) error {
	if c.db != nil {
		if err := c.db.PingContext(ctx); err != nil {
			return fmt.Errorf("db.PingContext() > %w", err)
		}
	}
	if c.redis != nil {
		if err := c.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis.Ping() > %w", err)
		}
	}
	return nil
}
