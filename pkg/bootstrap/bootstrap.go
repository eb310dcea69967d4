// Package bootstrap brings up the dependencies shared by every storefront
// binary: environment, config, logger and database.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/ayurkart/storefront-backend/pkg/config"
	"github.com/ayurkart/storefront-backend/pkg/db"
	"github.com/ayurkart/storefront-backend/pkg/logger"
	"github.com/ayurkart/storefront-backend/pkg/migrate"
)

type Options struct {
	Service string
	// SkipDevMigrations leaves the schema alone even in dev with auto-migrate on.
	SkipDevMigrations bool
}

// Runtime owns the shared dependencies. Close releases everything
// registered through Defer in reverse order.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Start loads .env when present, reads config, and opens the database.
// boot logs anything that happens before the configured logger exists.
func Start(ctx context.Context, opts Options, boot *logger.Logger) (*Runtime, error) {
	if err := godotenv.Load(); err != nil && boot != nil {
		boot.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logg := logger.New(logger.Options{
		ServiceName: opts.Service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	rt := &Runtime{Config: cfg, Logger: logg, DB: client}
	rt.Defer("database", client.Close)

	if !opts.SkipDevMigrations {
		if err := migrate.MaybeRunDev(ctx, cfg, logg, client); err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("dev migrations: %w", err)
		}
	}
	return rt, nil
}

func (r *Runtime) Defer(name string, fn func() error) {
	r.closers = append(r.closers, closer{name: name, fn: fn})
}

func (r *Runtime) Close(ctx context.Context) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.fn(); err != nil {
			r.Logger.Error(r.Logger.WithField(ctx, "resource", c.name), "close failed", err)
		}
	}
	r.closers = nil
}
