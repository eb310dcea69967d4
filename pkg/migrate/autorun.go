package migrate

import (
	"context"
	"fmt"

	"github.com/ayurkart/storefront-backend/pkg/config"
	"github.com/ayurkart/storefront-backend/pkg/db"
	"github.com/ayurkart/storefront-backend/pkg/logger"
)

// MaybeRunDev prepares the schema at startup. sqlite databases always get
// the embedded sqlite schema. Postgres is migrated only in dev with the
// auto-migrate flag on; other environments run cmd/migrate explicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	switch {
	case cfg.FeatureFlags.UseSQLite:
		logg.Info(ctx, "applying sqlite schema")
		return client.EnsureSQLiteSchema(ctx)
	case !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate:
		return nil
	}

	pool, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	m, err := New(pool, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	applied, err := m.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", applied), "dev migrations applied")
	return nil
}
