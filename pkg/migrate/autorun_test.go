package migrate

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayurkart/storefront-backend/pkg/config"
	"github.com/ayurkart/storefront-backend/pkg/db"
	"github.com/ayurkart/storefront-backend/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
}

func TestMaybeRunDevAppliesSQLiteSchema(t *testing.T) {
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{Driver: db.DriverSQLite, DSN: "file:autorun?mode=memory&cache=shared"}, nil)
	require.NoError(t, err)
	defer client.Close()

	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvProd},
		FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true},
	}
	require.NoError(t, MaybeRunDev(ctx, cfg, quietLogger(), client))

	for _, table := range []string{"orders", "order_items", "outbox_events", "outbox_dlq", "user_roles"} {
		var n int64
		assert.NoError(t, client.Raw(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n).Error, table)
	}
}

func TestMaybeRunDevSkipsPostgresOutsideDev(t *testing.T) {
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvProd},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	assert.NoError(t, MaybeRunDev(context.Background(), cfg, quietLogger(), nil))
}
