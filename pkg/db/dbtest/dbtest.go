// Package dbtest opens isolated in-memory sqlite databases carrying the
// storefront schema.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/db"
)

var seq atomic.Int64

// New returns a db client backed by a fresh in-memory sqlite database.
func New(t testing.TB) *db.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// a single connection keeps the shared in-memory database alive and
	// serializes transactions the way sqlite expects.
	sqlDB.SetMaxOpenConns(1)

	client := db.Wrap(conn)
	if err := client.EnsureSQLiteSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
