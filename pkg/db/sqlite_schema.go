package db

import (
	"context"
	"fmt"
)

// sqliteSchema mirrors pkg/migrate/migrations for the sqlite driver used by
// local runs and tests. Postgres-only features are replaced: jsonb columns become BLOB and
// ids are assigned by model hooks instead of gen_random_uuid().
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		stock_quantity INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		payment_status TEXT NOT NULL DEFAULT 'pending',
		total_amount TEXT NOT NULL,
		refund_status TEXT NOT NULL DEFAULT 'none',
		refund_amount TEXT,
		refund_reference TEXT,
		refund_processed_at DATETIME,
		cancelled_at DATETIME,
		cancellation_reason TEXT,
		cancelled_by TEXT,
		deleted_at DATETIME,
		deleted_by TEXT,
		deletion_reason TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS payment_transactions (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		gateway_payment_id TEXT,
		gateway_refund_id TEXT,
		gateway_response BLOB,
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_movements (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		movement_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		reason TEXT NOT NULL,
		reference_id TEXT,
		reference_type TEXT,
		created_by TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS user_roles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		UNIQUE (user_id, role)
	)`,
	`CREATE TABLE IF NOT EXISTS admin_activity_log (
		id TEXT PRIMARY KEY,
		admin_user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		details BLOB,
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json BLOB NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// EnsureSQLiteSchema creates the storefront tables on a sqlite connection.
func (c *Client) EnsureSQLiteSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if err := c.conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
