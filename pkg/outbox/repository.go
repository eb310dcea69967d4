package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ayurkart/storefront-backend/pkg/db/models"
)

var errNoTx = errors.New("outbox: transaction required")

// Repository owns the outbox_events table. Every method runs on the
// caller's transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Append stores a new unpublished row.
func (r *Repository) Append(tx *gorm.DB, row *models.OutboxEvent) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Create(row).Error
}

// Claim returns up to limit unpublished rows, oldest first, that have
// attempts left. Postgres locks them FOR UPDATE SKIP LOCKED so relays
// running side by side never share a row.
func (r *Repository) Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errNoTx
	}
	q := tx.Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at, id").
		Limit(limit)
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked})
	}
	var rows []models.OutboxEvent
	return rows, q.Find(&rows).Error
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return r.update(tx, id, map[string]any{"published_at": at.UTC()})
}

// RecordFailure bumps attempt_count so the row is retried on a later pass.
func (r *Repository) RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.update(tx, id, map[string]any{
		"last_error":    cause.Error(),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// Retire pins attempt_count at the ceiling so Claim never returns the row again.
func (r *Repository) Retire(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error {
	return r.update(tx, id, map[string]any{
		"last_error":    cause.Error(),
		"attempt_count": ceiling,
	})
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, cols map[string]any) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(cols).Error
}
