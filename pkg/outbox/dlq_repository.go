package outbox

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ayurkart/storefront-backend/pkg/db/models"
)

const (
	maxDLQErrorLen   = 1024
	defaultDLQWindow = 50
)

// DLQRepository records outbox rows that will never be published.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// Bury inserts entry on tx. An event already in the table is left as is,
// so a relay that crashed after burying but before retiring the row can
// settle it again.
func (r *DLQRepository) Bury(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errNoTx
	}
	if entry.ErrorMessage != nil && len(*entry.ErrorMessage) > maxDLQErrorLen {
		clipped := (*entry.ErrorMessage)[:maxDLQErrorLen]
		entry.ErrorMessage = &clipped
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&entry).Error
}

// Recent lists the newest dead letters first.
func (r *DLQRepository) Recent(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = defaultDLQWindow
	}
	var rows []models.OutboxDLQ
	err := r.db.WithContext(ctx).Order("failed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
