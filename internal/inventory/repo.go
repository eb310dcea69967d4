package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/db/models"
)

// Repository persists stock counters and their movement ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	IncrementStock(ctx context.Context, productID uuid.UUID, qty int) error
	CreateMovement(ctx context.Context, movement *models.InventoryMovement) error
	ListMovementsByReference(ctx context.Context, referenceID uuid.UUID) ([]models.InventoryMovement, error)
}

// ErrProductNotFound is returned when the stock row to adjust does not exist.
var ErrProductNotFound = errors.New("product not found")

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) IncrementStock(ctx context.Context, productID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock_quantity = stock_quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.InventoryMovement) error {
	if movement == nil {
		return errors.New("inventory movement required")
	}
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovementsByReference(ctx context.Context, referenceID uuid.UUID) ([]models.InventoryMovement, error) {
	var movements []models.InventoryMovement
	err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		Order("created_at ASC").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}
