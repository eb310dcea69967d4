package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/enums"
)

// InventoryMovement is an append-only stock history entry.
type InventoryMovement struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID     uuid.UUID          `gorm:"column:product_id;type:uuid;not null"`
	MovementType  enums.MovementType `gorm:"column:movement_type;type:text;not null"`
	Quantity      int                `gorm:"column:quantity;not null"`
	Reason        string             `gorm:"column:reason;not null"`
	ReferenceID   *uuid.UUID         `gorm:"column:reference_id;type:uuid"`
	ReferenceType *string            `gorm:"column:reference_type"`
	CreatedBy     *uuid.UUID         `gorm:"column:created_by;type:uuid"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (m *InventoryMovement) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
