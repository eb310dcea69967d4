package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/enums"
)

// Order is a customer purchase. Rows are never physically removed; deletion
// flips the status and stamps the deleted_* columns.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID             uuid.UUID           `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	Status             enums.OrderStatus   `gorm:"column:status;type:text;not null;default:pending" json:"status"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:pending" json:"payment_status"`
	TotalAmount        decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null" json:"total_amount"`
	RefundStatus       enums.RefundStatus  `gorm:"column:refund_status;type:text;not null;default:none" json:"refund_status"`
	RefundAmount       *decimal.Decimal    `gorm:"column:refund_amount;type:numeric(12,2)" json:"refund_amount,omitempty"`
	RefundReference    *string             `gorm:"column:refund_reference" json:"refund_reference,omitempty"`
	RefundProcessedAt  *time.Time          `gorm:"column:refund_processed_at" json:"refund_processed_at,omitempty"`
	CancelledAt        *time.Time          `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason *string             `gorm:"column:cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID          `gorm:"column:cancelled_by;type:uuid" json:"cancelled_by,omitempty"`
	DeletedAt          *time.Time          `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
	DeletedBy          *uuid.UUID          `gorm:"column:deleted_by;type:uuid" json:"deleted_by,omitempty"`
	DeletionReason     *string             `gorm:"column:deletion_reason" json:"deletion_reason,omitempty"`
	Items              []OrderItem         `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// IsDeleted reports whether the order was soft deleted.
func (o *Order) IsDeleted() bool {
	return o.DeletedAt != nil || o.Status == enums.OrderStatusDeleted
}
