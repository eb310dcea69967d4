package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/db/models"
)

// Repository defines persistence operations for orders and their payment transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	CancelIfEligible(ctx context.Context, orderID uuid.UUID, update CancelUpdate) (bool, error)
	MarkDeleted(ctx context.Context, orderID uuid.UUID, update DeleteUpdate) (bool, error)
	MarkRefundProcessing(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error
	MarkRefundFailed(ctx context.Context, orderID uuid.UUID) error
	CompleteRefund(ctx context.Context, orderID uuid.UUID, reference string, processedAt time.Time) error
	FindCapturedPayment(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error)
	CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error
}

// CancelUpdate carries the columns written when an order is cancelled.
type CancelUpdate struct {
	At     time.Time
	Reason string
	By     uuid.UUID
}

// DeleteUpdate carries the columns written when an order is soft deleted.
type DeleteUpdate struct {
	At     time.Time
	Reason string
	By     uuid.UUID
}
