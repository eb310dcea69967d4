package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelIfEligible flips the order to cancelled only while its status still
// allows it. A false result means another writer got there first.
func (r *repository) CancelIfEligible(ctx context.Context, orderID uuid.UUID, update CancelUpdate) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ? AND deleted_at IS NULL", orderID, enums.CancellableOrderStatuses).
		Updates(map[string]any{
			"status":              enums.OrderStatusCancelled,
			"cancelled_at":        update.At,
			"cancellation_reason": update.Reason,
			"cancelled_by":        update.By,
			"updated_at":          update.At,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkDeleted soft deletes the order unless it is already deleted.
func (r *repository) MarkDeleted(ctx context.Context, orderID uuid.UUID, update DeleteUpdate) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND deleted_at IS NULL", orderID).
		Updates(map[string]any{
			"status":          enums.OrderStatusDeleted,
			"deleted_at":      update.At,
			"deleted_by":      update.By,
			"deletion_reason": update.Reason,
			"updated_at":      update.At,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkRefundProcessing(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error {
	return r.updateOrder(ctx, orderID, map[string]any{
		"refund_status": enums.RefundStatusProcessing,
		"refund_amount": amount,
	})
}

func (r *repository) MarkRefundFailed(ctx context.Context, orderID uuid.UUID) error {
	return r.updateOrder(ctx, orderID, map[string]any{
		"refund_status": enums.RefundStatusFailed,
	})
}

func (r *repository) CompleteRefund(ctx context.Context, orderID uuid.UUID, reference string, processedAt time.Time) error {
	return r.updateOrder(ctx, orderID, map[string]any{
		"refund_status":       enums.RefundStatusCompleted,
		"refund_reference":    reference,
		"refund_processed_at": processedAt,
	})
}

// FindCapturedPayment returns the earliest completed capture that carries a
// gateway payment reference.
func (r *repository) FindCapturedPayment(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Where("status = ?", enums.PaymentStatusCompleted).
		Where("gateway_refund_id IS NULL").
		Where("gateway_payment_id IS NOT NULL AND gateway_payment_id <> ''").
		Order("created_at ASC").
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	if txn == nil {
		return errors.New("payment transaction required")
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) updateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
