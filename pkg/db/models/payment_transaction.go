package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/enums"
)

// PaymentTransaction records a capture or refund. Refunds are new rows with a
// negative amount; existing rows are never mutated.
type PaymentTransaction struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	TransactionID    string              `gorm:"column:transaction_id;not null"`
	Amount           decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Status           enums.PaymentStatus `gorm:"column:status;type:text;not null"`
	PaymentMethod    string              `gorm:"column:payment_method;not null"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id"`
	GatewayRefundID  *string             `gorm:"column:gateway_refund_id"`
	GatewayResponse  json.RawMessage     `gorm:"column:gateway_response;type:jsonb"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (p *PaymentTransaction) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// IsRefund reports whether the row records money returned to the customer.
func (p *PaymentTransaction) IsRefund() bool {
	return p.Amount.IsNegative()
}
