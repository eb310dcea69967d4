package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ayurkart/storefront-backend/pkg/enums"
)

// OrderCancelledEvent is emitted in the same transaction as the status flip.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID           `json:"order_id"`
	UserID         uuid.UUID           `json:"user_id"`
	PreviousStatus enums.OrderStatus   `json:"previous_status"`
	PaymentStatus  enums.PaymentStatus `json:"payment_status"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	Reason         string              `json:"reason"`
	CancelledBy    uuid.UUID           `json:"cancelled_by"`
	CancelledAt    time.Time           `json:"cancelled_at"`
}

// OrderDeletedEvent is emitted when an admin soft deletes an order.
type OrderDeletedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Reason         string            `json:"reason"`
	DeletedBy      uuid.UUID         `json:"deleted_by"`
	DeletedAt      time.Time         `json:"deleted_at"`
}

// OrderRefundedEvent is emitted after the gateway accepted a refund.
type OrderRefundedEvent struct {
	OrderID         uuid.UUID       `json:"order_id"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	GatewayRefundID string          `json:"gateway_refund_id"`
	TransactionID   string          `json:"transaction_id"`
	ProcessedAt     time.Time       `json:"processed_at"`
}

// OrderRefundFailedEvent is emitted when the gateway rejected a refund.
type OrderRefundFailedEvent struct {
	OrderID uuid.UUID       `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason"`
	Error   string          `json:"error"`
}

// Followup effects a cancellation performs after the status write commits.
const (
	FollowupInventoryRestore = "inventory_restore"
	FollowupRefund           = "refund"
)

// OrderFollowupFailedEvent surfaces a best-effort cancellation step that failed
// so it can be retried or handled by an operator.
type OrderFollowupFailedEvent struct {
	OrderID   uuid.UUID  `json:"order_id"`
	Effect    string     `json:"effect"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	Quantity  int        `json:"quantity,omitempty"`
	Error     string     `json:"error"`
}
