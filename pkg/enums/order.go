package enums

import "slices"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusDeleted    OrderStatus = "deleted"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
	OrderStatusDelivered, OrderStatusCancelled, OrderStatusDeleted,
}

// CancellableOrderStatuses are the states a cancellation may start from.
var CancellableOrderStatuses = []OrderStatus{OrderStatusPending, OrderStatusProcessing}

func (s OrderStatus) Cancellable() bool { return slices.Contains(CancellableOrderStatuses, s) }

// Terminal states accept no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusDeleted
}

// PaymentStatus is shared by orders and payment_transactions rows.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

var PaymentStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed}

type RefundStatus string

const (
	RefundStatusNone       RefundStatus = "none"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusFailed     RefundStatus = "failed"
)

var RefundStatuses = []RefundStatus{
	RefundStatusNone, RefundStatusProcessing, RefundStatusCompleted, RefundStatusFailed,
}
