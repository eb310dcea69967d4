package types

import "encoding/json"

// SuccessEnvelope wraps payloads returned by the admin and health routes.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorBody is the failure payload shared by every route.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// OrderActionBody is returned by the cancel-order and delete-order functions.
type OrderActionBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"orderId"`
}

// RefundBody is returned by the process-refund function. Amount is emitted
// as a bare JSON number.
type RefundBody struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message"`
	RefundID string      `json:"refundId"`
	Amount   json.Number `json:"amount"`
}
