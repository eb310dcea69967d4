package square

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
)

var hundred = decimal.NewFromInt(100)

// RefundParams describes a refund against a previously captured Square payment.
type RefundParams struct {
	PaymentID      string
	OrderID        string
	Amount         decimal.Decimal
	Currency       string
	Reason         string
	IdempotencyKey string
}

// RefundResult is the subset of the Square refund the storefront persists.
// Raw holds the full gateway response body.
type RefundResult struct {
	ID     string
	Status string
	Raw    []byte
}

func (c *Client) buildRequest(p RefundParams) (*sq.RefundPaymentRequest, error) {
	paymentID := strings.TrimSpace(p.PaymentID)
	if paymentID == "" {
		return nil, errors.New("payment id is required")
	}
	minor := minorUnits(p.Amount)
	if minor <= 0 {
		return nil, errors.New("refund amount must be positive")
	}
	currency := sq.Currency(c.currency)
	if code := strings.ToUpper(strings.TrimSpace(p.Currency)); code != "" {
		currency = sq.Currency(code)
	}
	key := strings.TrimSpace(p.IdempotencyKey)
	if key == "" {
		key = c.newKey()
	}

	req := &sq.RefundPaymentRequest{
		IdempotencyKey: key,
		PaymentID:      &paymentID,
		AmountMoney:    &sq.Money{Amount: &minor, Currency: &currency},
	}
	if reason := refundReason(p.Reason, p.OrderID); reason != "" {
		req.Reason = &reason
	}
	return req, nil
}

// minorUnits converts a major-unit amount to paise/cents, rounding half away
// from zero.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// refundReason carries the order id in the reason text because Square
// refunds have no metadata field.
func refundReason(reason, orderID string) string {
	reason, orderID = strings.TrimSpace(reason), strings.TrimSpace(orderID)
	switch {
	case orderID == "":
		return reason
	case reason == "":
		return "order " + orderID
	default:
		return fmt.Sprintf("%s (order %s)", reason, orderID)
	}
}
