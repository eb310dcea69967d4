package orders

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ayurkart/storefront-backend/api/middleware"
	"github.com/ayurkart/storefront-backend/api/responses"
	"github.com/ayurkart/storefront-backend/api/validators"
	"github.com/ayurkart/storefront-backend/internal/cancellation"
	"github.com/ayurkart/storefront-backend/internal/deletion"
	"github.com/ayurkart/storefront-backend/internal/refunds"
	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
	"github.com/ayurkart/storefront-backend/pkg/logger"
)

const (
	maxReasonLength = 500

	messageCancelled = "Order cancelled successfully"
	messageDeleted   = "Order deleted successfully"
	messageRefunded  = "Refund processed successfully"
)

type cancelOrderRequest struct {
	OrderID     string `json:"orderId" validate:"required,uuid"`
	Reason      string `json:"reason" validate:"omitempty,max=500"`
	CancelledBy string `json:"cancelledBy" validate:"omitempty,uuid"`
}

type deleteOrderRequest struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
	Reason  string `json:"reason" validate:"omitempty,max=500"`
}

type processRefundRequest struct {
	OrderID string          `json:"orderId" validate:"required,uuid"`
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason" validate:"omitempty,max=500"`
}

// CancelOrder cancels the caller-supplied order, restores stock and refunds a
// captured payment. Follow-up failures do not fail the request.
func CancelOrder(svc cancellation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "cancellation service unavailable"))
			return
		}

		actorID, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelOrderRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := cancellation.CancelOrderInput{
			OrderID: uuid.MustParse(payload.OrderID),
			Reason:  validators.Clean(payload.Reason, maxReasonLength),
			ActorID: actorID,
		}
		if payload.CancelledBy != "" {
			cancelledBy := uuid.MustParse(payload.CancelledBy)
			input.CancelledBy = &cancelledBy
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, payload.OrderID)
		}

		result, err := svc.CancelOrder(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteOrderAction(w, messageCancelled, result.OrderID.String())
	}
}

// DeleteOrder soft deletes an order on behalf of an admin.
func DeleteOrder(svc deletion.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "deletion service unavailable"))
			return
		}

		actorID, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload deleteOrderRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, payload.OrderID)
		}

		input := deletion.DeleteOrderInput{
			OrderID: uuid.MustParse(payload.OrderID),
			Reason:  validators.Clean(payload.Reason, maxReasonLength),
			ActorID: actorID,
		}
		if err := svc.DeleteOrder(ctx, input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteOrderAction(w, messageDeleted, payload.OrderID)
	}
}

// ProcessRefund refunds an amount against the order's captured payment.
func ProcessRefund(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "refund service unavailable"))
			return
		}

		actorID, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload processRefundRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !payload.Amount.IsPositive() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero").
				WithDetails(map[string]string{"amount": "must be greater than zero"}))
			return
		}
		if !payload.Amount.Equal(payload.Amount.Round(2)) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount has too many decimal places").
				WithDetails(map[string]string{"amount": "must have at most 2 decimal places"}))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, payload.OrderID)
		}

		result, err := svc.ProcessRefund(ctx, refunds.ProcessRefundInput{
			OrderID: uuid.MustParse(payload.OrderID),
			Amount:  payload.Amount,
			Reason:  validators.Clean(payload.Reason, maxReasonLength),
			ActorID: actorID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteRefund(w, messageRefunded, result.RefundID, result.Amount)
	}
}

func actorFromRequest(r *http.Request) (uuid.UUID, error) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return caller.UserID, nil
}
