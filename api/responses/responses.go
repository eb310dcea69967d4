package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
	"github.com/ayurkart/storefront-backend/pkg/logger"
	"github.com/ayurkart/storefront-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteOrderAction writes the body returned by the order functions.
func WriteOrderAction(w http.ResponseWriter, message, orderID string) {
	writeJSON(w, http.StatusOK, types.OrderActionBody{
		Success: true,
		Message: message,
		OrderID: orderID,
	})
}

// WriteRefund writes the process-refund success body.
func WriteRefund(w http.ResponseWriter, message, refundID string, amount decimal.Decimal) {
	writeJSON(w, http.StatusOK, types.RefundBody{
		Success:  true,
		Message:  message,
		RefundID: refundID,
		Amount:   json.Number(amount.String()),
	})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())
	payload := types.ErrorBody{
		Error: meta.PublicMessage,
		Code:  string(typed.Code()),
	}
	if meta.ExposeMessage && typed.Message() != "" {
		payload.Error = typed.Message()
	}
	if meta.DetailsAllowed {
		payload.Details = typed.Details()
	}

	if logg != nil {
		fields := pkgerrors.Dump(err).Fields()
		fields["http_status"] = meta.HTTPStatus
		fields["retryable"] = meta.Retryable
		logg.Error(logg.WithFields(ctx, fields), "request failed", err)
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
