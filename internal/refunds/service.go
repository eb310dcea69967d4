package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/internal/orders"
	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/enums"
	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
	"github.com/ayurkart/storefront-backend/pkg/logger"
	"github.com/ayurkart/storefront-backend/pkg/metrics"
	"github.com/ayurkart/storefront-backend/pkg/outbox"
	"github.com/ayurkart/storefront-backend/pkg/outbox/payloads"
	"github.com/ayurkart/storefront-backend/pkg/square"
)

// PaymentMethod is recorded on refund transactions.
const PaymentMethod = "square_refund"

const defaultReason = "Refund requested"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type workflowMetrics interface {
	Track(workflow string, started time.Time, err error)
}

// Gateway issues refunds against captured payments.
type Gateway interface {
	RefundPayment(ctx context.Context, params square.RefundParams) (*square.RefundResult, error)
}

// ProcessRefundInput describes a refund request for an order.
type ProcessRefundInput struct {
	OrderID uuid.UUID
	Amount  decimal.Decimal
	Reason  string
	ActorID uuid.UUID
}

// Result reports the refund the gateway accepted.
type Result struct {
	OrderID       uuid.UUID
	RefundID      string
	Status        string
	Amount        decimal.Decimal
	TransactionID string
}

// Service processes refunds through the payment gateway.
type Service interface {
	ProcessRefund(ctx context.Context, input ProcessRefundInput) (*Result, error)
}

// ServiceParams wires the refund service dependencies. Gateway may be nil when
// no credentials are configured; refunds then fail with a configuration error.
type ServiceParams struct {
	Repository orders.Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Gateway    Gateway
	Logger     *logger.Logger
	Metrics    workflowMetrics
	Now        func() time.Time
}

type service struct {
	repo    orders.Repository
	tx      txRunner
	outbox  outboxPublisher
	gateway Gateway
	logg    *logger.Logger
	metrics workflowMetrics
	now     func() time.Time
}

// NewService builds the refund service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{
		repo:    params.Repository,
		tx:      params.Tx,
		outbox:  params.Outbox,
		gateway: params.Gateway,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     params.Now,
	}
	if svc.metrics == nil {
		svc.metrics = metrics.NewWorkflowMetrics(nil)
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

// ProcessRefund marks the order as refunding, calls the gateway and records
// the outcome. Repeated calls are not deduplicated.
func (s *service) ProcessRefund(ctx context.Context, input ProcessRefundInput) (result *Result, err error) {
	started := time.Now()
	defer func() { s.metrics.Track(metrics.WorkflowRefund, started, err) }()

	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if !input.Amount.Equal(input.Amount.Round(2)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must have at most 2 decimal places")
	}
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "payment gateway is not configured")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = defaultReason
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	if _, err := s.repo.FindOrder(ctx, input.OrderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	capture, err := s.repo.FindCapturedPayment(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNoPayment, "no payment found for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment transaction")
	}
	if capture.GatewayPaymentID == nil || strings.TrimSpace(*capture.GatewayPaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNoPayment, "payment has no gateway reference")
	}

	if err := s.repo.MarkRefundProcessing(ctx, input.OrderID, input.Amount); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpdateFailed, err, "mark refund processing")
	}

	refund, gatewayErr := s.gateway.RefundPayment(ctx, square.RefundParams{
		PaymentID: *capture.GatewayPaymentID,
		OrderID:   input.OrderID.String(),
		Amount:    input.Amount,
		Reason:    reason,
	})
	if gatewayErr != nil {
		detail := gatewayMessage(gatewayErr)
		if !square.Declined(gatewayErr) {
			// the gateway may have accepted the refund; processing stays for reconciliation.
			s.logg.Error(ctx, "refund outcome unknown", gatewayErr)
			return nil, pkgerrors.Wrap(pkgerrors.CodeRefundFailed, gatewayErr, "refund outcome unknown: "+detail).
				WithDetails(map[string]any{"gateway_error": detail, "refund_status": string(enums.RefundStatusProcessing)})
		}
		s.recordFailure(ctx, input, reason, gatewayErr)
		return nil, pkgerrors.Wrap(pkgerrors.CodeRefundFailed, gatewayErr, "refund failed: "+detail).
			WithDetails(map[string]any{"gateway_error": detail})
	}

	processedAt := s.now()
	txnID := "refund_" + uuid.NewString()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CompleteRefund(ctx, input.OrderID, refund.ID, processedAt); err != nil {
			return err
		}
		gatewayPaymentID := *capture.GatewayPaymentID
		refundID := refund.ID
		if err := repo.CreateTransaction(ctx, &models.PaymentTransaction{
			OrderID:          input.OrderID,
			TransactionID:    txnID,
			Amount:           input.Amount.Neg(),
			Status:           enums.PaymentStatusCompleted,
			PaymentMethod:    PaymentMethod,
			GatewayPaymentID: &gatewayPaymentID,
			GatewayRefundID:  &refundID,
			GatewayResponse:  refund.Raw,
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRefunded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   input.OrderID,
			Actor:         actorRef(input.ActorID),
			Data: payloads.OrderRefundedEvent{
				OrderID:         input.OrderID,
				Amount:          input.Amount,
				Reason:          reason,
				GatewayRefundID: refund.ID,
				TransactionID:   txnID,
				ProcessedAt:     processedAt,
			},
		})
	})
	if err != nil {
		// the gateway already moved money; keep the refund id for reconciliation.
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpdateFailed, err, "record refund").
			WithDetails(map[string]any{"refund_id": refund.ID})
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"refund_id": refund.ID,
		"amount":    input.Amount.String(),
	}), "refund completed")

	return &Result{
		OrderID:       input.OrderID,
		RefundID:      refund.ID,
		Status:        refund.Status,
		Amount:        input.Amount,
		TransactionID: txnID,
	}, nil
}

func (s *service) recordFailure(ctx context.Context, input ProcessRefundInput, reason string, gatewayErr error) {
	s.logg.Error(ctx, "refund rejected by gateway", gatewayErr)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).MarkRefundFailed(ctx, input.OrderID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRefundFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   input.OrderID,
			Actor:         actorRef(input.ActorID),
			Data: payloads.OrderRefundFailedEvent{
				OrderID: input.OrderID,
				Amount:  input.Amount,
				Reason:  reason,
				Error:   gatewayMessage(gatewayErr),
			},
		})
	})
	if err != nil {
		s.logg.Error(ctx, "record refund failure", err)
	}
}

func gatewayMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		if cause := errors.Unwrap(typed); cause != nil {
			return cause.Error()
		}
		return typed.Message()
	}
	return err.Error()
}

func actorRef(userID uuid.UUID) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: userID}
}
