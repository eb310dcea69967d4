package cancellation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/internal/inventory"
	"github.com/ayurkart/storefront-backend/internal/orders"
	"github.com/ayurkart/storefront-backend/internal/refunds"
	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/enums"
	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
	"github.com/ayurkart/storefront-backend/pkg/logger"
	"github.com/ayurkart/storefront-backend/pkg/metrics"
	"github.com/ayurkart/storefront-backend/pkg/outbox"
	"github.com/ayurkart/storefront-backend/pkg/outbox/payloads"
)

const (
	defaultReason = "Order cancelled"
	restoreReason = "Order cancellation"
	refundReason  = "Order cancellation"
)

// Rejection reasons attached to state conflicts.
const (
	StateTerminalShipped  = "terminal-shipped"
	StateAlreadyCancelled = "already-cancelled"
	StateAlreadyDeleted   = "already-deleted"
	StateChanged          = "state-changed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type workflowMetrics interface {
	Track(workflow string, started time.Time, err error)
	IncFollowupFailure(effect string)
}

// InventoryRestorer returns stock for a cancelled line item.
type InventoryRestorer interface {
	Restore(ctx context.Context, input inventory.RestoreInput) error
}

// Refunder issues a refund for a cancelled order.
type Refunder interface {
	ProcessRefund(ctx context.Context, input refunds.ProcessRefundInput) (*refunds.Result, error)
}

// CancelOrderInput carries a cancellation request.
type CancelOrderInput struct {
	OrderID     uuid.UUID
	Reason      string
	CancelledBy *uuid.UUID
	ActorID     uuid.UUID
}

// Result summarizes what the cancellation did beyond the status change.
type Result struct {
	OrderID         uuid.UUID
	ItemsRestored   int
	RestoreFailures int
	RefundAttempted bool
	RefundID        string
	RefundError     error
}

// Service cancels orders.
type Service interface {
	CancelOrder(ctx context.Context, input CancelOrderInput) (*Result, error)
}

// ServiceParams wires the cancellation service dependencies.
type ServiceParams struct {
	Repository orders.Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Inventory  InventoryRestorer
	Refunds    Refunder
	Logger     *logger.Logger
	Metrics    workflowMetrics
	Now        func() time.Time
}

type service struct {
	repo      orders.Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory InventoryRestorer
	refunds   Refunder
	logg      *logger.Logger
	metrics   workflowMetrics
	now       func() time.Time
}

// NewService builds the cancellation service.
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
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory restorer required")
	}
	if params.Refunds == nil {
		return nil, fmt.Errorf("refund processor required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{
		repo:      params.Repository,
		tx:        params.Tx,
		outbox:    params.Outbox,
		inventory: params.Inventory,
		refunds:   params.Refunds,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       params.Now,
	}
	if svc.metrics == nil {
		svc.metrics = metrics.NewWorkflowMetrics(nil)
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

// CancelOrder commits the status change first. Stock restoration and the
// refund run afterwards and never fail the cancellation.
func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) (result *Result, err error) {
	started := time.Now()
	defer func() { s.metrics.Track(metrics.WorkflowCancel, started, err) }()

	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := checkCancellable(order); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = defaultReason
	}
	cancelledBy := input.ActorID
	if input.CancelledBy != nil && *input.CancelledBy != uuid.Nil {
		cancelledBy = *input.CancelledBy
	}
	cancelledAt := s.now()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.CancelIfEligible(ctx, order.ID, orders.CancelUpdate{
			At:     cancelledAt,
			Reason: reason,
			By:     cancelledBy,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeUpdateFailed, err, "cancel order")
		}
		if !ok {
			return lostRace(ctx, repo, order.ID)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorID},
			Data: payloads.OrderCancelledEvent{
				OrderID:        order.ID,
				UserID:         order.UserID,
				PreviousStatus: order.Status,
				PaymentStatus:  order.PaymentStatus,
				TotalAmount:    order.TotalAmount,
				Reason:         reason,
				CancelledBy:    cancelledBy,
				CancelledAt:    cancelledAt,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeUpdateFailed, err, "cancel order")
		}
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "previous_status", order.Status), "order cancelled")

	result = &Result{OrderID: order.ID}
	s.restoreInventory(ctx, order, input.ActorID, result)

	if order.PaymentStatus == enums.PaymentStatusCompleted {
		result.RefundAttempted = true
		refund, refundErr := s.refunds.ProcessRefund(ctx, refunds.ProcessRefundInput{
			OrderID: order.ID,
			Amount:  order.TotalAmount,
			Reason:  refundReason,
			ActorID: input.ActorID,
		})
		if refundErr != nil {
			result.RefundError = refundErr
			s.logg.Error(ctx, "refund after cancellation failed", refundErr)
			s.metrics.IncFollowupFailure(payloads.FollowupRefund)
			s.emitFollowup(ctx, input.ActorID, payloads.OrderFollowupFailedEvent{
				OrderID: order.ID,
				Effect:  payloads.FollowupRefund,
				Error:   refundErr.Error(),
			})
		} else {
			result.RefundID = refund.RefundID
		}
	}

	return result, nil
}

// lostRace explains a conditional update that matched nothing: another
// writer moved the order after it was read.
func lostRace(ctx context.Context, repo orders.Repository, orderID uuid.UUID) error {
	current, err := repo.FindOrder(ctx, orderID)
	if err == nil {
		if err := checkCancellable(current); err != nil {
			return err
		}
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer cancellable").
		WithDetails(map[string]any{"state": StateChanged})
}

func checkCancellable(order *models.Order) error {
	switch {
	case order.Status == enums.OrderStatusShipped || order.Status == enums.OrderStatusDelivered:
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot be cancelled once %s", order.Status)).
			WithDetails(map[string]any{"state": StateTerminalShipped})
	case order.Status == enums.OrderStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already cancelled").
			WithDetails(map[string]any{"state": StateAlreadyCancelled})
	case order.IsDeleted():
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has been deleted").
			WithDetails(map[string]any{"state": StateAlreadyDeleted})
	case !order.Status.Cancellable():
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order in status %s cannot be cancelled", order.Status))
	}
	return nil
}

// restoreInventory returns stock line by line. Each line is independent; a
// failure is reported and the remaining lines still run.
func (s *service) restoreInventory(ctx context.Context, order *models.Order, actorID uuid.UUID, result *Result) {
	var failures error
	for _, item := range order.Items {
		err := s.inventory.Restore(ctx, inventory.RestoreInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			OrderID:   order.ID,
			ActorID:   actorID,
			Reason:    restoreReason,
		})
		if err == nil {
			result.ItemsRestored++
			continue
		}

		result.RestoreFailures++
		failures = multierr.Append(failures, fmt.Errorf("product %s: %w", item.ProductID, err))
		itemCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": item.ProductID.String(),
			"quantity":   item.Quantity,
		})
		s.logg.WarnErr(itemCtx, "inventory restore failed", err)
		s.metrics.IncFollowupFailure(payloads.FollowupInventoryRestore)

		productID := item.ProductID
		s.emitFollowup(ctx, actorID, payloads.OrderFollowupFailedEvent{
			OrderID:   order.ID,
			Effect:    payloads.FollowupInventoryRestore,
			ProductID: &productID,
			Quantity:  item.Quantity,
			Error:     err.Error(),
		})
	}
	if failures != nil {
		s.logg.WarnErr(s.logg.WithField(ctx, "failed_lines", len(multierr.Errors(failures))), "order cancelled with inventory restore failures", failures)
	}
}

func (s *service) emitFollowup(ctx context.Context, actorID uuid.UUID, event payloads.OrderFollowupFailedEvent) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderFollowupFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   event.OrderID,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data:          event,
		})
	})
	if err != nil {
		s.logg.Error(ctx, "record followup failure", err)
	}
}
