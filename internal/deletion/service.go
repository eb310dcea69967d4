package deletion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/internal/admins"
	"github.com/ayurkart/storefront-backend/internal/orders"
	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/enums"
	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
	"github.com/ayurkart/storefront-backend/pkg/logger"
	"github.com/ayurkart/storefront-backend/pkg/metrics"
	"github.com/ayurkart/storefront-backend/pkg/outbox"
	"github.com/ayurkart/storefront-backend/pkg/outbox/payloads"
)

const (
	defaultReason = "Administrative deletion"

	ActionDeleteOrder = "delete_order"
	ResourceOrder     = "order"

	StateAlreadyDeleted = "already-deleted"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type workflowMetrics interface {
	Track(workflow string, started time.Time, err error)
}

// DeleteOrderInput carries an admin deletion request.
type DeleteOrderInput struct {
	OrderID uuid.UUID
	Reason  string
	ActorID uuid.UUID
}

// Details is the activity log payload written for a deletion. OrderSnapshot
// holds the full order as it was before the delete.
type Details struct {
	OrderTotal     decimal.Decimal   `json:"order_total"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	DeletionReason string            `json:"deletion_reason"`
	OrderSnapshot  models.Order      `json:"order_snapshot"`
}

// Service soft deletes orders on behalf of admins.
type Service interface {
	DeleteOrder(ctx context.Context, input DeleteOrderInput) error
}

// ServiceParams wires the deletion service dependencies.
type ServiceParams struct {
	Orders  orders.Repository
	Admins  admins.Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Logger  *logger.Logger
	Metrics workflowMetrics
	Now     func() time.Time
}

type service struct {
	orders  orders.Repository
	admins  admins.Repository
	tx      txRunner
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics workflowMetrics
	now     func() time.Time
}

// NewService builds the deletion service.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Admins == nil {
		return nil, fmt.Errorf("admins repository required")
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
		orders:  params.Orders,
		admins:  params.Admins,
		tx:      params.Tx,
		outbox:  params.Outbox,
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

// DeleteOrder flips the order to deleted and writes the audit entry in the
// same transaction. Inventory and refunds are untouched.
func (s *service) DeleteOrder(ctx context.Context, input DeleteOrderInput) (err error) {
	started := time.Now()
	defer func() { s.metrics.Track(metrics.WorkflowDelete, started, err) }()

	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	isAdmin, err := s.admins.IsActiveAdmin(ctx, input.ActorID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check admin role")
	}
	if !isAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	order, err := s.orders.FindOrder(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.DeletedAt != nil {
		return alreadyDeleted()
	}

	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = defaultReason
	}
	details, err := json.Marshal(Details{
		OrderTotal:     order.TotalAmount,
		PreviousStatus: order.Status,
		DeletionReason: reason,
		OrderSnapshot:  *order,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order snapshot")
	}
	deletedAt := s.now()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.orders.WithTx(tx).MarkDeleted(ctx, order.ID, orders.DeleteUpdate{
			At:     deletedAt,
			Reason: reason,
			By:     input.ActorID,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeUpdateFailed, err, "delete order")
		}
		if !ok {
			return alreadyDeleted()
		}
		if err := s.admins.WithTx(tx).LogActivity(ctx, &models.AdminActivityLog{
			AdminUserID:  input.ActorID,
			Action:       ActionDeleteOrder,
			ResourceType: ResourceOrder,
			ResourceID:   order.ID,
			Details:      details,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeUpdateFailed, err, "write admin activity log")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(enums.UserRoleAdmin)},
			Data: payloads.OrderDeletedEvent{
				OrderID:        order.ID,
				PreviousStatus: order.Status,
				Reason:         reason,
				DeletedBy:      input.ActorID,
				DeletedAt:      deletedAt,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeUpdateFailed, err, "delete order")
		}
		return err
	}

	s.logg.Info(s.logg.WithField(ctx, "previous_status", order.Status), "order deleted")
	return nil
}

func alreadyDeleted() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already deleted").
		WithDetails(map[string]any{"state": StateAlreadyDeleted})
}
