package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/enums"
	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
)

const referenceTypeOrder = "order"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RestoreInput describes stock returned to a product because of an order.
type RestoreInput struct {
	ProductID uuid.UUID
	Quantity  int
	OrderID   uuid.UUID
	ActorID   uuid.UUID
	Reason    string
}

// Service adjusts stock and keeps the movement ledger in step.
type Service interface {
	Restore(ctx context.Context, input RestoreInput) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds the inventory service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// Restore increments stock and appends the paired "in" movement atomically.
func (s *service) Restore(ctx context.Context, input RestoreInput) error {
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "Stock restored"
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.IncrementStock(ctx, input.ProductID, input.Quantity); err != nil {
			if errors.Is(err, ErrProductNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment stock")
		}

		movement := &models.InventoryMovement{
			ProductID:    input.ProductID,
			MovementType: enums.MovementIn,
			Quantity:     input.Quantity,
			Reason:       reason,
		}
		if input.OrderID != uuid.Nil {
			orderID := input.OrderID
			refType := referenceTypeOrder
			movement.ReferenceID = &orderID
			movement.ReferenceType = &refType
		}
		if input.ActorID != uuid.Nil {
			actor := input.ActorID
			movement.CreatedBy = &actor
		}
		if err := repo.CreateMovement(ctx, movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record inventory movement")
		}
		return nil
	})
}
