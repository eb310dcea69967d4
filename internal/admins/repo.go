package admins

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/db"
	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/enums"
)

// Repository reads admin role grants and appends to the admin activity log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	IsActiveAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
	SetRole(ctx context.Context, userID uuid.UUID, role enums.UserRole, active bool) error
	LogActivity(ctx context.Context, entry *models.AdminActivityLog) error
	ListActivity(ctx context.Context, resourceType string, resourceID uuid.UUID) ([]models.AdminActivityLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an admins repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) IsActiveAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Where("user_id = ? AND role = ? AND is_active = ?", userID, enums.UserRoleAdmin, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetRole grants or revokes a role. An existing grant is toggled in place so a
// user holds at most one row per role.
func (r *repository) SetRole(ctx context.Context, userID uuid.UUID, role enums.UserRole, active bool) error {
	if userID == uuid.Nil {
		return errors.New("user id required")
	}
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q", role)
	}
	updated, err := r.toggleRole(ctx, userID, role, active)
	if err != nil || updated {
		return err
	}
	err = r.db.WithContext(ctx).Create(&models.UserRole{
		UserID:   userID,
		Role:     role,
		IsActive: active,
	}).Error
	if db.IsUniqueViolation(err) {
		// a concurrent grant inserted the row first
		_, err = r.toggleRole(ctx, userID, role, active)
	}
	return err
}

func (r *repository) toggleRole(ctx context.Context, userID uuid.UUID, role enums.UserRole, active bool) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Where("user_id = ? AND role = ?", userID, role).
		Update("is_active", active)
	return res.RowsAffected > 0, res.Error
}

func (r *repository) LogActivity(ctx context.Context, entry *models.AdminActivityLog) error {
	if entry == nil {
		return errors.New("activity entry required")
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListActivity(ctx context.Context, resourceType string, resourceID uuid.UUID) ([]models.AdminActivityLog, error) {
	var entries []models.AdminActivityLog
	err := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
