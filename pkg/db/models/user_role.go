package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/enums"
)

// UserRole grants a role to a user; only active rows count.
type UserRole struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;not null"`
	Role      enums.UserRole `gorm:"column:role;type:text;not null"`
	IsActive  bool           `gorm:"column:is_active;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (r *UserRole) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
