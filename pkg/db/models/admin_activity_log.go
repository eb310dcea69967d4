package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminActivityLog is an append-only record of administrative actions.
type AdminActivityLog struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AdminUserID  uuid.UUID       `gorm:"column:admin_user_id;type:uuid;not null"`
	Action       string          `gorm:"column:action;not null"`
	ResourceType string          `gorm:"column:resource_type;not null"`
	ResourceID   uuid.UUID       `gorm:"column:resource_id;type:uuid;not null"`
	Details      json.RawMessage `gorm:"column:details;type:jsonb"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (AdminActivityLog) TableName() string {
	return "admin_activity_log"
}

func (l *AdminActivityLog) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}
