package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/enums"
)

// OutboxDLQ captures terminal outbox failures for auditing and remediation.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EventID       uuid.UUID                  `gorm:"column:event_id;type:uuid;not null" json:"event_id"`
	EventType     enums.OutboxEventType      `gorm:"column:event_type;type:text;not null" json:"event_type"`
	AggregateType enums.OutboxAggregateType  `gorm:"column:aggregate_type;type:text;not null" json:"aggregate_type"`
	AggregateID   uuid.UUID                  `gorm:"column:aggregate_id;type:uuid;not null" json:"aggregate_id"`
	Payload       json.RawMessage            `gorm:"column:payload_json;type:jsonb;not null" json:"payload"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"column:error_reason;type:text;not null" json:"error_reason"`
	ErrorMessage  *string                    `gorm:"column:error_message" json:"error_message,omitempty"`
	AttemptCount  int                        `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	FailedAt      time.Time                  `gorm:"column:failed_at;autoCreateTime" json:"failed_at"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (OutboxDLQ) TableName() string {
	return "outbox_dlq"
}

func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}
