package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bazario-dev/bazario-backend/pkg/enums"
)

type OutboxEvent struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`

	AggregateType enums.AggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID           `gorm:"column:aggregate_id;type:uuid;not null;index"`
	EventType     enums.EventType     `gorm:"column:event_type;not null"`

	Payload json.RawMessage `gorm:"column:payload;type:jsonb;not null"`

	Attempts    int        `gorm:"column:attempts;not null;default:0"`
	PublishedAt *time.Time `gorm:"column:published_at;index"`
	LastError   string     `gorm:"column:last_error"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}
