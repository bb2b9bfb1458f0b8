package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario-dev/bazario-backend/pkg/enums"
)

// Reservation is a hold on listing stock; its ID doubles as the
// reservation token handed back to the orchestrator.
type Reservation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ListingID uuid.UUID `gorm:"column:listing_id;type:uuid;not null;index"`

	Quantity int                     `gorm:"column:quantity;not null"`
	Status   enums.ReservationStatus `gorm:"column:status;not null;index"`

	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Reservation) TableName() string {
	return "reservations"
}
