package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazario-dev/bazario-backend/pkg/enums"
)

// Listing holds the sellable item plus its inventory counters. Quantities
// are mutated only through conditional updates in the inventory ledger.
type Listing struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SellerID uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`

	Title       string              `gorm:"column:title;not null"`
	PriceAmount int64               `gorm:"column:price_amount;not null"`
	Currency    string              `gorm:"column:currency;size:3;not null"`
	Status      enums.ListingStatus `gorm:"column:status;not null"`

	AvailableQty int `gorm:"column:available_qty;not null"`
	ReservedQty  int `gorm:"column:reserved_qty;not null;default:0"`

	// PromoRate is a fractional discount in [0,1); zero means no promotion.
	PromoRate decimal.Decimal `gorm:"column:promo_rate;type:numeric(6,4);not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Listing) TableName() string {
	return "listings"
}
