package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bazario-dev/bazario-backend/pkg/enums"
)

type Order struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index"`

	Status        enums.OrderStatus   `gorm:"column:status;not null;index"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null"`

	SubtotalAmount int64  `gorm:"column:subtotal_amount;not null"`
	DiscountAmount int64  `gorm:"column:discount_amount;not null"`
	TotalAmount    int64  `gorm:"column:total_amount;not null"`
	Currency       string `gorm:"column:currency;size:3;not null"`

	GatewayIntentID  string `gorm:"column:gateway_intent_id"`
	GatewayPaymentID string `gorm:"column:gateway_payment_id"`
	GatewayRefundID  string `gorm:"column:gateway_refund_id"`

	CancelReason string `gorm:"column:cancel_reason"`

	PaidAt      *time.Time `gorm:"column:paid_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`

	ShippingAddress json.RawMessage `gorm:"column:shipping_address;type:jsonb"`

	LineItems []OrderLineItem `gorm:"foreignKey:OrderID"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderLineItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ListingID uuid.UUID `gorm:"column:listing_id;type:uuid;not null"`
	SellerID  uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`

	Title    string `gorm:"column:title;not null"`
	Quantity int    `gorm:"column:quantity;not null"`

	UnitPriceAmount int64 `gorm:"column:unit_price_amount;not null"`
	LineSubtotal    int64 `gorm:"column:line_subtotal;not null"`
	LineDiscount    int64 `gorm:"column:line_discount;not null"`
	LineTotal       int64 `gorm:"column:line_total;not null"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (OrderLineItem) TableName() string {
	return "order_line_items"
}
