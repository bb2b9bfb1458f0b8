package outbox

import "github.com/google/uuid"

// OrderEventPayload is the common body for order lifecycle events.
type OrderEventPayload struct {
	OrderID       uuid.UUID `json:"order_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	TotalAmount   int64     `json:"total_amount"`
	Currency      string    `json:"currency"`
	Reason        string    `json:"reason,omitempty"`
}
