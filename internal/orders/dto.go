package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bazario-dev/bazario-backend/pkg/db/models"
)

type LineItemResponse struct {
	ID              uuid.UUID `json:"id"`
	ListingID       uuid.UUID `json:"listing_id"`
	SellerID        uuid.UUID `json:"seller_id"`
	Title           string    `json:"title"`
	Quantity        int       `json:"quantity"`
	UnitPriceAmount int64     `json:"unit_price_amount"`
	LineSubtotal    int64     `json:"line_subtotal"`
	LineDiscount    int64     `json:"line_discount"`
	LineTotal       int64     `json:"line_total"`
}

type OrderResponse struct {
	ID               uuid.UUID          `json:"id"`
	BuyerID          uuid.UUID          `json:"buyer_id"`
	Status           string             `json:"status"`
	PaymentStatus    string             `json:"payment_status"`
	SubtotalAmount   int64              `json:"subtotal_amount"`
	DiscountAmount   int64              `json:"discount_amount"`
	TotalAmount      int64              `json:"total_amount"`
	Currency         string             `json:"currency"`
	GatewayIntentID  string             `json:"gateway_intent_id,omitempty"`
	PaymentRedirect  string             `json:"payment_redirect_url,omitempty"`
	CancelReason     string             `json:"cancel_reason,omitempty"`
	ShippingAddress  json.RawMessage    `json:"shipping_address,omitempty"`
	LineItems        []LineItemResponse `json:"line_items"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func ToResponse(order *models.Order) OrderResponse {
	resp := OrderResponse{
		ID:              order.ID,
		BuyerID:         order.BuyerID,
		Status:          order.Status.String(),
		PaymentStatus:   order.PaymentStatus.String(),
		SubtotalAmount:  order.SubtotalAmount,
		DiscountAmount:  order.DiscountAmount,
		TotalAmount:     order.TotalAmount,
		Currency:        order.Currency,
		GatewayIntentID: order.GatewayIntentID,
		CancelReason:    order.CancelReason,
		ShippingAddress: order.ShippingAddress,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, item := range order.LineItems {
		resp.LineItems = append(resp.LineItems, LineItemResponse{
			ID:              item.ID,
			ListingID:       item.ListingID,
			SellerID:        item.SellerID,
			Title:           item.Title,
			Quantity:        item.Quantity,
			UnitPriceAmount: item.UnitPriceAmount,
			LineSubtotal:    item.LineSubtotal,
			LineDiscount:    item.LineDiscount,
			LineTotal:       item.LineTotal,
		})
	}
	return resp
}

func ToResponses(rows []models.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(rows))
	for i := range rows {
		out = append(out, ToResponse(&rows[i]))
	}
	return out
}
