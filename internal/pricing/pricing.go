package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazario-dev/bazario-backend/pkg/db/models"
	"github.com/bazario-dev/bazario-backend/pkg/enums"
	"github.com/bazario-dev/bazario-backend/pkg/errors"
)

// CartLine is one requested listing/quantity pair.
type CartLine struct {
	ListingID uuid.UUID
	Quantity  int
}

type QuotedLine struct {
	ListingID       uuid.UUID
	SellerID        uuid.UUID
	Title           string
	Quantity        int
	UnitPriceAmount int64
	LineSubtotal    int64
	LineDiscount    int64
	LineTotal       int64
}

type Quote struct {
	Lines          []QuotedLine
	SubtotalAmount int64
	DiscountAmount int64
	TotalAmount    int64
	Currency       string
}

// Compute prices a cart against listing snapshots. All amounts are integer
// minor units; the promo discount is rounded per line, half away from zero,
// so the order total is always the exact sum of its line totals.
func Compute(lines []CartLine, snapshots map[uuid.UUID]models.Listing, currency string) (*Quote, error) {
	if len(lines) == 0 {
		return nil, errors.New(errors.CodeValidation, "cart must contain at least one line")
	}

	seen := make(map[uuid.UUID]bool, len(lines))
	quote := &Quote{Currency: currency}

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, errors.New(errors.CodeValidation, "line quantity must be positive").
				WithDetails(map[string]any{"listing_id": line.ListingID.String()})
		}
		if seen[line.ListingID] {
			return nil, errors.New(errors.CodeValidation, "duplicate listing in cart").
				WithDetails(map[string]any{"listing_id": line.ListingID.String()})
		}
		seen[line.ListingID] = true

		listing, ok := snapshots[line.ListingID]
		if !ok {
			return nil, errors.New(errors.CodeNotFound, "listing not found").
				WithDetails(map[string]any{"listing_id": line.ListingID.String()})
		}
		if listing.Status != enums.ListingStatusActive {
			return nil, errors.New(errors.CodeConflict, "listing is not available for purchase").
				WithDetails(map[string]any{
					"listing_id": listing.ID.String(),
					"status":     listing.Status.String(),
				})
		}
		if listing.Currency != currency {
			return nil, errors.New(errors.CodeValidation, "listing currency does not match order currency").
				WithDetails(map[string]any{"listing_id": listing.ID.String()})
		}

		subtotal := listing.PriceAmount * int64(line.Quantity)
		discount := discountFor(subtotal, listing.PromoRate)

		quoted := QuotedLine{
			ListingID:       listing.ID,
			SellerID:        listing.SellerID,
			Title:           listing.Title,
			Quantity:        line.Quantity,
			UnitPriceAmount: listing.PriceAmount,
			LineSubtotal:    subtotal,
			LineDiscount:    discount,
			LineTotal:       subtotal - discount,
		}

		quote.Lines = append(quote.Lines, quoted)
		quote.SubtotalAmount += quoted.LineSubtotal
		quote.DiscountAmount += quoted.LineDiscount
		quote.TotalAmount += quoted.LineTotal
	}

	return quote, nil
}

func discountFor(subtotal int64, promoRate decimal.Decimal) int64 {
	if promoRate.IsZero() {
		return 0
	}
	return decimal.NewFromInt(subtotal).Mul(promoRate).Round(0).IntPart()
}
