package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bazario-dev/bazario-backend/api/middleware"
	"github.com/bazario-dev/bazario-backend/api/responses"
	"github.com/bazario-dev/bazario-backend/api/validators"
	orderdomain "github.com/bazario-dev/bazario-backend/internal/orders"
	"github.com/bazario-dev/bazario-backend/internal/pricing"
	"github.com/bazario-dev/bazario-backend/internal/settlement"
	"github.com/bazario-dev/bazario-backend/pkg/enums"
	"github.com/bazario-dev/bazario-backend/pkg/errors"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/pagination"
	"github.com/bazario-dev/bazario-backend/pkg/types"
)

type createLineRequest struct {
	ListingID string `json:"listing_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type createOrderRequest struct {
	Lines           []createLineRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingAddress types.Address       `json:"shipping_address" validate:"required"`
}

type createOrderResponse struct {
	Order              orderdomain.OrderResponse `json:"order"`
	PaymentRedirectURL string                    `json:"payment_redirect_url"`
}

func Create(svc *settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims := middleware.ClaimsFromContext(ctx)
		if claims == nil || claims.Role != enums.ActorRoleBuyer {
			responses.WriteError(ctx, w, logg,
				errors.New(errors.CodeForbidden, "only buyers can place orders"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, w, logg, err)
			return
		}

		lines := make([]pricing.CartLine, 0, len(req.Lines))
		for _, line := range req.Lines {
			listingID, err := uuid.Parse(line.ListingID)
			if err != nil {
				responses.WriteError(ctx, w, logg,
					errors.New(errors.CodeValidation, "invalid listing id"))
				return
			}
			lines = append(lines, pricing.CartLine{ListingID: listingID, Quantity: line.Quantity})
		}

		result, err := svc.CreateOrder(ctx, settlement.CreateOrderParams{
			BuyerID:         claims.UserID,
			Lines:           lines,
			ShippingAddress: req.ShippingAddress,
		})
		if err != nil {
			responses.WriteError(ctx, w, logg, err)
			return
		}

		responses.WriteSuccess(w, http.StatusCreated, createOrderResponse{
			Order:              orderdomain.ToResponse(result.Order),
			PaymentRedirectURL: result.RedirectURL,
		})
	}
}

func List(svc *settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims := middleware.ClaimsFromContext(ctx)
		if claims == nil {
			responses.WriteError(ctx, w, logg,
				errors.New(errors.CodeUnauthorized, "authentication required"))
			return
		}

		page := pagination.FromQuery(r.URL.Query())
		rows, total, err := svc.ListOrders(ctx, actorFrom(claims.UserID, claims.Role), page)
		if err != nil {
			responses.WriteError(ctx, w, logg, err)
			return
		}

		responses.WriteSuccess(w, http.StatusOK, map[string]any{
			"orders": orderdomain.ToResponses(rows),
			"meta": pagination.Meta{
				Limit:  page.Limit,
				Offset: page.Offset,
				Total:  total,
			},
		})
	}
}

func Get(svc *settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims := middleware.ClaimsFromContext(ctx)
		if claims == nil {
			responses.WriteError(ctx, w, logg,
				errors.New(errors.CodeUnauthorized, "authentication required"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(ctx, w, logg, err)
			return
		}

		order, err := svc.GetOrder(ctx, orderID, actorFrom(claims.UserID, claims.Role))
		if err != nil {
			responses.WriteError(ctx, w, logg, err)
			return
		}
		responses.WriteSuccess(w, http.StatusOK, orderdomain.ToResponse(order))
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

func Cancel(svc *settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims := middleware.ClaimsFromContext(ctx)
		if claims == nil {
			responses.WriteError(ctx, w, logg,
				errors.New(errors.CodeUnauthorized, "authentication required"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(ctx, w, logg, err)
			return
		}

		var req cancelOrderRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(ctx, w, logg, err)
				return
			}
		}

		order, err := svc.Cancel(ctx, settlement.CancelParams{
			OrderID: orderID,
			Actor:   actorFrom(claims.UserID, claims.Role),
			Reason:  req.Reason,
		})
		if err != nil {
			responses.WriteError(ctx, w, logg, err)
			return
		}
		responses.WriteSuccess(w, http.StatusOK, orderdomain.ToResponse(order))
	}
}

func Complete(svc *settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims := middleware.ClaimsFromContext(ctx)
		if claims == nil {
			responses.WriteError(ctx, w, logg,
				errors.New(errors.CodeUnauthorized, "authentication required"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(ctx, w, logg, err)
			return
		}

		order, err := svc.Complete(ctx, settlement.CompleteParams{
			OrderID: orderID,
			Actor:   actorFrom(claims.UserID, claims.Role),
		})
		if err != nil {
			responses.WriteError(ctx, w, logg, err)
			return
		}
		responses.WriteSuccess(w, http.StatusOK, orderdomain.ToResponse(order))
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		return uuid.Nil, errors.New(errors.CodeValidation, "invalid order id")
	}
	return orderID, nil
}

func actorFrom(userID uuid.UUID, role enums.ActorRole) settlement.Actor {
	return settlement.Actor{UserID: userID, Role: role}
}
