package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/bazario-dev/bazario-backend/internal/inventory"
	"github.com/bazario-dev/bazario-backend/internal/listings"
	"github.com/bazario-dev/bazario-backend/internal/orders"
	"github.com/bazario-dev/bazario-backend/internal/pricing"
	"github.com/bazario-dev/bazario-backend/pkg/db/models"
	"github.com/bazario-dev/bazario-backend/pkg/enums"
	"github.com/bazario-dev/bazario-backend/pkg/errors"
	"github.com/bazario-dev/bazario-backend/pkg/gateway"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/outbox"
	"github.com/bazario-dev/bazario-backend/pkg/pagination"
	"github.com/bazario-dev/bazario-backend/pkg/types"
)

// Cancellation reasons recorded on orders.
const (
	ReasonRequested      = "requested"
	ReasonTimeout        = "timeout"
	ReasonGatewayFailure = "gateway_failure"
	ReasonPaymentFailed  = "payment_failed"
)

const (
	callbackStatusSucceeded = "succeeded"
	callbackStatusFailed    = "failed"

	sweepBatchSize = 100
)

// Actor identifies who is asking for a state change.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

type Params struct {
	TxRunner           txRunner
	Listings           *listings.Repository
	Orders             *orders.Repository
	Ledger             *inventory.Ledger
	Outbox             *outbox.Repository
	Gateway            PaymentGateway
	Logger             *logger.Logger
	Currency           string
	CallbackBaseURL    string
	ReservationTimeout time.Duration
}

// Service orchestrates the order lifecycle: pricing, reservation, payment
// and the compensating moves when any step fails.
type Service struct {
	tx                 txRunner
	listings           *listings.Repository
	orders             *orders.Repository
	ledger             *inventory.Ledger
	outbox             *outbox.Repository
	gateway            PaymentGateway
	logg               *logger.Logger
	currency           string
	callbackBaseURL    string
	reservationTimeout time.Duration

	now func() time.Time
}

func NewService(params Params) (*Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("settlement: tx runner is required")
	}
	if params.Listings == nil || params.Orders == nil || params.Ledger == nil || params.Outbox == nil {
		return nil, fmt.Errorf("settlement: repositories are required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("settlement: payment gateway is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("settlement: logger is required")
	}
	if params.Currency == "" {
		return nil, fmt.Errorf("settlement: currency is required")
	}
	if params.ReservationTimeout <= 0 {
		return nil, fmt.Errorf("settlement: reservation timeout must be positive")
	}

	return &Service{
		tx:                 params.TxRunner,
		listings:           params.Listings,
		orders:             params.Orders,
		ledger:             params.Ledger,
		outbox:             params.Outbox,
		gateway:            params.Gateway,
		logg:               params.Logger,
		currency:           params.Currency,
		callbackBaseURL:    params.CallbackBaseURL,
		reservationTimeout: params.ReservationTimeout,
		now:                time.Now,
	}, nil
}

type CreateOrderParams struct {
	BuyerID         uuid.UUID
	Lines           []pricing.CartLine
	ShippingAddress types.Address
}

type CreateOrderResult struct {
	Order       *models.Order
	RedirectURL string
}

// CreateOrder prices the cart, places one hold per line, then persists the
// order and opens a payment intent. Reservation is a saga: each hold is its
// own short transaction, and any failure releases everything taken so far.
// The order row only exists once every line is held, so a rejected cart
// leaves no trace in the buyer's order history.
func (s *Service) CreateOrder(ctx context.Context, params CreateOrderParams) (*CreateOrderResult, error) {
	if params.BuyerID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "buyer id is required")
	}

	ids := make([]uuid.UUID, 0, len(params.Lines))
	for _, line := range params.Lines {
		ids = append(ids, line.ListingID)
	}
	snapshots, err := s.listings.SnapshotByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	quote, err := pricing.Compute(params.Lines, snapshots, s.currency)
	if err != nil {
		return nil, err
	}

	address, err := json.Marshal(params.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("marshalling shipping address: %w", err)
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:              uuid.New(),
		BuyerID:         params.BuyerID,
		Status:          enums.OrderStatusPendingPayment,
		PaymentStatus:   enums.PaymentStatusPending,
		SubtotalAmount:  quote.SubtotalAmount,
		DiscountAmount:  quote.DiscountAmount,
		TotalAmount:     quote.TotalAmount,
		Currency:        quote.Currency,
		ShippingAddress: address,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, line := range quote.Lines {
		order.LineItems = append(order.LineItems, models.OrderLineItem{
			ID:              uuid.New(),
			OrderID:         order.ID,
			ListingID:       line.ListingID,
			SellerID:        line.SellerID,
			Title:           line.Title,
			Quantity:        line.Quantity,
			UnitPriceAmount: line.UnitPriceAmount,
			LineSubtotal:    line.LineSubtotal,
			LineDiscount:    line.LineDiscount,
			LineTotal:       line.LineTotal,
			CreatedAt:       now,
		})
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	held, err := s.reserveLines(ctx, order.ID, quote.Lines)
	if err != nil {
		s.releaseHeld(ctx, held)
		return nil, err
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.orders.WithTx(tx).Create(ctx, order)
	}); err != nil {
		s.releaseHeld(ctx, held)
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, gateway.CreateIntentParams{
		OrderID:     order.ID,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
		CallbackURL: s.callbackURLFor(order.ID),
	})
	if err != nil {
		s.logg.Error(ctx, "payment intent creation failed, unwinding order", err)
		s.compensate(ctx, order.ID, held, ReasonGatewayFailure)
		return nil, err
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).SetGatewayIntent(ctx, order.ID, intent.IntentID); err != nil {
			return err
		}
		return s.outbox.WithTx(tx).Emit(ctx, enums.EventTypeOrderCreated, order.ID, s.eventPayload(order, ""))
	}); err != nil {
		return nil, err
	}
	order.GatewayIntentID = intent.IntentID

	s.logg.Info(ctx, "order created and awaiting payment")
	return &CreateOrderResult{Order: order, RedirectURL: intent.RedirectURL}, nil
}

func (s *Service) reserveLines(ctx context.Context, orderID uuid.UUID, lines []pricing.QuotedLine) ([]uuid.UUID, error) {
	expiresAt := s.now().UTC().Add(s.reservationTimeout)
	var held []uuid.UUID
	for _, line := range lines {
		var reservationID uuid.UUID
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			reservation, err := s.ledger.WithTx(tx).Reserve(ctx, orderID, line.ListingID, line.Quantity, expiresAt)
			if err != nil {
				return err
			}
			reservationID = reservation.ID
			return nil
		})
		if err != nil {
			return held, err
		}
		held = append(held, reservationID)
	}
	return held, nil
}

// releaseHeld returns the given holds to stock. Best-effort: failures are
// logged rather than surfaced, the stock error already owns the response.
func (s *Service) releaseHeld(ctx context.Context, held []uuid.UUID) {
	for _, reservationID := range held {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.ledger.WithTx(tx).Release(ctx, reservationID)
		})
		if err != nil {
			s.logg.Error(ctx, "compensating release failed", err)
		}
	}
}

// compensate releases the holds and cancels the already-persisted order.
func (s *Service) compensate(ctx context.Context, orderID uuid.UUID, held []uuid.UUID, reason string) {
	s.releaseHeld(ctx, held)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.orders.WithTx(tx).MarkCancelledPending(ctx, orderID, reason, enums.PaymentStatusPending)
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		return s.outbox.WithTx(tx).Emit(ctx, enums.EventTypeOrderCancelled, orderID, outbox.OrderEventPayload{
			OrderID: orderID,
			Status:  enums.OrderStatusCancelled.String(),
			Reason:  reason,
		})
	})
	if err != nil {
		s.logg.Error(ctx, "compensating cancel failed", err)
	}
}

// CallbackPayload is the JSON body the gateway posts back after a payment
// attempt.
type CallbackPayload struct {
	IntentID  string `json:"intent_id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}

type ConfirmPaymentParams struct {
	OrderID   uuid.UUID
	RawBody   []byte
	Signature string
}

// ConfirmPayment handles the signed gateway callback. Verification failures
// and unknown orders both come back unauthorized so callers cannot probe
// for order existence. Replayed callbacks with the same payment id succeed
// as no-ops; a different payment id on a paid order is a conflict.
func (s *Service) ConfirmPayment(ctx context.Context, params ConfirmPaymentParams) (*models.Order, error) {
	if err := s.gateway.VerifyCallback(params.RawBody, params.Signature); err != nil {
		return nil, err
	}

	var payload CallbackPayload
	if err := json.Unmarshal(params.RawBody, &payload); err != nil {
		return nil, errors.New(errors.CodeValidation, "malformed callback body")
	}

	order, err := s.orders.GetByID(ctx, params.OrderID)
	if err != nil {
		if typed := errors.As(err); typed != nil && typed.Code() == errors.CodeNotFound {
			return nil, errors.New(errors.CodeUnauthorized, "callback verification failed")
		}
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if order.GatewayIntentID == "" || order.GatewayIntentID != payload.IntentID {
		s.logg.Warn(ctx, "callback intent does not match order")
		return nil, errors.New(errors.CodeUnauthorized, "callback verification failed")
	}

	if payload.Status == callbackStatusFailed {
		return s.handleFailedPayment(ctx, order)
	}
	if payload.Status != callbackStatusSucceeded {
		return nil, errors.New(errors.CodeValidation, "unknown callback status").
			WithDetails(map[string]any{"status": payload.Status})
	}

	if payload.Amount != order.TotalAmount {
		return nil, errors.New(errors.CodeConflict, "callback amount does not match order total").
			WithDetails(map[string]any{
				"expected": order.TotalAmount,
				"received": payload.Amount,
			})
	}

	// Fast-path replays before touching the gateway again.
	if order.PaymentStatus == enums.PaymentStatusPaid {
		if order.GatewayPaymentID == payload.PaymentID {
			return order, nil
		}
		return nil, errors.New(errors.CodeConflict, "order already paid with a different payment")
	}
	if order.Status.IsTerminal() {
		return nil, errors.New(errors.CodeConflict, "order is no longer payable")
	}

	if _, err := s.gateway.Capture(ctx, gateway.CaptureParams{
		PaymentID:      payload.PaymentID,
		IdempotencyKey: order.ID.String(),
	}); err != nil {
		s.logg.Error(ctx, "payment capture failed", err)
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersTx := s.orders.WithTx(tx)
		affected, err := ordersTx.MarkPaid(ctx, order.ID, payload.PaymentID)
		if err != nil {
			return err
		}
		if affected == 0 {
			current, err := ordersTx.GetByID(ctx, order.ID)
			if err != nil {
				return err
			}
			if current.PaymentStatus == enums.PaymentStatusPaid && current.GatewayPaymentID == payload.PaymentID {
				// Lost the race to an identical callback; hand back the
				// winner's state, not the stale pre-payment snapshot.
				order = current
				return nil
			}
			return errors.New(errors.CodeConflict, "order moved to a conflicting state")
		}

		ledgerTx := s.ledger.WithTx(tx)
		held, err := ledgerTx.HeldByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		for _, reservation := range held {
			if err := ledgerTx.Commit(ctx, reservation.ID); err != nil {
				return err
			}
		}

		order.Status = enums.OrderStatusConfirmed
		order.PaymentStatus = enums.PaymentStatusPaid
		order.GatewayPaymentID = payload.PaymentID
		return s.outbox.WithTx(tx).Emit(ctx, enums.EventTypeOrderConfirmed, order.ID, s.eventPayload(order, ""))
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, "payment confirmed")
	return order, nil
}

func (s *Service) handleFailedPayment(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.Status == enums.OrderStatusCancelled {
		return order, nil
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, errors.New(errors.CodeConflict, "failure reported for an already paid order")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.releaseHolds(ctx, tx, order.ID); err != nil {
			return err
		}
		affected, err := s.orders.WithTx(tx).MarkCancelledPending(ctx, order.ID, ReasonPaymentFailed, enums.PaymentStatusFailed)
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		order.Status = enums.OrderStatusCancelled
		order.PaymentStatus = enums.PaymentStatusFailed
		order.CancelReason = ReasonPaymentFailed
		return s.outbox.WithTx(tx).Emit(ctx, enums.EventTypePaymentFailed, order.ID, s.eventPayload(order, ReasonPaymentFailed))
	})
	if err != nil {
		return nil, err
	}

	s.logg.Warn(ctx, "payment failed, order cancelled")
	return order, nil
}

type CancelParams struct {
	OrderID uuid.UUID
	Actor   Actor
	Reason  string
}

// Cancel tears an order down. Pending orders release their holds; paid
// orders are refunded first, and the cancellation only proceeds once the
// refund has cleared.
func (s *Service) Cancel(ctx context.Context, params CancelParams) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, params.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOrderAccess(order, params.Actor); err != nil {
		return nil, err
	}

	reason := params.Reason
	if reason == "" {
		reason = ReasonRequested
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	switch order.Status {
	case enums.OrderStatusCancelled:
		return order, nil
	case enums.OrderStatusCompleted:
		return nil, errors.New(errors.CodeStateConflict, "completed orders cannot be cancelled")
	case enums.OrderStatusPendingPayment:
		return s.cancelPending(ctx, order, reason)
	case enums.OrderStatusConfirmed:
		return s.cancelPaid(ctx, order, reason)
	default:
		return nil, errors.New(errors.CodeInternal, "order has unknown status")
	}
}

func (s *Service) cancelPending(ctx context.Context, order *models.Order, reason string) (*models.Order, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.releaseHolds(ctx, tx, order.ID); err != nil {
			return err
		}
		affected, err := s.orders.WithTx(tx).MarkCancelledPending(ctx, order.ID, reason, order.PaymentStatus)
		if err != nil {
			return err
		}
		if affected == 0 {
			return errors.New(errors.CodeStateConflict, "order is no longer cancellable")
		}
		order.Status = enums.OrderStatusCancelled
		order.CancelReason = reason
		return s.outbox.WithTx(tx).Emit(ctx, enums.EventTypeOrderCancelled, order.ID, s.eventPayload(order, reason))
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, "pending order cancelled")
	return order, nil
}

func (s *Service) cancelPaid(ctx context.Context, order *models.Order, reason string) (*models.Order, error) {
	refund, err := s.gateway.Refund(ctx, gateway.RefundParams{
		PaymentID:      order.GatewayPaymentID,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
		IdempotencyKey: order.ID.String(),
	})
	if err != nil {
		s.logg.Error(ctx, "refund failed, order left confirmed", err)
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.orders.WithTx(tx).MarkCancelledRefunded(ctx, order.ID, reason, refund.RefundID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return errors.New(errors.CodeStateConflict, "order is no longer cancellable")
		}
		if err := s.ledger.WithTx(tx).RestockCommitted(ctx, order.ID); err != nil {
			return err
		}
		order.Status = enums.OrderStatusCancelled
		order.PaymentStatus = enums.PaymentStatusRefunded
		order.CancelReason = reason
		order.GatewayRefundID = refund.RefundID
		return s.outbox.WithTx(tx).Emit(ctx, enums.EventTypeOrderCancelled, order.ID, s.eventPayload(order, reason))
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, "paid order refunded and cancelled")
	return order, nil
}

type CompleteParams struct {
	OrderID uuid.UUID
	Actor   Actor
}

// Complete closes out a confirmed order once fulfilment is done. Sellers
// on the order and admins may call it.
func (s *Service) Complete(ctx context.Context, params CompleteParams) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, params.OrderID)
	if err != nil {
		return nil, err
	}

	if params.Actor.Role != enums.ActorRoleAdmin {
		if params.Actor.Role != enums.ActorRoleSeller || !sellerOnOrder(order, params.Actor.UserID) {
			return nil, errors.New(errors.CodeForbidden, "not allowed to complete this order")
		}
	}

	if order.Status == enums.OrderStatusCompleted {
		return order, nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.orders.WithTx(tx).MarkCompleted(ctx, order.ID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return errors.New(errors.CodeStateConflict, "only confirmed orders can be completed")
		}
		order.Status = enums.OrderStatusCompleted
		return s.outbox.WithTx(tx).Emit(ctx, enums.EventTypeOrderCompleted, order.ID, s.eventPayload(order, ""))
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order completed")
	return order, nil
}

// SweepAbandoned cancels pending-payment orders whose holds have outlived
// the reservation timeout, returning their stock. Each order is handled in
// its own transaction so one failure cannot wedge the batch.
func (s *Service) SweepAbandoned(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.reservationTimeout)
	stale, err := s.orders.StalePendingPayment(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	var swept int
	var errs error
	for _, order := range stale {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.releaseHolds(ctx, tx, order.ID); err != nil {
				return err
			}
			affected, err := s.orders.WithTx(tx).MarkCancelledPending(ctx, order.ID, ReasonTimeout, order.PaymentStatus)
			if err != nil {
				return err
			}
			if affected == 0 {
				return nil
			}
			swept++
			return s.outbox.WithTx(tx).Emit(ctx, enums.EventTypeOrderCancelled, order.ID, outbox.OrderEventPayload{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				Status:      enums.OrderStatusCancelled.String(),
				TotalAmount: order.TotalAmount,
				Currency:    order.Currency,
				Reason:      ReasonTimeout,
			})
		})
		if err != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "sweep failed for order", err)
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
		}
	}
	return swept, errs
}

// ListOrders scopes the listing to the actor: buyers see their own orders,
// sellers see orders carrying their lines, admins see everything.
func (s *Service) ListOrders(ctx context.Context, actor Actor, page pagination.Page) ([]models.Order, int64, error) {
	switch actor.Role {
	case enums.ActorRoleBuyer:
		return s.orders.ListForBuyer(ctx, actor.UserID, page)
	case enums.ActorRoleSeller:
		return s.orders.ListForSeller(ctx, actor.UserID, page)
	case enums.ActorRoleAdmin:
		return s.orders.ListAll(ctx, page)
	default:
		return nil, 0, errors.New(errors.CodeForbidden, "unknown actor role")
	}
}

// GetOrder is the read path with ownership checks.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOrderAccess(order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) releaseHolds(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	ledgerTx := s.ledger.WithTx(tx)
	held, err := ledgerTx.HeldByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, reservation := range held {
		if err := ledgerTx.Release(ctx, reservation.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) eventPayload(order *models.Order, reason string) outbox.OrderEventPayload {
	return outbox.OrderEventPayload{
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		Status:        order.Status.String(),
		PaymentStatus: order.PaymentStatus.String(),
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		Reason:        reason,
	}
}

func (s *Service) callbackURLFor(orderID uuid.UUID) string {
	if s.callbackBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/api/v1/orders/%s/payment-callback", s.callbackBaseURL, orderID)
}

func authorizeOrderAccess(order *models.Order, actor Actor) error {
	switch actor.Role {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleBuyer:
		if order.BuyerID == actor.UserID {
			return nil
		}
	case enums.ActorRoleSeller:
		if sellerOnOrder(order, actor.UserID) {
			return nil
		}
	}
	return errors.New(errors.CodeForbidden, "not allowed to access this order")
}

func sellerOnOrder(order *models.Order, sellerID uuid.UUID) bool {
	for _, item := range order.LineItems {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}
