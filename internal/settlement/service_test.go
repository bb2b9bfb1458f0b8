package settlement

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bazario-dev/bazario-backend/internal/inventory"
	"github.com/bazario-dev/bazario-backend/internal/listings"
	"github.com/bazario-dev/bazario-backend/internal/orders"
	"github.com/bazario-dev/bazario-backend/internal/pricing"
	"github.com/bazario-dev/bazario-backend/pkg/db"
	"github.com/bazario-dev/bazario-backend/pkg/db/models"
	"github.com/bazario-dev/bazario-backend/pkg/enums"
	"github.com/bazario-dev/bazario-backend/pkg/errors"
	"github.com/bazario-dev/bazario-backend/pkg/gateway"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/outbox"
	"github.com/bazario-dev/bazario-backend/pkg/types"
)

const testSigningSecret = "test-signing-secret"

type fakeGateway struct {
	createIntentErr error
	captureErr      error
	refundErr       error

	intentCalls  int
	captureCalls int
	refundCalls  int
}

func (f *fakeGateway) CreateIntent(_ context.Context, params gateway.CreateIntentParams) (*gateway.CreateIntentResult, error) {
	f.intentCalls++
	if f.createIntentErr != nil {
		return nil, f.createIntentErr
	}
	return &gateway.CreateIntentResult{
		IntentID:    "int_" + params.OrderID.String()[:8],
		RedirectURL: "https://gateway.test/pay/" + params.OrderID.String(),
	}, nil
}

func (f *fakeGateway) VerifyCallback(body []byte, signature string) error {
	if signature == "" || !hmac.Equal([]byte(signBody(body)), []byte(signature)) {
		return errors.New(errors.CodeUnauthorized, "invalid callback signature")
	}
	return nil
}

func (f *fakeGateway) Capture(context.Context, gateway.CaptureParams) (*gateway.CaptureResult, error) {
	f.captureCalls++
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return &gateway.CaptureResult{PaymentID: "pay_ok", Status: "captured"}, nil
}

func (f *fakeGateway) Refund(context.Context, gateway.RefundParams) (*gateway.RefundResult, error) {
	f.refundCalls++
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return &gateway.RefundResult{RefundID: "ref_1", Status: "refunded"}, nil
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type fixture struct {
	svc     *Service
	gdb     *gorm.DB
	gateway *fakeGateway
	ledger  *inventory.Ledger
	orders  *orders.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:settlement_%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.Listing{}, &models.Order{}, &models.OrderLineItem{},
		&models.Reservation{}, &models.OutboxEvent{},
	))

	client := db.FromGorm(gdb)
	fake := &fakeGateway{}
	logg := logger.New(logger.Options{ServiceName: "settlement-test", Output: io.Discard})

	ledger := inventory.NewLedger(gdb)
	orderRepo := orders.NewRepository(gdb)

	svc, err := NewService(Params{
		TxRunner:           client,
		Listings:           listings.NewRepository(gdb),
		Orders:             orderRepo,
		Ledger:             ledger,
		Outbox:             outbox.NewRepository(gdb),
		Gateway:            fake,
		Logger:             logg,
		Currency:           "IRR",
		CallbackBaseURL:    "https://api.test",
		ReservationTimeout: 30 * time.Minute,
	})
	require.NoError(t, err)

	return &fixture{svc: svc, gdb: gdb, gateway: fake, ledger: ledger, orders: orderRepo}
}

func (f *fixture) seedListing(t *testing.T, price int64, qty int) models.Listing {
	t.Helper()
	now := time.Now().UTC()
	listing := models.Listing{
		ID:           uuid.New(),
		SellerID:     uuid.New(),
		Title:        "widget",
		PriceAmount:  price,
		Currency:     "IRR",
		Status:       enums.ListingStatusActive,
		AvailableQty: qty,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.gdb.Create(&listing).Error)
	return listing
}

func (f *fixture) listing(t *testing.T, id uuid.UUID) models.Listing {
	t.Helper()
	var listing models.Listing
	require.NoError(t, f.gdb.Where("id = ?", id).First(&listing).Error)
	return listing
}

func (f *fixture) order(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := f.orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (f *fixture) outboxEvents(t *testing.T, orderID uuid.UUID) []models.OutboxEvent {
	t.Helper()
	var events []models.OutboxEvent
	require.NoError(t, f.gdb.Where("aggregate_id = ?", orderID).Order("created_at ASC").Find(&events).Error)
	return events
}

func (f *fixture) createOrder(t *testing.T, buyerID uuid.UUID, lines ...pricing.CartLine) *CreateOrderResult {
	t.Helper()
	result, err := f.svc.CreateOrder(context.Background(), CreateOrderParams{
		BuyerID: buyerID,
		Lines:   lines,
		ShippingAddress: types.Address{
			FullName: "Test Buyer",
			Line1:    "1 Main St",
			City:     "Tehran",
		},
	})
	require.NoError(t, err)
	return result
}

func (f *fixture) confirmPayment(t *testing.T, orderID uuid.UUID, payload CallbackPayload) (*models.Order, error) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		OrderID:   orderID,
		RawBody:   body,
		Signature: signBody(body),
	})
}

func TestCreateOrderComputesTotalsAndHoldsStock(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2500, 10)
	b := f.seedListing(t, 1000, 5)

	result := f.createOrder(t, uuid.New(),
		pricing.CartLine{ListingID: a.ID, Quantity: 2},
		pricing.CartLine{ListingID: b.ID, Quantity: 1},
	)

	assert.Equal(t, int64(6000), result.Order.TotalAmount)
	assert.Equal(t, enums.OrderStatusPendingPayment, result.Order.Status)
	assert.Equal(t, enums.PaymentStatusPending, result.Order.PaymentStatus)
	assert.NotEmpty(t, result.Order.GatewayIntentID)
	assert.NotEmpty(t, result.RedirectURL)

	gotA := f.listing(t, a.ID)
	assert.Equal(t, 8, gotA.AvailableQty)
	assert.Equal(t, 2, gotA.ReservedQty)
	gotB := f.listing(t, b.ID)
	assert.Equal(t, 4, gotB.AvailableQty)
	assert.Equal(t, 1, gotB.ReservedQty)

	events := f.outboxEvents(t, result.Order.ID)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventTypeOrderCreated, events[0].EventType)
}

func TestCreateOrderInsufficientStockReleasesEverything(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2500, 10)
	b := f.seedListing(t, 1000, 0)
	buyerID := uuid.New()

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderParams{
		BuyerID: buyerID,
		Lines: []pricing.CartLine{
			{ListingID: a.ID, Quantity: 2},
			{ListingID: b.ID, Quantity: 1},
		},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeConflict, errors.As(err).Code())

	// The hold on the first listing was compensated away.
	gotA := f.listing(t, a.ID)
	assert.Equal(t, 10, gotA.AvailableQty)
	assert.Equal(t, 0, gotA.ReservedQty)

	// No order or line items were persisted: the rejected cart must not
	// surface in the buyer's history.
	var orderCount int64
	require.NoError(t, f.gdb.Model(&models.Order{}).Where("buyer_id = ?", buyerID).Count(&orderCount).Error)
	assert.Equal(t, int64(0), orderCount)
	var lineCount int64
	require.NoError(t, f.gdb.Model(&models.OrderLineItem{}).Count(&lineCount).Error)
	assert.Equal(t, int64(0), lineCount)

	// No intent was ever opened.
	assert.Equal(t, 0, f.gateway.intentCalls)
}

func TestCreateOrderGatewayFailureUnwindsOrder(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2500, 10)
	f.gateway.createIntentErr = errors.New(errors.CodeDependency, "gateway unavailable")

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderParams{
		BuyerID: uuid.New(),
		Lines:   []pricing.CartLine{{ListingID: a.ID, Quantity: 3}},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeDependency, errors.As(err).Code())

	gotA := f.listing(t, a.ID)
	assert.Equal(t, 10, gotA.AvailableQty)
	assert.Equal(t, 0, gotA.ReservedQty)

	var cancelled models.Order
	require.NoError(t, f.gdb.Where("status = ?", enums.OrderStatusCancelled).First(&cancelled).Error)
	assert.Equal(t, ReasonGatewayFailure, cancelled.CancelReason)
}

func TestConfirmPaymentHappyPath(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	result := f.createOrder(t, uuid.New(), pricing.CartLine{ListingID: a.ID, Quantity: 2})

	order, err := f.confirmPayment(t, result.Order.ID, CallbackPayload{
		IntentID:  result.Order.GatewayIntentID,
		PaymentID: "pay_1",
		Status:    "succeeded",
		Amount:    4000,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, 1, f.gateway.captureCalls)

	// Reserved units are committed: reserved drains, available stays down.
	gotA := f.listing(t, a.ID)
	assert.Equal(t, 3, gotA.AvailableQty)
	assert.Equal(t, 0, gotA.ReservedQty)

	stored := f.order(t, result.Order.ID)
	assert.Equal(t, "pay_1", stored.GatewayPaymentID)
	require.NotNil(t, stored.PaidAt)
}

func TestConfirmPaymentReplayIsNoop(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	result := f.createOrder(t, uuid.New(), pricing.CartLine{ListingID: a.ID, Quantity: 1})
	payload := CallbackPayload{
		IntentID:  result.Order.GatewayIntentID,
		PaymentID: "pay_1",
		Status:    "succeeded",
		Amount:    2000,
	}

	_, err := f.confirmPayment(t, result.Order.ID, payload)
	require.NoError(t, err)

	// The replay succeeds without touching the gateway again.
	order, err := f.confirmPayment(t, result.Order.ID, payload)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, 1, f.gateway.captureCalls)
}

// racingTxRunner fires a hook once, just before the first transaction it
// runs, so a test can slip a competing write between a service's read and
// its guarded update.
type racingTxRunner struct {
	inner  txRunner
	before func()
}

func (r *racingTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.before != nil {
		hook := r.before
		r.before = nil
		hook()
	}
	return r.inner.WithTx(ctx, fn)
}

func TestConfirmPaymentRaceLoserReturnsFreshOrder(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	result := f.createOrder(t, uuid.New(), pricing.CartLine{ListingID: a.ID, Quantity: 1})
	ctx := context.Background()

	// A duplicate callback completes the paid transition after this
	// handler loaded the order but before it writes.
	runner := &racingTxRunner{
		inner: db.FromGorm(f.gdb),
		before: func() {
			affected, err := f.orders.MarkPaid(ctx, result.Order.ID, "pay_1")
			require.NoError(t, err)
			require.Equal(t, int64(1), affected)
			held, err := f.ledger.HeldByOrder(ctx, result.Order.ID)
			require.NoError(t, err)
			for _, reservation := range held {
				require.NoError(t, f.ledger.Commit(ctx, reservation.ID))
			}
		},
	}
	svc, err := NewService(Params{
		TxRunner:           runner,
		Listings:           listings.NewRepository(f.gdb),
		Orders:             f.orders,
		Ledger:             f.ledger,
		Outbox:             outbox.NewRepository(f.gdb),
		Gateway:            f.gateway,
		Logger:             logger.New(logger.Options{ServiceName: "settlement-test", Output: io.Discard}),
		Currency:           "IRR",
		CallbackBaseURL:    "https://api.test",
		ReservationTimeout: 30 * time.Minute,
	})
	require.NoError(t, err)

	body, err := json.Marshal(CallbackPayload{
		IntentID:  result.Order.GatewayIntentID,
		PaymentID: "pay_1",
		Status:    "succeeded",
		Amount:    2000,
	})
	require.NoError(t, err)

	// The loser acknowledges the replay and must report the settled state,
	// not its stale pre-payment snapshot.
	order, err := svc.ConfirmPayment(ctx, ConfirmPaymentParams{
		OrderID:   result.Order.ID,
		RawBody:   body,
		Signature: signBody(body),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, "pay_1", order.GatewayPaymentID)
}

func TestConfirmPaymentDifferentPaymentIDIsConflict(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	result := f.createOrder(t, uuid.New(), pricing.CartLine{ListingID: a.ID, Quantity: 1})

	_, err := f.confirmPayment(t, result.Order.ID, CallbackPayload{
		IntentID:  result.Order.GatewayIntentID,
		PaymentID: "pay_1",
		Status:    "succeeded",
		Amount:    2000,
	})
	require.NoError(t, err)

	_, err = f.confirmPayment(t, result.Order.ID, CallbackPayload{
		IntentID:  result.Order.GatewayIntentID,
		PaymentID: "pay_2",
		Status:    "succeeded",
		Amount:    2000,
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeConflict, errors.As(err).Code())

	// The stored payment id is the original one.
	assert.Equal(t, "pay_1", f.order(t, result.Order.ID).GatewayPaymentID)
}

func TestConfirmPaymentForgedSignatureLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	result := f.createOrder(t, uuid.New(), pricing.CartLine{ListingID: a.ID, Quantity: 1})

	body, err := json.Marshal(CallbackPayload{
		IntentID:  result.Order.GatewayIntentID,
		PaymentID: "pay_evil",
		Status:    "succeeded",
		Amount:    2000,
	})
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		OrderID:   result.Order.ID,
		RawBody:   body,
		Signature: "deadbeef",
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnauthorized, errors.As(err).Code())

	stored := f.order(t, result.Order.ID)
	assert.Equal(t, enums.OrderStatusPendingPayment, stored.Status)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)
	assert.Equal(t, 1, f.listing(t, a.ID).ReservedQty)
}

func TestConfirmPaymentUnknownOrderLooksLikeBadSignature(t *testing.T) {
	f := newFixture(t)

	body, err := json.Marshal(CallbackPayload{IntentID: "int_x", PaymentID: "pay_1", Status: "succeeded", Amount: 100})
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		OrderID:   uuid.New(),
		RawBody:   body,
		Signature: signBody(body),
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnauthorized, errors.As(err).Code())
}

func TestConfirmPaymentAmountMismatchIsConflict(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	result := f.createOrder(t, uuid.New(), pricing.CartLine{ListingID: a.ID, Quantity: 1})

	_, err := f.confirmPayment(t, result.Order.ID, CallbackPayload{
		IntentID:  result.Order.GatewayIntentID,
		PaymentID: "pay_1",
		Status:    "succeeded",
		Amount:    1,
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeConflict, errors.As(err).Code())
	assert.Equal(t, enums.OrderStatusPendingPayment, f.order(t, result.Order.ID).Status)
}

func TestConfirmPaymentFailureCancelsAndReleases(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	result := f.createOrder(t, uuid.New(), pricing.CartLine{ListingID: a.ID, Quantity: 2})

	order, err := f.confirmPayment(t, result.Order.ID, CallbackPayload{
		IntentID:  result.Order.GatewayIntentID,
		PaymentID: "pay_1",
		Status:    "failed",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	assert.Equal(t, enums.PaymentStatusFailed, order.PaymentStatus)

	gotA := f.listing(t, a.ID)
	assert.Equal(t, 5, gotA.AvailableQty)
	assert.Equal(t, 0, gotA.ReservedQty)
}

func TestCancelPendingReleasesHolds(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	buyerID := uuid.New()
	result := f.createOrder(t, buyerID, pricing.CartLine{ListingID: a.ID, Quantity: 2})

	order, err := f.svc.Cancel(context.Background(), CancelParams{
		OrderID: result.Order.ID,
		Actor:   Actor{UserID: buyerID, Role: enums.ActorRoleBuyer},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	assert.Equal(t, ReasonRequested, order.CancelReason)

	gotA := f.listing(t, a.ID)
	assert.Equal(t, 5, gotA.AvailableQty)
	assert.Equal(t, 0, gotA.ReservedQty)
	assert.Equal(t, 0, f.gateway.refundCalls)
}

func TestCancelPaidRefundsBeforeCancelling(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	buyerID := uuid.New()
	result := f.createOrder(t, buyerID, pricing.CartLine{ListingID: a.ID, Quantity: 2})
	_, err := f.confirmPayment(t, result.Order.ID, CallbackPayload{
		IntentID:  result.Order.GatewayIntentID,
		PaymentID: "pay_1",
		Status:    "succeeded",
		Amount:    4000,
	})
	require.NoError(t, err)

	order, err := f.svc.Cancel(context.Background(), CancelParams{
		OrderID: result.Order.ID,
		Actor:   Actor{UserID: buyerID, Role: enums.ActorRoleBuyer},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, order.PaymentStatus)
	assert.Equal(t, "ref_1", order.GatewayRefundID)
	assert.Equal(t, 1, f.gateway.refundCalls)

	// Committed units return to the shelf.
	assert.Equal(t, 5, f.listing(t, a.ID).AvailableQty)
}

func TestCancelPaidKeepsOrderWhenRefundFails(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	buyerID := uuid.New()
	result := f.createOrder(t, buyerID, pricing.CartLine{ListingID: a.ID, Quantity: 1})
	_, err := f.confirmPayment(t, result.Order.ID, CallbackPayload{
		IntentID:  result.Order.GatewayIntentID,
		PaymentID: "pay_1",
		Status:    "succeeded",
		Amount:    2000,
	})
	require.NoError(t, err)

	f.gateway.refundErr = errors.New(errors.CodeDependency, "gateway unavailable")

	_, err = f.svc.Cancel(context.Background(), CancelParams{
		OrderID: result.Order.ID,
		Actor:   Actor{UserID: buyerID, Role: enums.ActorRoleBuyer},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeDependency, errors.As(err).Code())

	stored := f.order(t, result.Order.ID)
	assert.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
}

func TestCancelForbiddenForStrangers(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	result := f.createOrder(t, uuid.New(), pricing.CartLine{ListingID: a.ID, Quantity: 1})

	_, err := f.svc.Cancel(context.Background(), CancelParams{
		OrderID: result.Order.ID,
		Actor:   Actor{UserID: uuid.New(), Role: enums.ActorRoleBuyer},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeForbidden, errors.As(err).Code())
}

func TestCancelCancelledIsNoop(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	buyerID := uuid.New()
	result := f.createOrder(t, buyerID, pricing.CartLine{ListingID: a.ID, Quantity: 1})
	actor := Actor{UserID: buyerID, Role: enums.ActorRoleBuyer}

	_, err := f.svc.Cancel(context.Background(), CancelParams{OrderID: result.Order.ID, Actor: actor})
	require.NoError(t, err)

	order, err := f.svc.Cancel(context.Background(), CancelParams{OrderID: result.Order.ID, Actor: actor})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
}

func TestCompleteRequiresConfirmedOrder(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	result := f.createOrder(t, uuid.New(), pricing.CartLine{ListingID: a.ID, Quantity: 1})
	admin := Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin}

	_, err := f.svc.Complete(context.Background(), CompleteParams{OrderID: result.Order.ID, Actor: admin})
	require.Error(t, err)
	assert.Equal(t, errors.CodeStateConflict, errors.As(err).Code())

	_, err = f.confirmPayment(t, result.Order.ID, CallbackPayload{
		IntentID:  result.Order.GatewayIntentID,
		PaymentID: "pay_1",
		Status:    "succeeded",
		Amount:    2000,
	})
	require.NoError(t, err)

	order, err := f.svc.Complete(context.Background(), CompleteParams{OrderID: result.Order.ID, Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, order.Status)
}

func TestCompleteBySellerOnOrder(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	result := f.createOrder(t, uuid.New(), pricing.CartLine{ListingID: a.ID, Quantity: 1})
	_, err := f.confirmPayment(t, result.Order.ID, CallbackPayload{
		IntentID:  result.Order.GatewayIntentID,
		PaymentID: "pay_1",
		Status:    "succeeded",
		Amount:    2000,
	})
	require.NoError(t, err)

	// A seller not on the order is rejected.
	_, err = f.svc.Complete(context.Background(), CompleteParams{
		OrderID: result.Order.ID,
		Actor:   Actor{UserID: uuid.New(), Role: enums.ActorRoleSeller},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeForbidden, errors.As(err).Code())

	order, err := f.svc.Complete(context.Background(), CompleteParams{
		OrderID: result.Order.ID,
		Actor:   Actor{UserID: a.SellerID, Role: enums.ActorRoleSeller},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, order.Status)
}

func TestSweepAbandonedCancelsStaleOrders(t *testing.T) {
	f := newFixture(t)
	a := f.seedListing(t, 2000, 5)
	result := f.createOrder(t, uuid.New(), pricing.CartLine{ListingID: a.ID, Quantity: 2})

	// Fresh orders are untouched.
	swept, err := f.svc.SweepAbandoned(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	require.NoError(t, f.gdb.Model(&models.Order{}).
		Where("id = ?", result.Order.ID).
		Update("updated_at", time.Now().UTC().Add(-time.Hour)).Error)

	swept, err = f.svc.SweepAbandoned(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	stored := f.order(t, result.Order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.Equal(t, ReasonTimeout, stored.CancelReason)

	gotA := f.listing(t, a.ID)
	assert.Equal(t, 5, gotA.AvailableQty)
	assert.Equal(t, 0, gotA.ReservedQty)
}
