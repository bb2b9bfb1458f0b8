package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario-dev/bazario-backend/pkg/db"
	"github.com/bazario-dev/bazario-backend/pkg/db/models"
	"github.com/bazario-dev/bazario-backend/pkg/enums"
	"github.com/bazario-dev/bazario-backend/pkg/errors"
	"github.com/bazario-dev/bazario-backend/pkg/pagination"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return errors.New(errors.CodeConflict, "order already exists")
		}
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		Where("id = ?", id).
		First(&order).Error
	if db.IsNotFound(err) {
		return nil, errors.New(errors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("loading order %s: %w", id, err)
	}
	return &order, nil
}

func (r *Repository) ListForBuyer(ctx context.Context, buyerID uuid.UUID, page pagination.Page) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("buyer_id = ?", buyerID)
	return r.list(ctx, query, page)
}

// ListForSeller returns orders containing at least one of the seller's line
// items. Sellers see the whole order, not just their lines.
func (r *Repository) ListForSeller(ctx context.Context, sellerID uuid.UUID, page pagination.Page) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id IN (?)", r.db.Model(&models.OrderLineItem{}).
			Select("order_id").
			Where("seller_id = ?", sellerID))
	return r.list(ctx, query, page)
}

func (r *Repository) ListAll(ctx context.Context, page pagination.Page) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	return r.list(ctx, query, page)
}

func (r *Repository) list(ctx context.Context, query *gorm.DB, page pagination.Page) ([]models.Order, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	var rows []models.Order
	err := query.
		Preload("LineItems").
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	return rows, total, nil
}

// StalePendingPayment returns orders still awaiting payment with no
// activity since the cutoff. The sweep job feeds on this.
func (r *Repository) StalePendingPayment(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.OrderStatusPendingPayment, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading stale orders: %w", err)
	}
	return rows, nil
}

// SetGatewayIntent records the payment intent on a fresh order.
func (r *Repository) SetGatewayIntent(ctx context.Context, orderID uuid.UUID, intentID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPendingPayment).
		Updates(map[string]any{
			"gateway_intent_id": intentID,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("recording gateway intent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.New(errors.CodeStateConflict, "order is no longer awaiting payment")
	}
	return nil
}

// MarkPaid confirms the order once payment lands. The guard makes it safe
// under replayed callbacks: rows affected is zero when the order has moved
// on already.
func (r *Repository) MarkPaid(ctx context.Context, orderID uuid.UUID, gatewayPaymentID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND payment_status = ?",
			orderID, enums.OrderStatusPendingPayment, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":             enums.OrderStatusConfirmed,
			"payment_status":     enums.PaymentStatusPaid,
			"gateway_payment_id": gatewayPaymentID,
			"paid_at":            time.Now().UTC(),
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("marking order %s paid: %w", orderID, res.Error)
	}
	return res.RowsAffected, nil
}

// MarkCancelledPending cancels an order that never got paid.
func (r *Repository) MarkCancelledPending(ctx context.Context, orderID uuid.UUID, reason string, paymentStatus enums.PaymentStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPendingPayment).
		Updates(map[string]any{
			"status":         enums.OrderStatusCancelled,
			"payment_status": paymentStatus,
			"cancel_reason":  reason,
			"cancelled_at":   time.Now().UTC(),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("cancelling order %s: %w", orderID, res.Error)
	}
	return res.RowsAffected, nil
}

// MarkCancelledRefunded cancels a confirmed order after the refund cleared.
func (r *Repository) MarkCancelledRefunded(ctx context.Context, orderID uuid.UUID, reason, refundID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND payment_status = ?",
			orderID, enums.OrderStatusConfirmed, enums.PaymentStatusPaid).
		Updates(map[string]any{
			"status":            enums.OrderStatusCancelled,
			"payment_status":    enums.PaymentStatusRefunded,
			"cancel_reason":     reason,
			"gateway_refund_id": refundID,
			"cancelled_at":      time.Now().UTC(),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("cancelling paid order %s: %w", orderID, res.Error)
	}
	return res.RowsAffected, nil
}

// MarkCompleted closes out a confirmed, paid order.
func (r *Repository) MarkCompleted(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND payment_status = ?",
			orderID, enums.OrderStatusConfirmed, enums.PaymentStatusPaid).
		Updates(map[string]any{
			"status":       enums.OrderStatusCompleted,
			"completed_at": time.Now().UTC(),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("completing order %s: %w", orderID, res.Error)
	}
	return res.RowsAffected, nil
}
