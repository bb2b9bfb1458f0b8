package inventory

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
)

// Ledger owns every mutation of listing stock counters. Reserve, Release
// and Commit all hinge on conditional single-statement updates so that
// concurrent orders can never oversell a listing.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx}
}

// Reserve moves qty units from available to reserved and records a hold.
// The guard on available_qty makes the decrement atomic; zero rows affected
// means the stock is gone or the listing is not active.
func (l *Ledger) Reserve(ctx context.Context, orderID, listingID uuid.UUID, qty int, expiresAt time.Time) (*models.Reservation, error) {
	if qty <= 0 {
		return nil, errors.New(errors.CodeValidation, "reservation quantity must be positive")
	}

	now := time.Now().UTC()
	res := l.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ? AND available_qty >= ?", listingID, enums.ListingStatusActive, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty - ?", qty),
			"reserved_qty":  gorm.Expr("reserved_qty + ?", qty),
			"updated_at":    now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("reserving stock for listing %s: %w", listingID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, l.reserveFailureReason(ctx, listingID, qty)
	}

	if err := l.markSoldOutIfDrained(ctx, listingID, now); err != nil {
		return nil, err
	}

	reservation := models.Reservation{
		ID:        uuid.New(),
		OrderID:   orderID,
		ListingID: listingID,
		Quantity:  qty,
		Status:    enums.ReservationStatusHeld,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.db.WithContext(ctx).Create(&reservation).Error; err != nil {
		return nil, fmt.Errorf("recording reservation: %w", err)
	}
	return &reservation, nil
}

// Release returns a held reservation's units to available stock. Releasing
// an already released reservation is a no-op; releasing a committed one is
// a state conflict because the stock has left the building.
func (l *Ledger) Release(ctx context.Context, reservationID uuid.UUID) error {
	reservation, err := l.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	switch reservation.Status {
	case enums.ReservationStatusReleased:
		return nil
	case enums.ReservationStatusCommitted:
		return errors.New(errors.CodeStateConflict, "cannot release a committed reservation")
	}

	now := time.Now().UTC()
	res := l.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", reservationID, enums.ReservationStatusHeld).
		Updates(map[string]any{
			"status":     enums.ReservationStatusReleased,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("releasing reservation %s: %w", reservationID, res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost a race with another release or commit; re-read and re-judge.
		return l.Release(ctx, reservationID)
	}

	res = l.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND reserved_qty >= ?", reservation.ListingID, reservation.Quantity).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty + ?", reservation.Quantity),
			"reserved_qty":  gorm.Expr("reserved_qty - ?", reservation.Quantity),
			"updated_at":    now,
		})
	if res.Error != nil {
		return fmt.Errorf("restoring stock for listing %s: %w", reservation.ListingID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.New(errors.CodeInternal, "listing counters out of sync with reservation")
	}

	return l.reactivateIfRestocked(ctx, reservation.ListingID, now)
}

// Commit finalizes a held reservation after payment: the units leave
// reserved_qty for good. Committing twice is a no-op.
func (l *Ledger) Commit(ctx context.Context, reservationID uuid.UUID) error {
	reservation, err := l.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	switch reservation.Status {
	case enums.ReservationStatusCommitted:
		return nil
	case enums.ReservationStatusReleased:
		return errors.New(errors.CodeStateConflict, "cannot commit a released reservation")
	}

	now := time.Now().UTC()
	res := l.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", reservationID, enums.ReservationStatusHeld).
		Updates(map[string]any{
			"status":     enums.ReservationStatusCommitted,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("committing reservation %s: %w", reservationID, res.Error)
	}
	if res.RowsAffected == 0 {
		return l.Commit(ctx, reservationID)
	}

	res = l.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND reserved_qty >= ?", reservation.ListingID, reservation.Quantity).
		Updates(map[string]any{
			"reserved_qty": gorm.Expr("reserved_qty - ?", reservation.Quantity),
			"updated_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("draining reserved stock for listing %s: %w", reservation.ListingID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.New(errors.CodeInternal, "listing counters out of sync with reservation")
	}
	return nil
}

// RestockCommitted returns a cancelled-after-payment order's committed
// units to available stock. The reservations stay committed; this only
// moves the quantities back onto the shelf.
func (l *Ledger) RestockCommitted(ctx context.Context, orderID uuid.UUID) error {
	var rows []models.Reservation
	err := l.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusCommitted).
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("loading committed reservations for order %s: %w", orderID, err)
	}

	now := time.Now().UTC()
	for _, reservation := range rows {
		res := l.db.WithContext(ctx).
			Model(&models.Listing{}).
			Where("id = ?", reservation.ListingID).
			Updates(map[string]any{
				"available_qty": gorm.Expr("available_qty + ?", reservation.Quantity),
				"updated_at":    now,
			})
		if res.Error != nil {
			return fmt.Errorf("restocking listing %s: %w", reservation.ListingID, res.Error)
		}
		if err := l.reactivateIfRestocked(ctx, reservation.ListingID, now); err != nil {
			return err
		}
	}
	return nil
}

// HeldByOrder lists the order's active holds, oldest first.
func (l *Ledger) HeldByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Reservation, error) {
	var rows []models.Reservation
	err := l.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusHeld).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading reservations for order %s: %w", orderID, err)
	}
	return rows, nil
}

func (l *Ledger) getReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := l.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error
	if db.IsNotFound(err) {
		return nil, errors.New(errors.CodeNotFound, "reservation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("loading reservation %s: %w", id, err)
	}
	return &reservation, nil
}

func (l *Ledger) reserveFailureReason(ctx context.Context, listingID uuid.UUID, qty int) error {
	var listing models.Listing
	err := l.db.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error
	if db.IsNotFound(err) {
		return errors.New(errors.CodeNotFound, "listing not found").
			WithDetails(map[string]any{"listing_id": listingID.String()})
	}
	if err != nil {
		return fmt.Errorf("inspecting listing %s: %w", listingID, err)
	}

	if listing.Status != enums.ListingStatusActive {
		return errors.New(errors.CodeConflict, "listing is not available for purchase").
			WithDetails(map[string]any{
				"listing_id": listingID.String(),
				"status":     listing.Status.String(),
			})
	}
	return errors.New(errors.CodeConflict, "insufficient stock").
		WithDetails(map[string]any{
			"listing_id": listingID.String(),
			"requested":  qty,
			"available":  listing.AvailableQty,
		})
}

func (l *Ledger) markSoldOutIfDrained(ctx context.Context, listingID uuid.UUID, now time.Time) error {
	err := l.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ? AND available_qty = 0", listingID, enums.ListingStatusActive).
		Updates(map[string]any{
			"status":     enums.ListingStatusSoldOut,
			"updated_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("marking listing %s sold out: %w", listingID, err)
	}
	return nil
}

func (l *Ledger) reactivateIfRestocked(ctx context.Context, listingID uuid.UUID, now time.Time) error {
	err := l.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ? AND available_qty > 0", listingID, enums.ListingStatusSoldOut).
		Updates(map[string]any{
			"status":     enums.ListingStatusActive,
			"updated_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("reactivating listing %s: %w", listingID, err)
	}
	return nil
}
