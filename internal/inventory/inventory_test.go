package inventory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bazario-dev/bazario-backend/pkg/db/models"
	"github.com/bazario-dev/bazario-backend/pkg/enums"
	"github.com/bazario-dev/bazario-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:inventory_%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&models.Listing{}, &models.Reservation{}))
	return gdb
}

func seedListing(t *testing.T, gdb *gorm.DB, available int) models.Listing {
	t.Helper()
	listing := models.Listing{
		ID:           uuid.New(),
		SellerID:     uuid.New(),
		Title:        "widget",
		PriceAmount:  1000,
		Currency:     "IRR",
		Status:       enums.ListingStatusActive,
		AvailableQty: available,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, gdb.Create(&listing).Error)
	return listing
}

func loadListing(t *testing.T, gdb *gorm.DB, id uuid.UUID) models.Listing {
	t.Helper()
	var listing models.Listing
	require.NoError(t, gdb.Where("id = ?", id).First(&listing).Error)
	return listing
}

func TestReserveMovesStockToReserved(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(gdb)
	listing := seedListing(t, gdb, 5)

	reservation, err := ledger.Reserve(context.Background(), uuid.New(), listing.ID, 3, time.Now().Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusHeld, reservation.Status)

	got := loadListing(t, gdb, listing.ID)
	assert.Equal(t, 2, got.AvailableQty)
	assert.Equal(t, 3, got.ReservedQty)
}

func TestReserveRejectsInsufficientStock(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(gdb)
	listing := seedListing(t, gdb, 2)

	_, err := ledger.Reserve(context.Background(), uuid.New(), listing.ID, 3, time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Equal(t, errors.CodeConflict, errors.As(err).Code())

	got := loadListing(t, gdb, listing.ID)
	assert.Equal(t, 2, got.AvailableQty)
	assert.Equal(t, 0, got.ReservedQty)
}

func TestReserveNeverOversells(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(gdb)
	listing := seedListing(t, gdb, 5)

	succeeded := 0
	for i := 0; i < 10; i++ {
		_, err := ledger.Reserve(context.Background(), uuid.New(), listing.ID, 1, time.Now().Add(time.Hour))
		if err == nil {
			succeeded++
		}
	}

	assert.Equal(t, 5, succeeded)
	got := loadListing(t, gdb, listing.ID)
	assert.Equal(t, 0, got.AvailableQty)
	assert.Equal(t, 5, got.ReservedQty)
}

func TestReserveNeverOversellsUnderConcurrency(t *testing.T) {
	gdb := newTestDB(t)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// Single writer connection: the goroutines interleave at the statement
	// level without tripping sqlite's multi-writer locking.
	sqlDB.SetMaxOpenConns(1)

	ledger := NewLedger(gdb)
	listing := seedListing(t, gdb, 5)

	var wg sync.WaitGroup
	var succeeded atomic.Int64
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Reserve(context.Background(), uuid.New(), listing.ID, 1, time.Now().Add(time.Hour))
			if err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), succeeded.Load())
	got := loadListing(t, gdb, listing.ID)
	assert.Equal(t, 0, got.AvailableQty)
	assert.Equal(t, 5, got.ReservedQty)
}

func TestReserveMarksListingSoldOut(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(gdb)
	listing := seedListing(t, gdb, 2)

	_, err := ledger.Reserve(context.Background(), uuid.New(), listing.ID, 2, time.Now().Add(time.Hour))
	require.NoError(t, err)

	got := loadListing(t, gdb, listing.ID)
	assert.Equal(t, enums.ListingStatusSoldOut, got.Status)
}

func TestReleaseRestoresStockAndIsIdempotent(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(gdb)
	listing := seedListing(t, gdb, 4)

	reservation, err := ledger.Reserve(context.Background(), uuid.New(), listing.ID, 4, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, enums.ListingStatusSoldOut, loadListing(t, gdb, listing.ID).Status)

	require.NoError(t, ledger.Release(context.Background(), reservation.ID))

	got := loadListing(t, gdb, listing.ID)
	assert.Equal(t, 4, got.AvailableQty)
	assert.Equal(t, 0, got.ReservedQty)
	assert.Equal(t, enums.ListingStatusActive, got.Status)

	// Second release is a no-op, not an error.
	require.NoError(t, ledger.Release(context.Background(), reservation.ID))
	got = loadListing(t, gdb, listing.ID)
	assert.Equal(t, 4, got.AvailableQty)
}

func TestCommitDrainsReservedStock(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(gdb)
	listing := seedListing(t, gdb, 5)

	reservation, err := ledger.Reserve(context.Background(), uuid.New(), listing.ID, 3, time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, ledger.Commit(context.Background(), reservation.ID))

	got := loadListing(t, gdb, listing.ID)
	assert.Equal(t, 2, got.AvailableQty)
	assert.Equal(t, 0, got.ReservedQty)

	// Committing twice is a no-op.
	require.NoError(t, ledger.Commit(context.Background(), reservation.ID))
	got = loadListing(t, gdb, listing.ID)
	assert.Equal(t, 2, got.AvailableQty)
}

func TestReleaseAfterCommitIsStateConflict(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(gdb)
	listing := seedListing(t, gdb, 3)

	reservation, err := ledger.Reserve(context.Background(), uuid.New(), listing.ID, 1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, ledger.Commit(context.Background(), reservation.ID))

	err = ledger.Release(context.Background(), reservation.ID)
	require.Error(t, err)
	assert.Equal(t, errors.CodeStateConflict, errors.As(err).Code())
}

func TestCommitAfterReleaseIsStateConflict(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(gdb)
	listing := seedListing(t, gdb, 3)

	reservation, err := ledger.Reserve(context.Background(), uuid.New(), listing.ID, 1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, ledger.Release(context.Background(), reservation.ID))

	err = ledger.Commit(context.Background(), reservation.ID)
	require.Error(t, err)
	assert.Equal(t, errors.CodeStateConflict, errors.As(err).Code())
}

func TestHeldByOrderReturnsOnlyActiveHolds(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(gdb)
	listing := seedListing(t, gdb, 10)
	orderID := uuid.New()

	first, err := ledger.Reserve(context.Background(), orderID, listing.ID, 2, time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = ledger.Reserve(context.Background(), orderID, listing.ID, 3, time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, ledger.Release(context.Background(), first.ID))

	held, err := ledger.HeldByOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, 3, held[0].Quantity)
}
