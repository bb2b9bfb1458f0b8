package listings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario-dev/bazario-backend/pkg/db"
	"github.com/bazario-dev/bazario-backend/pkg/db/models"
	"github.com/bazario-dev/bazario-backend/pkg/errors"
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

// SnapshotByIDs loads the listings referenced by a cart. Every requested id
// must exist; a missing one fails the whole lookup.
func (r *Repository) SnapshotByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Listing, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]models.Listing{}, nil
	}

	var rows []models.Listing
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading listings: %w", err)
	}

	byID := make(map[uuid.UUID]models.Listing, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, errors.New(errors.CodeNotFound, "listing not found").
				WithDetails(map[string]any{"listing_id": id.String()})
		}
	}
	return byID, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var row models.Listing
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if db.IsNotFound(err) {
		return nil, errors.New(errors.CodeNotFound, "listing not found")
	}
	if err != nil {
		return nil, fmt.Errorf("loading listing: %w", err)
	}
	return &row, nil
}
