package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario-dev/bazario-backend/pkg/db/models"
	"github.com/bazario-dev/bazario-backend/pkg/enums"
)

// Emitter is the write half used inside settlement transactions.
type Emitter interface {
	Emit(ctx context.Context, eventType enums.EventType, aggregateID uuid.UUID, payload any) error
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Emit writes the event row through the repository's handle; cloned with
// WithTx it commits or rolls back with the state change it describes.
func (r *Repository) Emit(ctx context.Context, eventType enums.EventType, aggregateID uuid.UUID, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling %s payload: %w", eventType, err)
	}

	now := time.Now().UTC()
	event := models.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: enums.AggregateTypeOrder,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("inserting outbox event: %w", err)
	}
	return nil
}

// PollPending returns unpublished events under the attempt ceiling, oldest
// first, so the notify worker drains them in emit order.
func (r *Repository) PollPending(ctx context.Context, batchSize, maxAttempts int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL AND attempts < ?", maxAttempts).
		Order("created_at ASC").
		Limit(batchSize).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("polling outbox: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": now,
			"updated_at":   now,
		}).Error
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
			"updated_at": time.Now().UTC(),
		}).Error
}
