package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/everafterhq/everafter/internal/billing/domain"
	"github.com/everafterhq/everafter/pkg/db"
)

type repository struct {
	db *gorm.DB
}

func New(gdb *gorm.DB) domain.Repository {
	return &repository{db: gdb}
}

func (r *repository) Claim(ctx context.Context, eventID, eventType string) (bool, error) {
	event := &domain.WebhookEvent{
		EventID:    eventID,
		EventType:  eventType,
		Status:     domain.EventStatusProcessing,
		ReceivedAt: time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Create(event).Error
	if db.IsDuplicateKeyErr(err) {
		// A failed row is not a duplicate: it is kept so that the
		// processor's redelivery reprocesses the event instead of being
		// swallowed.
		var existing domain.WebhookEvent
		findErr := r.db.WithContext(ctx).First(&existing, "event_id = ?", eventID).Error
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return false, err
			}
			return false, findErr
		}
		if existing.Status == domain.EventStatusFailed {
			return false, nil
		}
		return true, nil
	}
	return false, err
}

func (r *repository) MarkCompleted(ctx context.Context, eventID string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&domain.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"status":       domain.EventStatusCompleted,
			"processed_at": now,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, eventID string, cause error) error {
	now := time.Now().UTC()
	message := cause.Error()
	return r.db.WithContext(ctx).Model(&domain.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"status":        domain.EventStatusFailed,
			"error_message": message,
			"processed_at":  now,
		}).Error
}
