package domain

import (
	"context"
	"time"
)

type EventStatus string

const (
	EventStatusProcessing EventStatus = "processing"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusFailed     EventStatus = "failed"
)

// WebhookEvent is the processed-event ledger. The processor's event id is
// the primary key, so claiming an event is a plain insert: whichever
// request wins the insert processes, everyone else sees a duplicate.
type WebhookEvent struct {
	EventID      string      `gorm:"primaryKey;type:text"`
	EventType    string      `gorm:"type:text;not null"`
	Status       EventStatus `gorm:"type:text;not null;default:processing"`
	ErrorMessage *string     `gorm:"type:text"`
	ReceivedAt   time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP"`
	ProcessedAt  *time.Time  `gorm:""`
}

// TableName sets the database table name.
func (WebhookEvent) TableName() string { return "webhook_events" }

type Repository interface {
	// Claim inserts the ledger row. It reports duplicate=true when the
	// event id is already claimed or completed; a failed row is claimable
	// again so redelivery can reprocess it.
	Claim(ctx context.Context, eventID, eventType string) (duplicate bool, err error)
	MarkCompleted(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, cause error) error
}
