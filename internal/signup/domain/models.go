package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type CheckoutStatus string

const (
	CheckoutStatusPending   CheckoutStatus = "pending"
	CheckoutStatusCompleted CheckoutStatus = "completed"
)

// PendingSignup reserves a slug while the customer completes checkout.
// At most one active (uncompleted) row may exist per slug; the partial
// unique index ux_pending_signups_active_slug enforces it. CompletedAt is
// set exactly once by the provisioner and is the idempotency boundary for
// retried verification calls.
type PendingSignup struct {
	ID               snowflake.ID   `gorm:"primaryKey"`
	PaymentSessionID string         `gorm:"type:text;not null;uniqueIndex"`
	Email            string         `gorm:"type:text;not null"`
	PartnerNameOne   string         `gorm:"type:text;not null"`
	PartnerNameTwo   string         `gorm:"type:text;not null"`
	Slug             string         `gorm:"type:text;not null"`
	ThemeID          string         `gorm:"type:text;not null"`
	EventDate        *time.Time     `gorm:""`
	CheckoutStatus   CheckoutStatus `gorm:"type:text;not null;default:pending"`
	ExpiresAt        time.Time      `gorm:"not null"`
	CompletedAt      *time.Time     `gorm:""`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PendingSignup) TableName() string { return "pending_signups" }
