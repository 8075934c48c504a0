package domain

import (
	"context"
	"errors"
	"time"

	"github.com/everafterhq/everafter/internal/subscription"
)

// Profile is one customer's subscription record, keyed by the identity
// provider's user id. Only the provisioner and the webhook reconciler
// write the subscription fields.
type Profile struct {
	ID                  string              `gorm:"primaryKey"`
	Email               string              `gorm:"type:text;not null"`
	SubscriptionStatus  subscription.Status `gorm:"type:text;not null;default:trial"`
	SubscriptionEndDate time.Time           `gorm:"not null"`
	PaymentCustomerID   *string             `gorm:"type:text;index"`
	CreatedAt           time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "profiles" }

// IsTrialExpired is derived at read time, never persisted.
func (p *Profile) IsTrialExpired(now time.Time) bool {
	return subscription.IsTrialExpired(p.SubscriptionStatus, p.SubscriptionEndDate, now)
}

type Repository interface {
	Upsert(ctx context.Context, profile *Profile) error
	FindByID(ctx context.Context, id string) (*Profile, error)
	FindByPaymentCustomerID(ctx context.Context, customerID string) (*Profile, error)
	UpdateSubscription(ctx context.Context, id string, status subscription.Status, endDate time.Time) error
	Delete(ctx context.Context, id string) error
}

var ErrNotFound = errors.New("profile not found")
