package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/everafterhq/everafter/internal/signup/domain"
	"github.com/everafterhq/everafter/pkg/db"
)

type repository struct {
	db *gorm.DB
}

func New(gdb *gorm.DB) domain.Repository {
	return &repository{db: gdb}
}

// Create inserts the reservation. The partial unique index on active
// slugs is the serialization point for racing signups: the insert either
// wins or reports the conflict, there is no check-then-act window.
func (r *repository) Create(ctx context.Context, signup *domain.PendingSignup) error {
	err := r.db.WithContext(ctx).Create(signup).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrSlugReserved
	}
	return err
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*domain.PendingSignup, error) {
	var signup domain.PendingSignup
	err := r.db.WithContext(ctx).First(&signup, "payment_session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSignupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &signup, nil
}

func (r *repository) MarkCompleted(ctx context.Context, id snowflake.ID, completedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.PendingSignup{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]any{
			"completed_at":    completedAt,
			"checkout_status": domain.CheckoutStatusCompleted,
		}).Error
}

// DeleteExpired removes abandoned reservations. Completed rows are never
// swept regardless of age.
func (r *repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? AND completed_at IS NULL", now).
		Delete(&domain.PendingSignup{})
	return res.RowsAffected, res.Error
}
