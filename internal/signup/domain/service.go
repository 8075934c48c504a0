package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	identitydomain "github.com/everafterhq/everafter/internal/identity/domain"
)

type CheckoutRequest struct {
	Email          string     `json:"email"`
	Password       string     `json:"password"`
	PartnerNameOne string     `json:"partner_name_one"`
	PartnerNameTwo string     `json:"partner_name_two"`
	Slug           string     `json:"slug"`
	ThemeID        string     `json:"theme_id"`
	EventDate      *time.Time `json:"event_date,omitempty"`
}

type CheckoutResult struct {
	SessionID string
	URL       string
}

// VerifyRequest carries the password again because it is deliberately not
// persisted anywhere until payment is confirmed; the client holds it
// between checkout and the confirmation page.
type VerifyRequest struct {
	SessionID string `json:"session_id"`
	Password  string `json:"password"`
}

type VerifyResult struct {
	Success    bool
	Slug       string
	Redirect   string
	Session    *identitydomain.Session
	NeedsLogin bool
}

type Service interface {
	StartCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

type Repository interface {
	Create(ctx context.Context, signup *PendingSignup) error
	FindBySessionID(ctx context.Context, sessionID string) (*PendingSignup, error)
	MarkCompleted(ctx context.Context, id snowflake.ID, completedAt time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

var (
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidPassword     = errors.New("invalid_password")
	ErrInvalidPartnerNames = errors.New("invalid_partner_names")
	ErrInvalidSlug         = errors.New("invalid_slug")
	ErrInvalidTheme        = errors.New("invalid_theme")

	// ErrSlugReserved: another in-flight signup holds the slug.
	ErrSlugReserved = errors.New("slug reserved by another signup")
	// ErrSlugTaken: a provisioned wedding already owns the slug.
	ErrSlugTaken = errors.New("slug already taken")
	// ErrSlugConflictPostPayment: the slug was taken between reservation
	// and provisioning; payment has already happened.
	ErrSlugConflictPostPayment = errors.New("slug conflict after payment")

	ErrSignupNotFound      = errors.New("signup not found")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrAccountExists       = errors.New("account already exists")
	ErrProvisionFailed     = errors.New("provisioning failed")
)
