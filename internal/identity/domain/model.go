package domain

import (
	"context"
	"errors"
	"time"
)

// User is the identity provider's account record.
type User struct {
	ID    string
	Email string
}

// Session holds the tokens returned by a password sign-in.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type CreateUserRequest struct {
	Email    string
	Password string
	Metadata map[string]any
}

// Gateway is the identity provider surface consumed by the engine.
// Passwords pass through to the provider; they are never stored here.
type Gateway interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, userID string) error
	SignIn(ctx context.Context, email, password string) (*Session, error)
}

var (
	ErrEmailExists    = errors.New("email already registered")
	ErrSignInFailed   = errors.New("sign in failed")
	ErrGatewayFailure = errors.New("identity gateway failure")
)
