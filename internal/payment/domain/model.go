package domain

import (
	"context"
	"encoding/json"
	"errors"
)

// CheckoutSession is the provider-neutral view of a hosted checkout.
type CheckoutSession struct {
	ID            string
	URL           string
	PaymentStatus string
	CustomerID    string
	Metadata      map[string]string
}

const PaymentStatusPaid = "paid"

// MetadataSignupType marks sessions opened by the signup flow so webhook
// consumers can tell them apart from other checkouts.
const (
	MetadataTypeKey  = "type"
	MetadataSignup   = "new_signup"
	MetadataSlugKey  = "slug"
	MetadataEmailKey = "email"
)

type CreateCheckoutParams struct {
	CustomerEmail string
	PriceID       string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Event is a verified webhook event. Data carries the raw provider object
// for the dispatcher to decode per type.
type Event struct {
	ID      string
	Type    string
	Created int64
	Data    json.RawMessage
}

// Gateway is the payment processor surface consumed by the engine.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutParams) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	VerifyWebhook(payload []byte, signatureHeader string) (*Event, error)
}

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrGatewayFailure   = errors.New("payment gateway failure")
)
