package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	paymentdomain "github.com/everafterhq/everafter/internal/payment/domain"
)

const apiBase = "https://api.stripe.com"

type stripeSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	Customer      string            `json:"customer"`
	Metadata      map[string]string `json:"metadata"`
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to the Stripe REST API directly; checkout sessions only
// need two calls and signature verification, so no SDK is pulled in.
type Client struct {
	apiKey        string
	webhookSecret string
	client        *http.Client
	log           *zap.Logger
}

func NewClient(apiKey, webhookSecret string, log *zap.Logger) *Client {
	return &Client{
		apiKey:        strings.TrimSpace(apiKey),
		webhookSecret: strings.TrimSpace(webhookSecret),
		client:        &http.Client{Timeout: 12 * time.Second},
		log:           log.Named("stripe.client"),
	}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params paymentdomain.CreateCheckoutParams) (*paymentdomain.CheckoutSession, error) {
	values := url.Values{}
	values.Set("mode", "subscription")
	values.Set("customer_email", params.CustomerEmail)
	values.Set("success_url", params.SuccessURL)
	values.Set("cancel_url", params.CancelURL)
	values.Set("line_items[0][price]", params.PriceID)
	values.Set("line_items[0][quantity]", "1")
	for key, value := range params.Metadata {
		values.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	session, err := c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", values)
	if err != nil {
		return nil, err
	}
	return toDomain(session), nil
}

func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*paymentdomain.CheckoutSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, paymentdomain.ErrSessionNotFound
	}
	session, err := c.doRequest(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, err
	}
	return toDomain(session), nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, values url.Values) (stripeSession, error) {
	if c.apiKey == "" {
		return stripeSession{}, paymentdomain.ErrGatewayFailure
	}

	body := ""
	if values != nil {
		body = values.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, apiBase+path, strings.NewReader(body))
	if err != nil {
		return stripeSession{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return stripeSession{}, fmt.Errorf("%w: %v", paymentdomain.ErrGatewayFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return stripeSession{}, paymentdomain.ErrSessionNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err == nil {
			message := strings.TrimSpace(stripeErr.Error.Message)
			if message != "" {
				c.log.Warn("stripe request rejected",
					zap.String("path", path),
					zap.Int("status", resp.StatusCode),
					zap.String("message", message),
				)
			}
		}
		return stripeSession{}, paymentdomain.ErrGatewayFailure
	}

	var session stripeSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return stripeSession{}, errors.Join(paymentdomain.ErrGatewayFailure, err)
	}
	return session, nil
}

func toDomain(session stripeSession) *paymentdomain.CheckoutSession {
	return &paymentdomain.CheckoutSession{
		ID:            session.ID,
		URL:           session.URL,
		PaymentStatus: session.PaymentStatus,
		CustomerID:    session.Customer,
		Metadata:      session.Metadata,
	}
}
