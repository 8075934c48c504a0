// Package gotrue implements the identity gateway against a
// GoTrue-compatible auth server (Supabase Auth and friends).
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	identitydomain "github.com/everafterhq/everafter/internal/identity/domain"
)

type Client struct {
	baseURL    string
	serviceKey string
	client     *http.Client
	log        *zap.Logger
}

func NewClient(baseURL, serviceKey string, log *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		serviceKey: strings.TrimSpace(serviceKey),
		client:     &http.Client{Timeout: 12 * time.Second},
		log:        log.Named("identity.gotrue"),
	}
}

type adminUserRequest struct {
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	EmailConfirm bool           `json:"email_confirm"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

type adminUserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type errorResponse struct {
	Message   string `json:"msg"`
	ErrorCode string `json:"error_code"`
}

func (c *Client) CreateUser(ctx context.Context, req identitydomain.CreateUserRequest) (*identitydomain.User, error) {
	body, err := json.Marshal(adminUserRequest{
		Email:        req.Email,
		Password:     req.Password,
		EmailConfirm: true,
		UserMetadata: req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/admin/users", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusConflict {
		return nil, identitydomain.ErrEmailExists
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if apiErr := decodeError(resp); apiErr != "" {
			// GoTrue reports a duplicate email as a 400 with a coded message.
			if strings.Contains(apiErr, "already been registered") || strings.Contains(apiErr, "email_exists") {
				return nil, identitydomain.ErrEmailExists
			}
			c.log.Warn("create user rejected", zap.Int("status", resp.StatusCode), zap.String("message", apiErr))
		}
		return nil, identitydomain.ErrGatewayFailure
	}

	var user adminUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, errors.Join(identitydomain.ErrGatewayFailure, err)
	}
	if strings.TrimSpace(user.ID) == "" {
		return nil, identitydomain.ErrGatewayFailure
	}
	return &identitydomain.User{ID: user.ID, Email: user.Email}, nil
}

func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}

	resp, err := c.doRequest(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// A missing user means the delete already happened; treat as done.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return identitydomain.ErrGatewayFailure
	}
	return nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*identitydomain.Session, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/token?grant_type=password", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, identitydomain.ErrSignInFailed
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, errors.Join(identitydomain.ErrSignInFailed, err)
	}
	if token.AccessToken == "" {
		return nil, identitydomain.ErrSignInFailed
	}

	return &identitydomain.Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if c.baseURL == "" || c.serviceKey == "" {
		return nil, identitydomain.ErrGatewayFailure
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identitydomain.ErrGatewayFailure, err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) string {
	var apiErr errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		return ""
	}
	if apiErr.ErrorCode != "" {
		return apiErr.ErrorCode
	}
	return apiErr.Message
}
