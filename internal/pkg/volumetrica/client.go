package volumetrica

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"

	"github.com/ManuelReschke/PropSync/internal/pkg/config"
)

const apiPrefix = "/api/v2/Propsite"

// APIError is returned for any non-2xx upstream response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("volumetrica api %s %s failed: status=%d body=%s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Retryable reports whether the upstream signalled a server-side failure.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the platform REST API. Every call carries a per-attempt
// timeout and is retried on 5xx and transport failures with linear backoff.
type Client struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration

	HTTPClient *http.Client
}

// NewClient creates a client from the upstream section of the config.
func NewClient(cfg config.VolumetricaConfig) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout,
		Retries:    cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		HTTPClient: &http.Client{},
	}
}

// GetAccount fetches one trading account.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	id := strings.TrimSpace(accountID)
	if id == "" {
		return nil, errors.New("account id is required")
	}
	body, err := c.do(ctx, http.MethodGet, apiPrefix+"/TradingAccount/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return DecodeAccount(unwrapData(body))
}

// ListUserAccounts fetches every trading account owned by a platform user.
func (c *Client) ListUserAccounts(ctx context.Context, userID string) ([]Account, error) {
	id := strings.TrimSpace(userID)
	if id == "" {
		return nil, errors.New("user id is required")
	}
	body, err := c.do(ctx, http.MethodGet, apiPrefix+"/TradingAccount/User/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(unwrapData(body), &items); err != nil {
		return nil, fmt.Errorf("decode account list: %w", err)
	}
	out := make([]Account, 0, len(items))
	for _, item := range items {
		acc, err := DecodeAccount(item)
		if err != nil {
			return nil, fmt.Errorf("decode account list item: %w", err)
		}
		out = append(out, *acc)
	}
	return out, nil
}

// CreateUser registers an organization user.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if strings.TrimSpace(req.Email) == "" {
		return nil, errors.New("email is required")
	}
	body, err := c.do(ctx, http.MethodPost, apiPrefix+"/User", req)
	if err != nil {
		return nil, err
	}
	return DecodeUser(unwrapData(body))
}

// UpdateUser updates an organization user.
func (c *Client) UpdateUser(ctx context.Context, userID string, req UpdateUserRequest) (*User, error) {
	id := strings.TrimSpace(userID)
	if id == "" {
		return nil, errors.New("user id is required")
	}
	body, err := c.do(ctx, http.MethodPut, apiPrefix+"/User/"+url.PathEscape(id), req)
	if err != nil {
		return nil, err
	}
	return DecodeUser(unwrapData(body))
}

// EnableAccount re-enables trading on an account.
func (c *Client) EnableAccount(ctx context.Context, accountID string) error {
	return c.accountAction(ctx, accountID, "Enable", nil)
}

// DisableAccount disables trading on an account.
func (c *Client) DisableAccount(ctx context.Context, accountID string) error {
	return c.accountAction(ctx, accountID, "Disable", nil)
}

// ChangeAccountStatus moves an account to a new lifecycle status.
func (c *Client) ChangeAccountStatus(ctx context.Context, accountID string, req AccountStatusRequest) error {
	if strings.TrimSpace(req.Status) == "" {
		return errors.New("status is required")
	}
	return c.accountAction(ctx, accountID, "Status", req)
}

// CreateSubscription creates a subscription.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	body, err := c.do(ctx, http.MethodPost, apiPrefix+"/Subscription", req)
	if err != nil {
		return nil, err
	}
	return DecodeSubscription(unwrapData(body))
}

// UpdateSubscription updates a subscription.
func (c *Client) UpdateSubscription(ctx context.Context, subscriptionID string, req SubscriptionRequest) (*Subscription, error) {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return nil, errors.New("subscription id is required")
	}
	body, err := c.do(ctx, http.MethodPut, apiPrefix+"/Subscription/"+url.PathEscape(id), req)
	if err != nil {
		return nil, err
	}
	return DecodeSubscription(unwrapData(body))
}

// ActivateSubscription activates a subscription.
func (c *Client) ActivateSubscription(ctx context.Context, subscriptionID string) error {
	return c.subscriptionAction(ctx, http.MethodPost, subscriptionID, "/Activate")
}

// DeactivateSubscription deactivates a subscription.
func (c *Client) DeactivateSubscription(ctx context.Context, subscriptionID string) error {
	return c.subscriptionAction(ctx, http.MethodPost, subscriptionID, "/Deactivate")
}

// DeleteSubscription deletes a subscription.
func (c *Client) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	return c.subscriptionAction(ctx, http.MethodDelete, subscriptionID, "")
}

func (c *Client) accountAction(ctx context.Context, accountID, action string, payload any) error {
	id := strings.TrimSpace(accountID)
	if id == "" {
		return errors.New("account id is required")
	}
	_, err := c.do(ctx, http.MethodPost, apiPrefix+"/TradingAccount/"+url.PathEscape(id)+"/"+action, payload)
	return err
}

func (c *Client) subscriptionAction(ctx context.Context, method, subscriptionID, suffix string) error {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return errors.New("subscription id is required")
	}
	_, err := c.do(ctx, method, apiPrefix+"/Subscription/"+url.PathEscape(id)+suffix, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if c.BaseURL == "" {
		return nil, errors.New("VOLUMETRICA_API_BASE_URL is not configured")
	}

	var reqBody []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = encoded
	}

	attempt := func() ([]byte, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()

		var bodyReader io.Reader
		if reqBody != nil {
			bodyReader = bytes.NewReader(reqBody)
		}
		req, err := http.NewRequestWithContext(attemptCtx, method, c.BaseURL+path, bodyReader)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.APIKey != "" {
			req.Header.Set("x-api-key", c.APIKey)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
			if apiErr.Retryable() {
				return nil, apiErr
			}
			return nil, backoff.Permanent(apiErr)
		}
		return body, nil
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(&linearBackOff{Step: c.RetryDelay}),
		backoff.WithMaxTries(uint(c.Retries+1)),
	)
}

// unwrapData accepts both bare entities and {"success":..,"data":..} envelopes.
func unwrapData(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil || len(envelope.Data) == 0 {
		return trimmed
	}
	return envelope.Data
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
