// Package billing is the thin forward to the billing provider's REST API.
// It is a collaborator of the core, stubbed behind the Client interface so
// state machines and handlers test without a network dependency.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vistream/backend/config"
)

// Client is the billing provider surface the callable operations need.
type Client interface {
	// CreateCheckoutSession starts a subscription checkout; userRef is echoed
	// back in the activation webhook as the client reference.
	CreateCheckoutSession(ctx context.Context, userRef, priceID string) (checkoutURL string, err error)
	// CreatePortalSession opens a self-service billing portal for a customer.
	CreatePortalSession(ctx context.Context, customerID string) (portalURL string, err error)
	// CancelSubscription cancels a subscription; returns the provider status.
	CancelSubscription(ctx context.Context, subscriptionID string) (status string, err error)
}

// ProviderError is a structured provider failure the UI can render.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("billing provider error (%d %s): %s", e.StatusCode, e.Code, e.Message)
}

// HTTPClient talks to a Stripe-style REST API with form-encoded requests and
// bearer auth.
type HTTPClient struct {
	cfg  config.StripeConfig
	http *http.Client
}

// NewHTTPClient creates the billing REST client.
func NewHTTPClient(cfg config.StripeConfig) *HTTPClient {
	return &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateCheckoutSession implements Client.
func (c *HTTPClient) CreateCheckoutSession(ctx context.Context, userRef, priceID string) (string, error) {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("client_reference_id", userRef)
	form.Set("line_items[0][price]", priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[price_id]", priceID)
	form.Set("success_url", c.cfg.CheckoutSuccessURL)
	form.Set("cancel_url", c.cfg.CheckoutCancelURL)

	var out struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/checkout/sessions", form, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// CreatePortalSession implements Client.
func (c *HTTPClient) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("return_url", c.cfg.PortalReturnURL)

	var out struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/billing_portal/sessions", form, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// CancelSubscription implements Client.
func (c *HTTPClient) CancelSubscription(ctx context.Context, subscriptionID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodDelete, "/subscriptions/"+subscriptionID, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("billing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		return &ProviderError{
			StatusCode: resp.StatusCode,
			Code:       apiErr.Error.Code,
			Message:    apiErr.Error.Message,
		}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
