/**
 * @description
 * Client for the billing provider that owns host subscriptions and hosted checkout.
 */
package billingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
)

// Client talks to the billing provider's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a billing client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type entitlementResponse struct {
	Status   string `json:"status"`
	Quantity int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type subscriptionRequest struct {
	HostID    string `json:"host_id"`
	Quantity  int    `json:"quantity"`
	TrialDays int    `json:"trial_days"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

// GetEntitlement returns the host's subscription summary. A host without a subscription
// is reported as status none.
func (c *Client) GetEntitlement(ctx context.Context, hostID string) (domain.Entitlement, error) {
	var resp entitlementResponse
	status, err := c.do(ctx, http.MethodGet, "/v1/subscriptions/"+url.PathEscape(hostID), nil, &resp)
	if status == http.StatusNotFound {
		return domain.Entitlement{Status: domain.EntitlementNone}, nil
	}
	if err != nil {
		return domain.Entitlement{}, err
	}

	switch domain.EntitlementStatus(resp.Status) {
	case domain.EntitlementActive, domain.EntitlementTrialing:
		return domain.Entitlement{Status: domain.EntitlementStatus(resp.Status), Quantity: resp.Quantity}, nil
	default:
		return domain.Entitlement{Status: domain.EntitlementNone, Quantity: resp.Quantity}, nil
	}
}

// SetQuantity sets the number of billed slots.
func (c *Client) SetQuantity(ctx context.Context, hostID string, quantity int) error {
	_, err := c.do(ctx, http.MethodPut, "/v1/subscriptions/"+url.PathEscape(hostID)+"/quantity", quantityRequest{Quantity: quantity}, nil)
	return err
}

// CancelSubscription cancels the host's subscription. Cancelling a missing subscription succeeds.
func (c *Client) CancelSubscription(ctx context.Context, hostID string) error {
	status, err := c.do(ctx, http.MethodDelete, "/v1/subscriptions/"+url.PathEscape(hostID), nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

// StartSubscription creates a subscription with an optional trial.
func (c *Client) StartSubscription(ctx context.Context, hostID string, quantity int, trialDays int) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/subscriptions", subscriptionRequest{HostID: hostID, Quantity: quantity, TrialDays: trialDays}, nil)
	return err
}

// StartCheckout opens a hosted checkout session and returns its redirect URL.
func (c *Client) StartCheckout(ctx context.Context, req domain.CheckoutRequest) (string, error) {
	var resp checkoutResponse
	if _, err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", req, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.URL) == "" {
		return "", fmt.Errorf("billing provider returned an empty checkout url")
	}
	return resp.URL, nil
}

// do sends a JSON request and decodes a JSON response into out when given.
// It returns the HTTP status code alongside any error.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, out interface{}) (int, error) {
	if c.baseURL == "" {
		return 0, fmt.Errorf("billing API base URL is not configured")
	}

	var body io.Reader
	if payload != nil {
		blob, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal billing request: %w", err)
		}
		body = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request to billing provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, fmt.Errorf("billing provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode billing response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
