// Package payment talks to the Khalti ePayment gateway.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no secret key was provided.
var ErrNotConfigured = errors.New("payment gateway not configured")

// Customer is the payer shown on the checkout page.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// InitiateRequest starts a checkout. Amount is in paisa.
type InitiateRequest struct {
	ReturnURL         string   `json:"return_url"`
	WebsiteURL        string   `json:"website_url"`
	Amount            int64    `json:"amount"`
	PurchaseOrderID   string   `json:"purchase_order_id"`
	PurchaseOrderName string   `json:"purchase_order_name"`
	CustomerInfo      Customer `json:"customer_info"`
}

// InitiateResponse is the gateway's answer to a checkout request.
type InitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	ExpiresIn  int    `json:"expires_in,omitempty"`
}

// LookupResponse reports the state of a checkout.
type LookupResponse struct {
	Pidx          string `json:"pidx"`
	TotalAmount   int64  `json:"total_amount"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Fee           int64  `json:"fee"`
	Refunded      bool   `json:"refunded"`
}

// APIError is a non-2xx gateway reply.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("khalti: status %d: %s", e.StatusCode, e.Body)
}

// Gateway is the subset of the Khalti API the services use.
type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error)
	Lookup(ctx context.Context, pidx string) (LookupResponse, error)
}

// Client is a Khalti ePayment API client.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

// NewClient creates a client for baseURL (e.g. https://a.khalti.com/api/v2).
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Initiate creates a checkout and returns its pidx and payment URL.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	var out InitiateResponse
	err := c.post(ctx, "/epayment/initiate/", req, &out)
	return out, err
}

// Lookup fetches the status of a checkout.
func (c *Client) Lookup(ctx context.Context, pidx string) (LookupResponse, error) {
	var out LookupResponse
	err := c.post(ctx, "/epayment/lookup/", map[string]string{"pidx": pidx}, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	if c.secretKey == "" {
		return ErrNotConfigured
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("khalti %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode khalti response: %w", err)
	}
	return nil
}
