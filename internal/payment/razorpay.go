// Package payment talks to the Razorpay payment-link API and verifies its
// webhook deliveries.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatcommerce/internal/domain"
)

const DefaultBaseURL = "https://api.razorpay.com/v1"

// LinkRequest describes a payment link for one order. Amount is in minor units.
type LinkRequest struct {
	Amount      int64
	Currency    string
	Reference   string
	Description string
	Contact     string
}

type Link struct {
	ID  string
	URL string
}

// Client creates Razorpay payment links.
type Client struct {
	baseURL     string
	keyID       string
	keySecret   string
	callbackURL string
	httpClient  *http.Client
}

func NewClient(baseURL, keyID, keySecret, callbackURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		keyID:       keyID,
		keySecret:   keySecret,
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

type linkPayload struct {
	Amount         int64           `json:"amount"`
	Currency       string          `json:"currency"`
	ReferenceID    string          `json:"reference_id"`
	Description    string          `json:"description"`
	Customer       linkCustomer    `json:"customer"`
	Notify         map[string]bool `json:"notify"`
	CallbackURL    string          `json:"callback_url,omitempty"`
	CallbackMethod string          `json:"callback_method,omitempty"`
}

type linkCustomer struct {
	Contact string `json:"contact"`
}

type linkResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Error    *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

// CreatePaymentLink requests a hosted payment page for req.
func (c *Client) CreatePaymentLink(ctx context.Context, req LinkRequest) (*Link, error) {
	if req.Currency == "" {
		req.Currency = "INR"
	}
	payload := linkPayload{
		Amount:      req.Amount,
		Currency:    req.Currency,
		ReferenceID: req.Reference,
		Description: req.Description,
		Customer:    linkCustomer{Contact: "+" + NormalizeContact(req.Contact)},
		Notify:      map[string]bool{"sms": false, "email": false},
	}
	if c.callbackURL != "" {
		payload.CallbackURL = c.callbackURL
		payload.CallbackMethod = "get"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payment_links", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.UpstreamErr("create payment link", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.UpstreamErr("read payment link response", err)
	}

	var out linkResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, domain.UpstreamErr("decode payment link response", fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}
	if resp.StatusCode >= 300 || out.ShortURL == "" {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if out.Error != nil {
			msg += ": " + out.Error.Code + " " + out.Error.Description
		}
		return nil, domain.UpstreamErr("create payment link", fmt.Errorf("%s", msg))
	}
	return &Link{ID: out.ID, URL: out.ShortURL}, nil
}
