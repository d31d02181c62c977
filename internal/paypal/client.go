// Package paypal is a minimal client for the PayPal Orders v2 REST API.
// PayPal ships no maintained Go SDK, so the calls are made directly.
package paypal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusCreated             = "CREATED"
	OrderStatusApproved            = "APPROVED"
	OrderStatusCompleted           = "COMPLETED"
	OrderStatusVoided              = "VOIDED"
	OrderStatusPayerActionRequired = "PAYER_ACTION_REQUIRED"
)

// ErrOrderAlreadyCaptured is returned when a capture call races with an
// earlier capture of the same order. Callers treat it as success.
var ErrOrderAlreadyCaptured = errors.New("paypal order has already been captured")

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
}

type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
}

func NewClient(cfg Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:      cfg.BaseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// ApproveURL returns the URL the payer must be redirected to, or "" when
// the order carries no approve link (e.g. it is already captured).
func (o *Order) ApproveURL() string {
	for _, link := range o.Links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

type CreateOrderParams struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	InvoiceID   string
	ReturnURL   string
	CancelURL   string

	// RequestID is sent as PayPal-Request-Id so that a retried create does
	// not open a second provider order.
	RequestID string
}

func (c *Client) CreateOrder(ctx context.Context, params CreateOrderParams) (*Order, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"description": params.Description,
				"invoice_id":  params.InvoiceID,
				"amount": map[string]string{
					"currency_code": params.Currency,
					"value":         params.Amount.StringFixed(2),
				},
			},
		},
		"application_context": map[string]string{
			"return_url": params.ReturnURL,
			"cancel_url": params.CancelURL,
		},
	}

	headers := map[string]string{}
	if params.RequestID != "" {
		headers["PayPal-Request-Id"] = params.RequestID
	}

	var order Order
	err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, headers, &order)
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, nil, nil, &order)
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	err := c.do(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", struct{}{}, nil, &order)
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}

	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request paypal access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("paypal token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode paypal token response: %w", err)
	}

	if res.AccessToken == "" {
		return "", errors.New("paypal token response contained no access token")
	}

	return res.AccessToken, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, headers map[string]string, out any) error {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal paypal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build paypal request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read paypal response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil {
			for _, detail := range apiErr.Details {
				if detail.Issue == "ORDER_ALREADY_CAPTURED" || detail.Issue == "DUPLICATE_INVOICE_ID" {
					return ErrOrderAlreadyCaptured
				}
			}
		}

		return fmt.Errorf("paypal %s %s returned %d: %s", method, path, resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode paypal response: %w", err)
		}
	}

	return nil
}
