// Package monero is a client for the monero-wallet-rpc JSON-RPC interface,
// covering the handful of calls the checkout flow needs. The wallet is
// expected to be a synced view-only wallet.
package monero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AtomicUnitsPerXMR is the wallet RPC's smallest denomination: 1 XMR = 1e12
// atomic units.
const AtomicUnitsPerXMR = 1_000_000_000_000

type Client struct {
	httpClient *http.Client
	rpcURL     string
}

func NewClient(rpcURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rpcURL: rpcURL,
	}
}

// Payment is an incoming transfer tagged with a payment id.
type Payment struct {
	PaymentID   string `json:"payment_id"`
	TxHash      string `json:"tx_hash"`
	Amount      uint64 `json:"amount"`
	BlockHeight uint64 `json:"block_height"`
	UnlockTime  uint64 `json:"unlock_time"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// GetPayments returns the wallet's incoming transfers carrying paymentID.
func (c *Client) GetPayments(ctx context.Context, paymentID string) ([]Payment, error) {
	var result struct {
		Payments []Payment `json:"payments"`
	}

	err := c.call(ctx, "get_payments", map[string]string{"payment_id": paymentID}, &result)
	if err != nil {
		return nil, err
	}

	return result.Payments, nil
}

// GetHeight returns the wallet's current blockchain height.
func (c *Client) GetHeight(ctx context.Context) (uint64, error) {
	var result struct {
		Height uint64 `json:"height"`
	}

	err := c.call(ctx, "get_height", nil, &result)
	if err != nil {
		return 0, err
	}

	return result.Height, nil
}

// Refresh syncs the wallet with the daemon so recent transfers are visible.
func (c *Client) Refresh(ctx context.Context) error {
	var result struct {
		BlocksFetched uint64 `json:"blocks_fetched"`
	}

	return c.call(ctx, "refresh", nil, &result)
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "0",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal wallet rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("build wallet rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wallet rpc %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read wallet rpc response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wallet rpc %s returned %d: %s", method, resp.StatusCode, respBody)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("decode wallet rpc response: %w", err)
	}

	if rpcResp.Error != nil {
		return fmt.Errorf("wallet rpc %s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decode wallet rpc result: %w", err)
		}
	}

	return nil
}
