// Package checkoutclient verifies checkout sessions against the storefront
// checkout API. It is meant for return pages and callback workers that need
// to poll until a provider has settled a payment: the verifier retries
// not-yet-paid responses with exponential backoff and guards against the
// duplicate invocations browsers produce on redirect pages.
package checkoutclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultInitialInterval = 2 * time.Second

	// defaultMaxRetries retries after the initial attempt, so a full run
	// makes four calls spaced 2s, 4s and 8s apart.
	defaultMaxRetries = 3
)

// VerificationResult mirrors the API's verification response.
type VerificationResult struct {
	Success        bool   `json:"success"`
	ProductID      string `json:"productId,omitempty"`
	IsSubscription bool   `json:"isSubscription,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	Error          string `json:"error,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	initialInterval time.Duration
	maxRetries      uint64
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithInitialInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.initialInterval = interval
	}
}

func WithMaxRetries(retries uint64) Option {
	return func(c *Client) {
		c.maxRetries = retries
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:         baseURL,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		initialInterval: defaultInitialInterval,
		maxRetries:      defaultMaxRetries,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Verify polls the verification endpoint for the given provider until the
// payment settles, fails terminally, or the retry budget runs out. Pending
// payments are retried with doubling delays; HTTP 4xx responses and
// non-retryable failures stop immediately.
func (c *Client) Verify(ctx context.Context, provider string, params url.Values) (*VerificationResult, error) {
	endpoint := fmt.Sprintf("%s/api/checkout/%s?%s", c.baseURL, provider, params.Encode())

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = 5 * time.Minute

	var result *VerificationResult

	operation := func() error {
		res, err := c.verifyOnce(ctx, endpoint)
		if err != nil {
			return err
		}

		result = res

		if !res.Success {
			return fmt.Errorf("payment not completed: %s", res.Error)
		}
		return nil
	}

	err := backoff.Retry(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx),
	)
	if err != nil && result == nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) verifyOnce(ctx context.Context, endpoint string) (*VerificationResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("verification endpoint returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		// Bad session ids and malformed requests never heal on retry.
		return nil, backoff.Permanent(fmt.Errorf("verification endpoint returned %d", resp.StatusCode))
	}

	var result VerificationResult
	err = json.NewDecoder(resp.Body).Decode(&result)
	if err != nil {
		return nil, fmt.Errorf("decode verification response: %w", err)
	}

	return &result, nil
}

// Verifier wraps Client with a single-flight guard so that a verification
// triggered twice for the same session, as happens when a return page fires
// its callback more than once, only runs one retry loop.
type Verifier struct {
	client   *Client
	provider string
	params   url.Values

	started atomic.Bool
	done    chan struct{}
	result  *VerificationResult
	err     error
}

func NewVerifier(client *Client, provider string, params url.Values) *Verifier {
	return &Verifier{
		client:   client,
		provider: provider,
		params:   params,
		done:     make(chan struct{}),
	}
}

// Run performs the verification exactly once. Concurrent and repeated calls
// wait for the first run and share its outcome.
func (v *Verifier) Run(ctx context.Context) (*VerificationResult, error) {
	if v.started.CompareAndSwap(false, true) {
		v.result, v.err = v.client.Verify(ctx, v.provider, v.params)
		close(v.done)
		return v.result, v.err
	}

	select {
	case <-v.done:
		return v.result, v.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
