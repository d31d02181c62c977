package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// CheckoutInput carries everything an adapter needs to open a checkout
// session. User is nil for guest checkouts.
type CheckoutInput struct {
	Product       *Product
	User          *User
	OrderID       int
	PaymentMethod PaymentMethod
}

// CheckoutSession is the provider-side handle for one payment attempt.
// Providers with hosted checkout pages return a RedirectURL pointing at the
// provider; Monero has no external redirect, so the session carries the
// payment details and a same-origin URL instead.
type CheckoutSession struct {
	ID          string
	RedirectURL string

	// Monero only.
	Address   string
	XMRAmount decimal.Decimal
}

// VerificationResult is the normalized outcome of asking a provider whether
// a session's funds have arrived. "Not paid yet" is Success=false with
// Retryable=true, never an error; errors are reserved for provider
// communication failures.
type VerificationResult struct {
	Success        bool
	ProductID      string
	IsSubscription bool
	SubscriptionID string
	Reason         string
	Retryable      bool
}

type PaymentProvider interface {
	// CreateCheckoutSession opens a provider session for the given order.
	// It must not mutate persisted state beyond what the provider requires.
	CreateCheckoutSession(ctx context.Context, input CheckoutInput) (*CheckoutSession, error)

	// VerifyPayment reports whether the session's payment has been captured.
	// It is safe to call any number of times for the same session.
	VerifyPayment(ctx context.Context, sessionID string) (*VerificationResult, error)
}
