package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/volkanakin/storefront-checkout/internal/domain"
	"github.com/volkanakin/storefront-checkout/internal/paypal"
)

// PayPalOrdersClient is the slice of the PayPal REST client the adapter needs.
type PayPalOrdersClient interface {
	CreateOrder(ctx context.Context, params paypal.CreateOrderParams) (*paypal.Order, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.Order, error)
}

type PayPalProvider struct {
	client    PayPalOrdersClient
	returnURL string
	cancelURL string
}

func NewPayPalProvider(client PayPalOrdersClient, returnURL, cancelURL string) *PayPalProvider {
	return &PayPalProvider{
		client:    client,
		returnURL: returnURL,
		cancelURL: cancelURL,
	}
}

func (p *PayPalProvider) CreateCheckoutSession(
	ctx context.Context,
	input domain.CheckoutInput) (*domain.CheckoutSession, error) {

	order, err := p.client.CreateOrder(ctx, paypal.CreateOrderParams{
		Amount:      input.Product.Price,
		Currency:    input.Product.Currency,
		Description: input.Product.Name,
		InvoiceID:   fmt.Sprintf("order-%d", input.OrderID),
		ReturnURL:   p.returnURL,
		CancelURL:   p.cancelURL,
		RequestID:   uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("create paypal order: %w", err)
	}

	approveURL := order.ApproveURL()
	if approveURL == "" {
		return nil, fmt.Errorf("paypal order %s carries no approve link", order.ID)
	}

	return &domain.CheckoutSession{
		ID:          order.ID,
		RedirectURL: approveURL,
	}, nil
}

// VerifyPayment captures the order if the payer has approved it. The caller
// passes the PayPal-issued token from the return redirect when present; the
// order id PayPal reports at creation time is not always the identifier
// usable for lookup afterwards.
func (p *PayPalProvider) VerifyPayment(
	ctx context.Context,
	sessionID string) (*domain.VerificationResult, error) {

	order, err := p.client.GetOrder(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve paypal order: %w", err)
	}

	switch order.Status {
	case paypal.OrderStatusCompleted:
		return &domain.VerificationResult{Success: true}, nil

	case paypal.OrderStatusApproved:
		captured, err := p.client.CaptureOrder(ctx, sessionID)
		if errors.Is(err, paypal.ErrOrderAlreadyCaptured) {
			return &domain.VerificationResult{Success: true}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("capture paypal order: %w", err)
		}

		if captured.Status == paypal.OrderStatusCompleted {
			return &domain.VerificationResult{Success: true}, nil
		}

		return &domain.VerificationResult{
			Reason:    "payment capture is still processing",
			Retryable: true,
		}, nil

	case paypal.OrderStatusCreated, paypal.OrderStatusPayerActionRequired:
		return &domain.VerificationResult{
			Reason:    "payment has not been approved yet",
			Retryable: true,
		}, nil

	case paypal.OrderStatusVoided:
		return &domain.VerificationResult{
			Reason: "payment was cancelled",
		}, nil

	default:
		return &domain.VerificationResult{
			Reason:    fmt.Sprintf("unexpected paypal order status %q", order.Status),
			Retryable: true,
		}, nil
	}
}
