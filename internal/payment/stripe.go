package payment

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

// StripeProvider drives Stripe's hosted checkout. It also serves SEPA debit
// checkouts, which are routed through Stripe as a payment method type.
type StripeProvider struct {
	successURL string
	cancelURL  string
}

func NewStripeProvider(successURL, cancelURL string) *StripeProvider {
	return &StripeProvider{
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (s *StripeProvider) CreateCheckoutSession(
	ctx context.Context,
	input domain.CheckoutInput) (*domain.CheckoutSession, error) {

	product := input.Product
	priceCents := product.Price.Mul(decimal.NewFromInt(100)).IntPart()

	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(product.Currency),
		UnitAmount: stripe.Int64(priceCents),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(product.Name),
		},
	}

	mode := stripe.CheckoutSessionModePayment
	if product.IsSubscription {
		mode = stripe.CheckoutSessionModeSubscription
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		}
	}

	userID := domain.AnonymousUserID
	if input.User != nil {
		userID = input.User.ID
	}

	// {CHECKOUT_SESSION_ID} is a Stripe template resolved at redirect time.
	successURL := fmt.Sprintf("%s?sessionId={CHECKOUT_SESSION_ID}&productId=%s&userId=%s",
		s.successURL, url.QueryEscape(product.ID), url.QueryEscape(userID))

	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: priceData,
				Quantity:  stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(s.cancelURL),
		Metadata: map[string]string{
			"order_id":   strconv.Itoa(input.OrderID),
			"product_id": product.ID,
			"user_id":    userID,
		},
	}

	if input.PaymentMethod == domain.PaymentMethodSepaDebit {
		params.PaymentMethodTypes = stripe.StringSlice([]string{"sepa_debit"})
	}

	if input.User != nil && input.User.Email != "" {
		params.CustomerEmail = stripe.String(input.User.Email)
	}

	checkoutSession, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe checkout session: %w", err)
	}

	return &domain.CheckoutSession{
		ID:          checkoutSession.ID,
		RedirectURL: checkoutSession.URL,
	}, nil
}

func (s *StripeProvider) VerifyPayment(
	ctx context.Context,
	sessionID string) (*domain.VerificationResult, error) {

	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}
	params.AddExpand("subscription")

	checkoutSession, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve stripe checkout session: %w", err)
	}

	result := &domain.VerificationResult{
		ProductID: checkoutSession.Metadata["product_id"],
	}

	switch checkoutSession.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		result.Success = true

		if checkoutSession.Mode == stripe.CheckoutSessionModeSubscription {
			result.IsSubscription = true
			if checkoutSession.Subscription != nil {
				result.SubscriptionID = checkoutSession.Subscription.ID
			}
		}
	default:
		if checkoutSession.Status == stripe.CheckoutSessionStatusExpired {
			result.Reason = "checkout session has expired"
		} else {
			result.Reason = "payment has not been completed yet"
			result.Retryable = true
		}
	}

	return result, nil
}
