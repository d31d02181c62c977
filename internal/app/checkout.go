package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

type CreateCheckoutRequest struct {
	ProductID     string `json:"productId" validate:"required,max=64"`
	UserID        string `json:"userId" validate:"omitempty,max=64"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,payment_method"`
}

type CheckoutSessionResponse struct {
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"checkoutUrl"`
}

type VerificationResponse struct {
	Success        bool   `json:"success"`
	ProductID      string `json:"productId,omitempty"`
	IsSubscription bool   `json:"isSubscription,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	Error          string `json:"error,omitempty"`
}

// createCheckout runs the provider-independent half of checkout creation:
// validate the request, load the product and user, persist a pending order,
// open the provider session and bind its id to the order. The order exists
// before the provider is called, so a session that was paid but never
// verified can always be reconciled later.
func (app *Application) createCheckout(
	w http.ResponseWriter,
	r *http.Request,
	method domain.PaymentMethod) (*domain.Order, *domain.CheckoutSession, bool) {

	var input CreateCheckoutRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return nil, nil, false
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return nil, nil, false
	}

	// Only the Stripe endpoint distinguishes payment methods; sepa_debit
	// rides on the same adapter with a different checkout configuration.
	if method == domain.PaymentMethodStripe && input.PaymentMethod == string(domain.PaymentMethodSepaDebit) {
		method = domain.PaymentMethodSepaDebit
	}

	ctx := r.Context()

	product, err := app.productRepo.GetByID(ctx, input.ProductID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponseWithErr(w, r, fmt.Errorf("product %s not found", input.ProductID))
		default:
			app.serverErrorResponse(w, r, err)
		}
		return nil, nil, false
	}

	user, ok := app.resolveUser(w, r, input.UserID)
	if !ok {
		return nil, nil, false
	}

	order := app.newPendingOrder(product, user, method)

	err = app.orderRepo.Create(ctx, order)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return nil, nil, false
	}

	provider, err := app.providers.Get(method)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return nil, nil, false
	}

	session, err := provider.CreateCheckoutSession(ctx, domain.CheckoutInput{
		Product:       product,
		User:          user,
		OrderID:       order.ID,
		PaymentMethod: method,
	})
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return nil, nil, false
	}

	err = app.orderRepo.AttachSessionID(ctx, order.ID, session.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return nil, nil, false
	}

	return order, session, true
}

// resolveUser loads the user for a checkout request. An empty id means a
// guest checkout and resolves to no user at all.
func (app *Application) resolveUser(w http.ResponseWriter, r *http.Request, userID string) (*domain.User, bool) {
	if userID == "" || userID == domain.AnonymousUserID {
		return nil, true
	}

	user, err := app.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponseWithErr(w, r, fmt.Errorf("user %s not found", userID))
		default:
			app.serverErrorResponse(w, r, err)
		}
		return nil, false
	}

	return user, true
}

func (app *Application) newPendingOrder(product *domain.Product, user *domain.User, method domain.PaymentMethod) *domain.Order {
	order := &domain.Order{
		UserID: domain.AnonymousUserID,
		Items: []domain.OrderItem{
			{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    1,
				Price:       product.Price,
				Total:       product.Price,
			},
		},
		Total:         product.Price,
		Currency:      product.Currency,
		Status:        domain.OrderStatusPending,
		PaymentMethod: method,
	}

	if user != nil {
		order.UserID = user.ID
		order.CustomerEmail = &user.Email
		order.CustomerName = &user.Name
	}

	return order
}

// verificationOutcome bundles what a verification run produced: the
// provider's verdict, the order it settled, and the membership grant if the
// order bought one.
type verificationOutcome struct {
	result       *domain.VerificationResult
	order        *domain.Order
	subscription *domain.Subscription
}

// verifyCheckout settles the order bound to sessionID. The order's recorded
// payment method picks the adapter; providerRef is the provider-side
// reference to verify, which for PayPal may differ from the session id.
//
// Completed orders short-circuit without a provider round trip, so clients
// can re-poll a settled session forever. On a fresh provider confirmation
// exactly one caller wins the pending-to-completed transition and creates
// the membership grant; losers observe the winner's result.
func (app *Application) verifyCheckout(r *http.Request, sessionID, providerRef string) (*verificationOutcome, error) {
	ctx := r.Context()

	order, err := app.orderRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.OrderStatusCompleted:
		return app.settledOutcome(ctx, order)
	case domain.OrderStatusCancelled:
		return &verificationOutcome{
			result: &domain.VerificationResult{
				Success: false,
				Reason:  "payment was cancelled",
			},
			order: order,
		}, nil
	}

	provider, err := app.providers.Get(order.PaymentMethod)
	if err != nil {
		return nil, err
	}

	result, err := provider.VerifyPayment(ctx, providerRef)
	if err != nil {
		return nil, err
	}

	if !result.Success {
		if !result.Retryable {
			_, _, cancelErr := app.orderRepo.Cancel(ctx, sessionID)
			if cancelErr != nil {
				app.logger.Error("failed to cancel order", "sessionId", sessionID, "error", cancelErr)
			}
		}
		return &verificationOutcome{result: result, order: order}, nil
	}

	completed, transitioned, err := app.orderRepo.Complete(ctx, sessionID, time.Now())
	if err != nil {
		return nil, err
	}

	outcome := &verificationOutcome{result: result, order: completed}

	if len(completed.Items) == 0 {
		return nil, fmt.Errorf("order %d has no items", completed.ID)
	}
	if result.ProductID == "" {
		result.ProductID = completed.Items[0].ProductID
	}

	product, err := app.productRepo.GetByID(ctx, result.ProductID)
	if err != nil {
		return nil, fmt.Errorf("load product %s for completed order %d: %w", result.ProductID, completed.ID, err)
	}

	if product.IsSubscription {
		subscription, err := app.grantSubscription(ctx, completed, product)
		if err != nil {
			return nil, err
		}

		outcome.subscription = subscription
		result.IsSubscription = true
		result.SubscriptionID = strconv.Itoa(subscription.ID)
	}

	if transitioned {
		app.sendOrderConfirmation(completed, product)
	}

	return outcome, nil
}

// settledOutcome rebuilds a success result for an order that was already
// completed by an earlier verification call.
func (app *Application) settledOutcome(ctx context.Context, order *domain.Order) (*verificationOutcome, error) {
	result := &domain.VerificationResult{Success: true}
	if len(order.Items) > 0 {
		result.ProductID = order.Items[0].ProductID
	}

	outcome := &verificationOutcome{result: result, order: order}

	subscription, err := app.subscriptionRepo.GetByOrderID(ctx, order.ID)
	switch {
	case err == nil:
		outcome.subscription = subscription
		result.IsSubscription = true
		result.SubscriptionID = strconv.Itoa(subscription.ID)
	case errors.Is(err, domain.ErrRecordNotFound):
		// One-off purchase, no grant to report.
	default:
		return nil, err
	}

	return outcome, nil
}

// grantSubscription creates the membership grant for a completed order.
// Creation is idempotent on the order id, so concurrent winners and repeat
// verifications all converge on the same grant.
func (app *Application) grantSubscription(ctx context.Context, order *domain.Order, product *domain.Product) (*domain.Subscription, error) {
	if product.MembershipID == nil {
		return nil, domain.ErrNoMembershipPlan
	}

	membership, err := app.membershipRepo.GetByID(ctx, *product.MembershipID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}

	durationDays := membership.DurationDays
	if durationDays < 1 {
		durationDays = 30
	}

	now := time.Now()
	paidAt := now
	if order.PaidAt != nil {
		paidAt = *order.PaidAt
	}

	subscription := &domain.Subscription{
		UserID:          order.UserID,
		MembershipID:    membership.ID,
		ProductID:       product.ID,
		OrderID:         order.ID,
		Status:          domain.SubscriptionStatusActive,
		StartDate:       now,
		EndDate:         now.AddDate(0, 0, durationDays),
		AutoRenew:       true,
		PaymentGateway:  order.PaymentMethod,
		PaymentStatus:   domain.SubscriptionPaymentStatusPaid,
		Price:           order.Total,
		Currency:        order.Currency,
		LastPaymentDate: &paidAt,
	}

	err = app.subscriptionRepo.Create(ctx, subscription)
	if err != nil {
		return nil, err
	}

	return subscription, nil
}

func (app *Application) sendOrderConfirmation(order *domain.Order, product *domain.Product) {
	if order.CustomerEmail == nil || *order.CustomerEmail == "" {
		return
	}

	recipient := *order.CustomerEmail
	customerName := "customer"
	if order.CustomerName != nil && *order.CustomerName != "" {
		customerName = *order.CustomerName
	}

	data := map[string]any{
		"CustomerName":   customerName,
		"OrderID":        order.ID,
		"Items":          order.Items,
		"Total":          order.Total.StringFixed(decimalPlacesFor(order.Currency)),
		"Currency":       order.Currency,
		"IsSubscription": product.IsSubscription,
	}

	app.background(func() {
		err := app.mailer.Send(recipient, "order_confirmation.tmpl", data)
		if err != nil {
			app.logger.Error("failed to send order confirmation", "orderId", order.ID, "error", err)
		}
	})
}

func decimalPlacesFor(currency string) int32 {
	if currency == "XMR" {
		return 12
	}
	return 2
}
