package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

// CreateStripeCheckoutHandler opens a Stripe Checkout session for a product.
// A paymentMethod of "sepa_debit" in the body restricts the hosted page to
// SEPA direct debit; otherwise Stripe's default card flow is used.
func (app *Application) CreateStripeCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	_, session, ok := app.createCheckout(w, r, domain.PaymentMethodStripe)
	if !ok {
		return
	}

	resp := CheckoutSessionResponse{
		SessionID:   session.ID,
		CheckoutURL: session.RedirectURL,
	}

	err := app.writeJSON(w, http.StatusCreated, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// VerifyStripeCheckoutHandler settles a Stripe checkout session. Clients call
// it from the success page with the sessionId and userId the redirect URL
// carried; productId is optional and only cross-checked when present.
func (app *Application) VerifyStripeCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	userID := r.URL.Query().Get("userId")
	productID := r.URL.Query().Get("productId")

	if sessionID == "" || userID == "" {
		app.badRequestResponse(w, r, fmt.Errorf("sessionId and userId query parameters are required"))
		return
	}

	outcome, err := app.verifyCheckout(r, sessionID, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponseWithErr(w, r, fmt.Errorf("no checkout found for this session"))
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	if outcome.result.Success && productID != "" && productID != outcome.result.ProductID {
		app.badRequestResponse(w, r, fmt.Errorf("productId does not match the checkout session"))
		return
	}

	resp := VerificationResponse{
		Success:        outcome.result.Success,
		ProductID:      outcome.result.ProductID,
		IsSubscription: outcome.result.IsSubscription,
		SubscriptionID: outcome.result.SubscriptionID,
		Error:          outcome.result.Reason,
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
