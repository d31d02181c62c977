package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

type PayPalVerificationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (app *Application) CreatePayPalCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	_, session, ok := app.createCheckout(w, r, domain.PaymentMethodPayPal)
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

// VerifyPayPalCheckoutHandler settles a PayPal order. PayPal appends a token
// parameter to the return URL; when present it takes precedence over
// sessionId as the order reference sent to PayPal, though both normally
// carry the same value.
func (app *Application) VerifyPayPalCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	token := r.URL.Query().Get("token")

	if sessionID == "" {
		sessionID = token
	}
	if sessionID == "" {
		app.badRequestResponse(w, r, fmt.Errorf("sessionId query parameter is required"))
		return
	}

	providerRef := sessionID
	if token != "" {
		providerRef = token
	}

	outcome, err := app.verifyCheckout(r, sessionID, providerRef)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponseWithErr(w, r, fmt.Errorf("no checkout found for this session"))
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	resp := PayPalVerificationResponse{Success: outcome.result.Success}
	switch {
	case outcome.result.Success:
		resp.Message = "payment completed successfully"
	case outcome.result.Retryable:
		resp.Message = outcome.result.Reason
		resp.Details = "the payment has not been captured yet and can be re-checked"
	default:
		resp.Message = outcome.result.Reason
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
