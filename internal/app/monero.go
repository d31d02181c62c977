package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

type MoneroCheckoutResponse struct {
	PaymentID   string `json:"paymentId"`
	Address     string `json:"address"`
	Amount      string `json:"amount"`
	ProductName string `json:"productName"`
	EurAmount   string `json:"eurAmount"`
}

// CreateMoneroCheckoutHandler opens a Monero checkout. There is no hosted
// provider page; the response carries the receiving address and the exact
// XMR amount the client must transfer, quoted at a fixed EUR rate.
func (app *Application) CreateMoneroCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	order, session, ok := app.createCheckout(w, r, domain.PaymentMethodMonero)
	if !ok {
		return
	}

	resp := MoneroCheckoutResponse{
		PaymentID:   session.ID,
		Address:     session.Address,
		Amount:      session.XMRAmount.StringFixed(12),
		ProductName: order.Items[0].ProductName,
		EurAmount:   order.Total.StringFixed(2),
	}

	err := app.writeJSON(w, http.StatusCreated, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// VerifyMoneroCheckoutHandler checks the wallet for an incoming transfer
// tagged with the checkout's payment id. Unconfirmed or partial transfers
// report a retryable failure rather than an error.
func (app *Application) VerifyMoneroCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		sessionID = r.URL.Query().Get("paymentId")
	}
	if sessionID == "" {
		app.badRequestResponse(w, r, fmt.Errorf("sessionId query parameter is required"))
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
