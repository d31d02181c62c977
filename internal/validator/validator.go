package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("payment_method", validatePaymentMethod)

	return validator
}

func validatePaymentMethod(fl validator.FieldLevel) bool {
	switch domain.PaymentMethod(fl.Field().String()) {
	case domain.PaymentMethodStripe,
		domain.PaymentMethodSepaDebit,
		domain.PaymentMethodPayPal,
		domain.PaymentMethodMonero:
		return true
	}

	return false
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", err.Param())
	case "payment_method":
		return "must be one of: stripe, sepa_debit, paypal, monero"
	default:
		return "is invalid"
	}
}
