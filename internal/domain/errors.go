package domain

import "errors"

var (
	ErrRecordNotFound         = errors.New("record not found")
	ErrEditConflict           = errors.New("edit conflict")
	ErrNoMembershipPlan       = errors.New("product has no membership plan configured")
	ErrMembershipNotFound     = errors.New("referenced membership plan does not exist")
	ErrUnknownPaymentMethod   = errors.New("unknown payment method")
	ErrCheckoutSessionExpired = errors.New("checkout session not found or has expired")
)
