package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

type MockPaymentProvider struct {
	mock.Mock
	domain.PaymentProvider
}

func (m *MockPaymentProvider) CreateCheckoutSession(
	ctx context.Context,
	input domain.CheckoutInput) (*domain.CheckoutSession, error) {

	args := m.Called(ctx, input)
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *MockPaymentProvider) VerifyPayment(
	ctx context.Context,
	sessionID string) (*domain.VerificationResult, error) {

	args := m.Called(ctx, sessionID)
	return args.Get(0).(*domain.VerificationResult), args.Error(1)
}
