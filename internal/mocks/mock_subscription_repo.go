package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

type MockSubscriptionRepo struct {
	mock.Mock
	domain.SubscriptionRepository
}

func (m *MockSubscriptionRepo) Create(ctx context.Context, subscription *domain.Subscription) error {
	args := m.Called(ctx, subscription)
	return args.Error(0)
}

func (m *MockSubscriptionRepo) GetByID(ctx context.Context, id int) (*domain.Subscription, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepo) GetByOrderID(ctx context.Context, orderID int) (*domain.Subscription, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepo) FindDueForRenewal(ctx context.Context, cutoff time.Time) ([]domain.Subscription, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).([]domain.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepo) RenewBatch(ctx context.Context, ids []int, newEndDate, lastPaymentDate time.Time) (int, error) {
	args := m.Called(ctx, ids, newEndDate, lastPaymentDate)
	return args.Int(0), args.Error(1)
}

func (m *MockSubscriptionRepo) Renew(ctx context.Context, id int, newEndDate, lastPaymentDate time.Time) error {
	args := m.Called(ctx, id, newEndDate, lastPaymentDate)
	return args.Error(0)
}
