package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

type MockOrderRepo struct {
	mock.Mock
	domain.OrderRepository
}

func (m *MockOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepo) GetByID(ctx context.Context, id int) (*domain.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepo) AttachSessionID(ctx context.Context, orderID int, sessionID string) error {
	args := m.Called(ctx, orderID, sessionID)
	return args.Error(0)
}

func (m *MockOrderRepo) Complete(ctx context.Context, sessionID string, paidAt time.Time) (*domain.Order, bool, error) {
	args := m.Called(ctx, sessionID, paidAt)
	return args.Get(0).(*domain.Order), args.Bool(1), args.Error(2)
}

func (m *MockOrderRepo) Cancel(ctx context.Context, sessionID string) (*domain.Order, bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(*domain.Order), args.Bool(1), args.Error(2)
}
