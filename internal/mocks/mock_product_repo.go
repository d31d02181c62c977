package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

type MockProductRepo struct {
	mock.Mock
	domain.ProductRepository
}

func (m *MockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*domain.Product), args.Error(1)
}

type MockUserRepo struct {
	mock.Mock
	domain.UserRepository
}

func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockMembershipRepo struct {
	mock.Mock
	domain.MembershipRepository
}

func (m *MockMembershipRepo) GetByID(ctx context.Context, id int) (*domain.Membership, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*domain.Membership), args.Error(1)
}
