package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID             string
	Name           string
	Description    string
	Price          decimal.Decimal
	Currency       string
	IsSubscription bool
	// MembershipID points at the plan a subscription product grants.
	// Nil for one-off products.
	MembershipID *int
	Active       bool
	CreatedAt    time.Time
}

type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
}
