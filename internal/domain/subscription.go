package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

type SubscriptionPaymentStatus string

const (
	SubscriptionPaymentStatusPaid    SubscriptionPaymentStatus = "paid"
	SubscriptionPaymentStatusPending SubscriptionPaymentStatus = "pending"
	SubscriptionPaymentStatusFailed  SubscriptionPaymentStatus = "failed"
)

// Subscription is a time-bounded membership grant bought through an order.
// It references exactly one order (the one that paid for it) and one
// membership plan, and is only ever extended in place by the renewal job.
type Subscription struct {
	ID              int
	UserID          string
	MembershipID    int
	ProductID       string
	OrderID         int
	Status          SubscriptionStatus
	StartDate       time.Time
	EndDate         time.Time
	AutoRenew       bool
	PaymentGateway  PaymentMethod
	PaymentStatus   SubscriptionPaymentStatus
	Price           decimal.Decimal
	Currency        string
	LastPaymentDate *time.Time
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

type SubscriptionRepository interface {
	// Create inserts the grant. A second create for the same order id is a
	// no-op that loads the existing row into subscription, so a duplicated
	// verification call can never produce a second grant.
	Create(ctx context.Context, subscription *Subscription) error
	GetByID(ctx context.Context, id int) (*Subscription, error)
	GetByOrderID(ctx context.Context, orderID int) (*Subscription, error)

	// FindDueForRenewal returns active auto-renewing subscriptions whose
	// end date falls on or before the cutoff.
	FindDueForRenewal(ctx context.Context, cutoff time.Time) ([]Subscription, error)

	// RenewBatch extends all given subscriptions to newEndDate in a single
	// atomic write and returns the number of rows updated.
	RenewBatch(ctx context.Context, ids []int, newEndDate, lastPaymentDate time.Time) (int, error)

	// Renew extends a single active auto-renewing subscription. It returns
	// ErrRecordNotFound when the subscription is missing or no longer
	// eligible.
	Renew(ctx context.Context, id int, newEndDate, lastPaymentDate time.Time) error
}

// Membership is a plan that subscription products grant access to.
type Membership struct {
	ID           int
	Name         string
	DurationDays int
	CreatedAt    time.Time
}

type MembershipRepository interface {
	GetByID(ctx context.Context, id int) (*Membership, error)
}
