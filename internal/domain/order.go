package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodStripe    PaymentMethod = "stripe"
	PaymentMethodSepaDebit PaymentMethod = "sepa_debit"
	PaymentMethodPayPal    PaymentMethod = "paypal"
	PaymentMethodMonero    PaymentMethod = "monero"
)

// AnonymousUserID attributes guest checkouts. Guest checkout is legal on
// every provider, so orders never require a resolved user.
const AnonymousUserID = "anonymous"

type OrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

type Order struct {
	ID            int
	SessionID     *string
	UserID        string
	Items         []OrderItem
	Total         decimal.Decimal
	Currency      string
	Status        OrderStatus
	PaymentMethod PaymentMethod
	CustomerEmail *string
	CustomerName  *string
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

type OrderRepository interface {
	// Create inserts the order. When order.SessionID is set and an order
	// already exists for that session id, the insert is a no-op and the
	// existing row is loaded into order instead; at most one order can
	// exist per checkout session.
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id int) (*Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*Order, error)
	AttachSessionID(ctx context.Context, orderID int, sessionID string) error

	// Complete transitions the order for sessionID from pending to completed.
	// The returned bool reports whether this call performed the transition;
	// concurrent callers observe false and the already-completed order.
	Complete(ctx context.Context, sessionID string, paidAt time.Time) (*Order, bool, error)

	// Cancel transitions the order for sessionID from pending to cancelled.
	// Completed orders are never resurrected.
	Cancel(ctx context.Context, sessionID string) (*Order, bool, error)
}
