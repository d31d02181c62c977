package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

const orderColumns = `
	id,
	session_id,
	user_id,
	items,
	total,
	currency,
	status,
	payment_method,
	customer_email,
	customer_name,
	paid_at,
	created_at,
	updated_at
`

type PostgresOrderRepository struct {
	db *pgxpool.Pool
}

func NewPostgresOrderRepository(db *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		db: db,
	}
}

func (p *PostgresOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}

	if order.SessionID == nil {
		query := `
			INSERT INTO orders (
				user_id,
				items,
				total,
				currency,
				status,
				payment_method,
				customer_email,
				customer_name
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at
		`

		return p.db.QueryRow(
			ctx,
			query,
			order.UserID,
			items,
			order.Total,
			order.Currency,
			order.Status,
			order.PaymentMethod,
			order.CustomerEmail,
			order.CustomerName,
		).Scan(&order.ID, &order.CreatedAt)
	}

	// The partial unique index on session_id makes the insert the loser of
	// any duplicate-create race; the existing order wins unchanged.
	query := `
		INSERT INTO orders (
			session_id,
			user_id,
			items,
			total,
			currency,
			status,
			payment_method,
			customer_email,
			customer_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) WHERE session_id IS NOT NULL DO NOTHING
		RETURNING id, created_at
	`

	err = p.db.QueryRow(
		ctx,
		query,
		order.SessionID,
		order.UserID,
		items,
		order.Total,
		order.Currency,
		order.Status,
		order.PaymentMethod,
		order.CustomerEmail,
		order.CustomerName,
	).Scan(&order.ID, &order.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := p.GetBySessionID(ctx, *order.SessionID)
		if err != nil {
			return err
		}

		*order = *existing
		return nil
	}

	return err
}

func (p *PostgresOrderRepository) GetByID(ctx context.Context, id int) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	return p.scanOrder(p.db.QueryRow(ctx, query, id))
}

func (p *PostgresOrderRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE session_id = $1`

	return p.scanOrder(p.db.QueryRow(ctx, query, sessionID))
}

func (p *PostgresOrderRepository) AttachSessionID(ctx context.Context, orderID int, sessionID string) error {
	query := `
		UPDATE orders
		SET session_id = $2, updated_at = now()
		WHERE id = $1
	`

	tag, err := p.db.Exec(ctx, query, orderID, sessionID)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

// Complete is a compare-and-swap on the order status: only one of any number
// of concurrent verification calls performs the pending -> completed
// transition, and that caller is reported the winner.
func (p *PostgresOrderRepository) Complete(
	ctx context.Context,
	sessionID string,
	paidAt time.Time) (*domain.Order, bool, error) {

	query := `
		UPDATE orders
		SET status = $3, paid_at = $2, updated_at = now()
		WHERE session_id = $1 AND status = $4
		RETURNING ` + orderColumns

	order, err := p.scanOrder(p.db.QueryRow(ctx, query, sessionID, paidAt,
		domain.OrderStatusCompleted, domain.OrderStatusPending))

	if errors.Is(err, domain.ErrRecordNotFound) {
		existing, err := p.GetBySessionID(ctx, sessionID)
		if err != nil {
			return nil, false, err
		}

		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return order, true, nil
}

func (p *PostgresOrderRepository) Cancel(ctx context.Context, sessionID string) (*domain.Order, bool, error) {
	query := `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE session_id = $1 AND status = $3
		RETURNING ` + orderColumns

	order, err := p.scanOrder(p.db.QueryRow(ctx, query, sessionID,
		domain.OrderStatusCancelled, domain.OrderStatusPending))

	if errors.Is(err, domain.ErrRecordNotFound) {
		existing, err := p.GetBySessionID(ctx, sessionID)
		if err != nil {
			return nil, false, err
		}

		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return order, true, nil
}

func (p *PostgresOrderRepository) scanOrder(row pgx.Row) (*domain.Order, error) {
	var order domain.Order
	var items []byte

	err := row.Scan(
		&order.ID,
		&order.SessionID,
		&order.UserID,
		&items,
		&order.Total,
		&order.Currency,
		&order.Status,
		&order.PaymentMethod,
		&order.CustomerEmail,
		&order.CustomerName,
		&order.PaidAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, err
	}

	return &order, nil
}
