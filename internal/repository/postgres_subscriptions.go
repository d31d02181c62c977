package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

const subscriptionColumns = `
	id,
	user_id,
	membership_id,
	product_id,
	order_id,
	status,
	start_date,
	end_date,
	auto_renew,
	payment_gateway,
	payment_status,
	price,
	currency,
	last_payment_date,
	created_at,
	updated_at
`

type PostgresSubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewPostgresSubscriptionRepository(db *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{
		db: db,
	}
}

func (p *PostgresSubscriptionRepository) Create(ctx context.Context, subscription *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			user_id,
			membership_id,
			product_id,
			order_id,
			status,
			start_date,
			end_date,
			auto_renew,
			payment_gateway,
			payment_status,
			price,
			currency,
			last_payment_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id, created_at
	`

	err := p.db.QueryRow(
		ctx,
		query,
		subscription.UserID,
		subscription.MembershipID,
		subscription.ProductID,
		subscription.OrderID,
		subscription.Status,
		subscription.StartDate,
		subscription.EndDate,
		subscription.AutoRenew,
		subscription.PaymentGateway,
		subscription.PaymentStatus,
		subscription.Price,
		subscription.Currency,
		subscription.LastPaymentDate,
	).Scan(&subscription.ID, &subscription.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := p.GetByOrderID(ctx, subscription.OrderID)
		if err != nil {
			return err
		}

		*subscription = *existing
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		if pgErr.ConstraintName == "subscriptions_membership_id_fkey" {
			return domain.ErrMembershipNotFound
		}
	}

	return err
}

func (p *PostgresSubscriptionRepository) GetByID(ctx context.Context, id int) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	return p.scanSubscription(p.db.QueryRow(ctx, query, id))
}

func (p *PostgresSubscriptionRepository) GetByOrderID(ctx context.Context, orderID int) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE order_id = $1`

	return p.scanSubscription(p.db.QueryRow(ctx, query, orderID))
}

func (p *PostgresSubscriptionRepository) FindDueForRenewal(
	ctx context.Context,
	cutoff time.Time) ([]domain.Subscription, error) {

	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = $1 AND auto_renew AND end_date <= $2
		ORDER BY end_date
	`

	rows, err := p.db.Query(ctx, query, domain.SubscriptionStatusActive, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subscriptions := make([]domain.Subscription, 0)

	for rows.Next() {
		subscription, err := p.scanSubscription(rows)
		if err != nil {
			return nil, err
		}

		subscriptions = append(subscriptions, *subscription)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return subscriptions, nil
}

// RenewBatch extends all given subscriptions in one statement, so the batch
// applies entirely or not at all. Eligibility is re-checked in the WHERE
// clause because a subscription can change state between scan and write.
func (p *PostgresSubscriptionRepository) RenewBatch(
	ctx context.Context,
	ids []int,
	newEndDate, lastPaymentDate time.Time) (int, error) {

	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE subscriptions
		SET end_date = $2,
			last_payment_date = $3,
			payment_status = $4,
			updated_at = now()
		WHERE id = ANY($1) AND status = $5 AND auto_renew
	`

	tag, err := p.db.Exec(ctx, query, ids, newEndDate, lastPaymentDate,
		domain.SubscriptionPaymentStatusPaid, domain.SubscriptionStatusActive)
	if err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), nil
}

func (p *PostgresSubscriptionRepository) Renew(
	ctx context.Context,
	id int,
	newEndDate, lastPaymentDate time.Time) error {

	query := `
		UPDATE subscriptions
		SET end_date = $2,
			last_payment_date = $3,
			payment_status = $4,
			updated_at = now()
		WHERE id = $1 AND status = $5 AND auto_renew
	`

	tag, err := p.db.Exec(ctx, query, id, newEndDate, lastPaymentDate,
		domain.SubscriptionPaymentStatusPaid, domain.SubscriptionStatusActive)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

func (p *PostgresSubscriptionRepository) scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var subscription domain.Subscription

	err := row.Scan(
		&subscription.ID,
		&subscription.UserID,
		&subscription.MembershipID,
		&subscription.ProductID,
		&subscription.OrderID,
		&subscription.Status,
		&subscription.StartDate,
		&subscription.EndDate,
		&subscription.AutoRenew,
		&subscription.PaymentGateway,
		&subscription.PaymentStatus,
		&subscription.Price,
		&subscription.Currency,
		&subscription.LastPaymentDate,
		&subscription.CreatedAt,
		&subscription.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &subscription, nil
}
