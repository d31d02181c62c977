package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

type PostgresMembershipRepository struct {
	db *pgxpool.Pool
}

func NewPostgresMembershipRepository(db *pgxpool.Pool) *PostgresMembershipRepository {
	return &PostgresMembershipRepository{
		db: db,
	}
}

func (p *PostgresMembershipRepository) GetByID(ctx context.Context, id int) (*domain.Membership, error) {
	query := `
		SELECT id, name, duration_days, created_at
		FROM memberships
		WHERE id = $1
	`

	var membership domain.Membership

	err := p.db.QueryRow(ctx, query, id).Scan(
		&membership.ID,
		&membership.Name,
		&membership.DurationDays,
		&membership.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &membership, nil
}
