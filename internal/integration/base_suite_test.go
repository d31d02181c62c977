package integration_test

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"

	"github.com/volkanakin/storefront-checkout/internal/domain"
	"github.com/volkanakin/storefront-checkout/internal/repository"
)

const (
	TestUserID    = "user-1"
	TestUserEmail = "jane@example.com"
	TestUserName  = "Jane Doe"

	TestMembershipID = 1

	TestProductID             = "prod-ebook"
	TestSubscriptionProductID = "prod-premium"
)

type BaseSuite struct {
	suite.Suite
	dbContainer *PostgresContainer
	db          *pgxpool.Pool

	orders        *repository.PostgresOrderRepository
	subscriptions *repository.PostgresSubscriptionRepository
	products      *repository.PostgresProductRepository
	users         *repository.PostgresUserRepository
	memberships   *repository.PostgresMembershipRepository
}

func (s *BaseSuite) SetupSuite() {
	ctx := context.Background()

	postgresContainer, err := getDbContainer(ctx)
	if err != nil {
		log.Printf("failed to start container: %s", err)
		return
	}

	s.dbContainer = postgresContainer

	db, err := pgxpool.New(ctx, postgresContainer.ConnectionString)
	if err != nil {
		log.Printf("failed to create pool: %s", err)
		return
	}

	s.db = db
	s.orders = repository.NewPostgresOrderRepository(db)
	s.subscriptions = repository.NewPostgresSubscriptionRepository(db)
	s.products = repository.NewPostgresProductRepository(db)
	s.users = repository.NewPostgresUserRepository(db)
	s.memberships = repository.NewPostgresMembershipRepository(db)
}

func (s *BaseSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.dbContainer != nil {
		if err := testcontainers.TerminateContainer(s.dbContainer.Container.Container); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}
}

// SetupTest resets all tables and reseeds the reference rows every
// repository test depends on.
func (s *BaseSuite) SetupTest() {
	ctx := context.Background()

	_, err := s.db.Exec(ctx, `
		TRUNCATE subscriptions, orders, products, memberships, users
		RESTART IDENTITY CASCADE
	`)
	s.Require().NoError(err)

	_, err = s.db.Exec(ctx, `
		INSERT INTO users (id, email, name) VALUES ($1, $2, $3)
	`, TestUserID, TestUserEmail, TestUserName)
	s.Require().NoError(err)

	_, err = s.db.Exec(ctx, `
		INSERT INTO memberships (name, duration_days) VALUES ('Premium', 30)
	`)
	s.Require().NoError(err)

	_, err = s.db.Exec(ctx, `
		INSERT INTO products (id, name, price, currency, is_subscription, membership_id)
		VALUES
			($1, 'Go In Practice', 29.90, 'EUR', false, NULL),
			($2, 'Premium Membership', 9.99, 'EUR', true, $3)
	`, TestProductID, TestSubscriptionProductID, TestMembershipID)
	s.Require().NoError(err)
}

func (s *BaseSuite) newOrder(sessionID *string, productID string, method domain.PaymentMethod) *domain.Order {
	price := decimal.NewFromFloat(9.99)
	if productID == TestProductID {
		price = decimal.NewFromFloat(29.90)
	}

	return &domain.Order{
		SessionID: sessionID,
		UserID:    TestUserID,
		Items: []domain.OrderItem{
			{
				ProductID:   productID,
				ProductName: productID,
				Quantity:    1,
				Price:       price,
				Total:       price,
			},
		},
		Total:         price,
		Currency:      "EUR",
		Status:        domain.OrderStatusPending,
		PaymentMethod: method,
		CustomerEmail: ptr(TestUserEmail),
		CustomerName:  ptr(TestUserName),
	}
}

func ptr[T any](v T) *T {
	return &v
}
