package app

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/volkanakin/storefront-checkout/internal/domain"
	"github.com/volkanakin/storefront-checkout/internal/mailer"
	"github.com/volkanakin/storefront-checkout/internal/mocks"
)

type StripeCheckoutTestSuite struct {
	suite.Suite
	app              *Application
	orderRepo        *mocks.MockOrderRepo
	subscriptionRepo *mocks.MockSubscriptionRepo
	productRepo      *mocks.MockProductRepo
	userRepo         *mocks.MockUserRepo
	membershipRepo   *mocks.MockMembershipRepo
	provider         *mocks.MockPaymentProvider
	sepaProvider     *mocks.MockPaymentProvider
	mailer           *mailer.MockMailer
}

func (s *StripeCheckoutTestSuite) SetupTest() {
	s.orderRepo = new(mocks.MockOrderRepo)
	s.subscriptionRepo = new(mocks.MockSubscriptionRepo)
	s.productRepo = new(mocks.MockProductRepo)
	s.userRepo = new(mocks.MockUserRepo)
	s.membershipRepo = new(mocks.MockMembershipRepo)
	s.provider = new(mocks.MockPaymentProvider)
	s.sepaProvider = new(mocks.MockPaymentProvider)
	s.mailer = &mailer.MockMailer{}

	s.app = newTestApplication(func(a *Application) {
		a.orderRepo = s.orderRepo
		a.subscriptionRepo = s.subscriptionRepo
		a.productRepo = s.productRepo
		a.userRepo = s.userRepo
		a.membershipRepo = s.membershipRepo
		a.mailer = s.mailer
	})

	s.app.providers.Register(domain.PaymentMethodStripe, s.provider)
	s.app.providers.Register(domain.PaymentMethodSepaDebit, s.sepaProvider)
}

func TestStripeCheckoutSuite(t *testing.T) {
	suite.Run(t, new(StripeCheckoutTestSuite))
}

func oneOffProduct() *domain.Product {
	return &domain.Product{
		ID:       "prod-ebook",
		Name:     "Go In Practice",
		Price:    decimal.NewFromFloat(29.90),
		Currency: "EUR",
		Active:   true,
	}
}

func subscriptionProduct() *domain.Product {
	return &domain.Product{
		ID:             "prod-premium",
		Name:           "Premium Membership",
		Price:          decimal.NewFromFloat(9.99),
		Currency:       "EUR",
		IsSubscription: true,
		MembershipID:   ptr(1),
		Active:         true,
	}
}

func pendingOrder(sessionID string, product *domain.Product) *domain.Order {
	return &domain.Order{
		ID:        42,
		SessionID: &sessionID,
		UserID:    "user-1",
		Items: []domain.OrderItem{
			{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    1,
				Price:       product.Price,
				Total:       product.Price,
			},
		},
		Total:         product.Price,
		Currency:      product.Currency,
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodStripe,
		CustomerEmail: ptr("jane@example.com"),
		CustomerName:  ptr("Jane Doe"),
		CreatedAt:     time.Now(),
	}
}

func (s *StripeCheckoutTestSuite) TestCreateCheckout_Success() {
	product := oneOffProduct()

	s.productRepo.On("GetByID", mock.Anything, "prod-ebook").Return(product, nil)
	s.userRepo.On("GetByID", mock.Anything, "user-1").Return(&domain.User{
		ID:    "user-1",
		Email: "jane@example.com",
		Name:  "Jane Doe",
	}, nil)
	s.orderRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Order")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Order).ID = 42
		}).
		Return(nil)
	s.provider.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(input domain.CheckoutInput) bool {
		return input.OrderID == 42 && input.PaymentMethod == domain.PaymentMethodStripe
	})).Return(&domain.CheckoutSession{
		ID:          "cs_test_123",
		RedirectURL: "https://checkout.stripe.com/c/pay/cs_test_123",
	}, nil)
	s.orderRepo.On("AttachSessionID", mock.Anything, 42, "cs_test_123").Return(nil)

	w, r := executeRequest(s.T(), http.MethodPost, "/api/checkout/stripe", CreateCheckoutRequest{
		ProductID: "prod-ebook",
		UserID:    "user-1",
	})

	s.app.CreateStripeCheckoutHandler(w, r)

	s.Equal(http.StatusCreated, w.Code)

	resp := decodeResponse[CheckoutSessionResponse](s.T(), w)
	s.Equal("cs_test_123", resp.SessionID)
	s.Equal("https://checkout.stripe.com/c/pay/cs_test_123", resp.CheckoutURL)

	s.orderRepo.AssertExpectations(s.T())
	s.provider.AssertExpectations(s.T())
}

func (s *StripeCheckoutTestSuite) TestCreateCheckout_GuestOrderIsAnonymous() {
	product := oneOffProduct()

	s.productRepo.On("GetByID", mock.Anything, "prod-ebook").Return(product, nil)
	s.orderRepo.On("Create", mock.Anything, mock.MatchedBy(func(order *domain.Order) bool {
		return order.UserID == domain.AnonymousUserID && order.CustomerEmail == nil
	})).Return(nil)
	s.provider.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(&domain.CheckoutSession{ID: "cs_test_guest", RedirectURL: "https://stripe.test"}, nil)
	s.orderRepo.On("AttachSessionID", mock.Anything, mock.Anything, "cs_test_guest").Return(nil)

	w, r := executeRequest(s.T(), http.MethodPost, "/api/checkout/stripe", CreateCheckoutRequest{
		ProductID: "prod-ebook",
	})

	s.app.CreateStripeCheckoutHandler(w, r)

	s.Equal(http.StatusCreated, w.Code)
	s.userRepo.AssertNotCalled(s.T(), "GetByID", mock.Anything, mock.Anything)
}

func (s *StripeCheckoutTestSuite) TestCreateCheckout_SepaDebitUsesSepaConfiguration() {
	product := oneOffProduct()

	s.productRepo.On("GetByID", mock.Anything, "prod-ebook").Return(product, nil)
	s.orderRepo.On("Create", mock.Anything, mock.MatchedBy(func(order *domain.Order) bool {
		return order.PaymentMethod == domain.PaymentMethodSepaDebit
	})).Return(nil)
	s.sepaProvider.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(input domain.CheckoutInput) bool {
		return input.PaymentMethod == domain.PaymentMethodSepaDebit
	})).Return(&domain.CheckoutSession{ID: "cs_test_sepa", RedirectURL: "https://stripe.test"}, nil)
	s.orderRepo.On("AttachSessionID", mock.Anything, mock.Anything, "cs_test_sepa").Return(nil)

	w, r := executeRequest(s.T(), http.MethodPost, "/api/checkout/stripe", CreateCheckoutRequest{
		ProductID:     "prod-ebook",
		PaymentMethod: "sepa_debit",
	})

	s.app.CreateStripeCheckoutHandler(w, r)

	s.Equal(http.StatusCreated, w.Code)
	s.sepaProvider.AssertExpectations(s.T())
	s.provider.AssertNotCalled(s.T(), "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func (s *StripeCheckoutTestSuite) TestCreateCheckout_ValidationFailures() {
	tests := []struct {
		name string
		body CreateCheckoutRequest
	}{
		{
			name: "missing product id",
			body: CreateCheckoutRequest{UserID: "user-1"},
		},
		{
			name: "unknown payment method",
			body: CreateCheckoutRequest{ProductID: "prod-ebook", PaymentMethod: "wire_pigeon"},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w, r := executeRequest(s.T(), http.MethodPost, "/api/checkout/stripe", tt.body)

			s.app.CreateStripeCheckoutHandler(w, r)

			s.Equal(http.StatusUnprocessableEntity, w.Code)
		})
	}
}

func (s *StripeCheckoutTestSuite) TestCreateCheckout_ProductNotFound() {
	s.productRepo.On("GetByID", mock.Anything, "prod-ghost").
		Return((*domain.Product)(nil), domain.ErrRecordNotFound)

	w, r := executeRequest(s.T(), http.MethodPost, "/api/checkout/stripe", CreateCheckoutRequest{
		ProductID: "prod-ghost",
	})

	s.app.CreateStripeCheckoutHandler(w, r)

	s.Equal(http.StatusNotFound, w.Code)

	resp := decodeResponse[ErrorResponse](s.T(), w)
	s.Contains(resp.Message, "prod-ghost")
}

func (s *StripeCheckoutTestSuite) TestCreateCheckout_UserNotFound() {
	s.productRepo.On("GetByID", mock.Anything, "prod-ebook").Return(oneOffProduct(), nil)
	s.userRepo.On("GetByID", mock.Anything, "user-ghost").
		Return((*domain.User)(nil), domain.ErrRecordNotFound)

	w, r := executeRequest(s.T(), http.MethodPost, "/api/checkout/stripe", CreateCheckoutRequest{
		ProductID: "prod-ebook",
		UserID:    "user-ghost",
	})

	s.app.CreateStripeCheckoutHandler(w, r)

	s.Equal(http.StatusNotFound, w.Code)
	s.orderRepo.AssertNotCalled(s.T(), "Create", mock.Anything, mock.Anything)
}

func (s *StripeCheckoutTestSuite) TestCreateCheckout_ProviderFailure() {
	s.productRepo.On("GetByID", mock.Anything, "prod-ebook").Return(oneOffProduct(), nil)
	s.orderRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	s.provider.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return((*domain.CheckoutSession)(nil), errors.New("stripe is down"))

	w, r := executeRequest(s.T(), http.MethodPost, "/api/checkout/stripe", CreateCheckoutRequest{
		ProductID: "prod-ebook",
	})

	s.app.CreateStripeCheckoutHandler(w, r)

	s.Equal(http.StatusInternalServerError, w.Code)
	s.orderRepo.AssertNotCalled(s.T(), "AttachSessionID", mock.Anything, mock.Anything, mock.Anything)
}

func (s *StripeCheckoutTestSuite) TestVerifyCheckout_MissingParams() {
	w, r := executeRequest(s.T(), http.MethodGet, "/api/checkout/stripe?sessionId=cs_test_123", nil)

	s.app.VerifyStripeCheckoutHandler(w, r)

	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *StripeCheckoutTestSuite) TestVerifyCheckout_UnknownSession() {
	s.orderRepo.On("GetBySessionID", mock.Anything, "cs_test_missing").
		Return((*domain.Order)(nil), domain.ErrRecordNotFound)

	w, r := executeRequest(s.T(), http.MethodGet,
		"/api/checkout/stripe?sessionId=cs_test_missing&userId=user-1", nil)

	s.app.VerifyStripeCheckoutHandler(w, r)

	s.Equal(http.StatusNotFound, w.Code)
}

func (s *StripeCheckoutTestSuite) TestVerifyCheckout_OneOffSuccess() {
	product := oneOffProduct()
	order := pendingOrder("cs_test_123", product)

	completed := *order
	completed.Status = domain.OrderStatusCompleted

	s.orderRepo.On("GetBySessionID", mock.Anything, "cs_test_123").Return(order, nil)
	s.provider.On("VerifyPayment", mock.Anything, "cs_test_123").
		Return(&domain.VerificationResult{Success: true}, nil)
	s.orderRepo.On("Complete", mock.Anything, "cs_test_123", mock.Anything).
		Return(&completed, true, nil)
	s.productRepo.On("GetByID", mock.Anything, "prod-ebook").Return(product, nil)

	w, r := executeRequest(s.T(), http.MethodGet,
		"/api/checkout/stripe?sessionId=cs_test_123&userId=user-1&productId=prod-ebook", nil)

	s.app.VerifyStripeCheckoutHandler(w, r)

	s.Equal(http.StatusOK, w.Code)

	resp := decodeResponse[VerificationResponse](s.T(), w)
	s.True(resp.Success)
	s.Equal("prod-ebook", resp.ProductID)
	s.False(resp.IsSubscription)
	s.subscriptionRepo.AssertNotCalled(s.T(), "Create", mock.Anything, mock.Anything)

	s.app.wg.Wait()
	s.Len(s.mailer.Sent, 1)
	s.Equal("jane@example.com", s.mailer.Sent[0].Recipient)
	s.Equal("order_confirmation.tmpl", s.mailer.Sent[0].TemplateFile)
}

func (s *StripeCheckoutTestSuite) TestVerifyCheckout_SubscriptionGranted() {
	product := subscriptionProduct()
	order := pendingOrder("cs_test_sub", product)

	completed := *order
	completed.Status = domain.OrderStatusCompleted
	completed.PaidAt = ptr(time.Now())

	s.orderRepo.On("GetBySessionID", mock.Anything, "cs_test_sub").Return(order, nil)
	s.provider.On("VerifyPayment", mock.Anything, "cs_test_sub").
		Return(&domain.VerificationResult{Success: true}, nil)
	s.orderRepo.On("Complete", mock.Anything, "cs_test_sub", mock.Anything).
		Return(&completed, true, nil)
	s.productRepo.On("GetByID", mock.Anything, "prod-premium").Return(product, nil)
	s.membershipRepo.On("GetByID", mock.Anything, 1).Return(&domain.Membership{
		ID:           1,
		Name:         "Premium",
		DurationDays: 30,
	}, nil)
	s.subscriptionRepo.On("Create", mock.Anything, mock.MatchedBy(func(sub *domain.Subscription) bool {
		return sub.OrderID == 42 &&
			sub.MembershipID == 1 &&
			sub.Status == domain.SubscriptionStatusActive &&
			sub.AutoRenew &&
			sub.PaymentStatus == domain.SubscriptionPaymentStatusPaid
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Subscription).ID = 7
	}).Return(nil)

	w, r := executeRequest(s.T(), http.MethodGet,
		"/api/checkout/stripe?sessionId=cs_test_sub&userId=user-1", nil)

	s.app.VerifyStripeCheckoutHandler(w, r)

	s.Equal(http.StatusOK, w.Code)

	resp := decodeResponse[VerificationResponse](s.T(), w)
	s.True(resp.Success)
	s.True(resp.IsSubscription)
	s.Equal("7", resp.SubscriptionID)

	s.subscriptionRepo.AssertExpectations(s.T())
}

func (s *StripeCheckoutTestSuite) TestVerifyCheckout_CompletedOrderShortCircuits() {
	product := subscriptionProduct()
	order := pendingOrder("cs_test_done", product)
	order.Status = domain.OrderStatusCompleted

	s.orderRepo.On("GetBySessionID", mock.Anything, "cs_test_done").Return(order, nil)
	s.subscriptionRepo.On("GetByOrderID", mock.Anything, 42).Return(&domain.Subscription{
		ID:      7,
		OrderID: 42,
		Status:  domain.SubscriptionStatusActive,
	}, nil)

	w, r := executeRequest(s.T(), http.MethodGet,
		"/api/checkout/stripe?sessionId=cs_test_done&userId=user-1", nil)

	s.app.VerifyStripeCheckoutHandler(w, r)

	s.Equal(http.StatusOK, w.Code)

	resp := decodeResponse[VerificationResponse](s.T(), w)
	s.True(resp.Success)
	s.Equal("7", resp.SubscriptionID)

	s.provider.AssertNotCalled(s.T(), "VerifyPayment", mock.Anything, mock.Anything)
	s.orderRepo.AssertNotCalled(s.T(), "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func (s *StripeCheckoutTestSuite) TestVerifyCheckout_TerminalFailureCancelsOrder() {
	product := oneOffProduct()
	order := pendingOrder("cs_test_exp", product)

	cancelled := *order
	cancelled.Status = domain.OrderStatusCancelled

	s.orderRepo.On("GetBySessionID", mock.Anything, "cs_test_exp").Return(order, nil)
	s.provider.On("VerifyPayment", mock.Anything, "cs_test_exp").
		Return(&domain.VerificationResult{
			Success: false,
			Reason:  "checkout session has expired",
		}, nil)
	s.orderRepo.On("Cancel", mock.Anything, "cs_test_exp").Return(&cancelled, true, nil)

	w, r := executeRequest(s.T(), http.MethodGet,
		"/api/checkout/stripe?sessionId=cs_test_exp&userId=user-1", nil)

	s.app.VerifyStripeCheckoutHandler(w, r)

	s.Equal(http.StatusOK, w.Code)

	resp := decodeResponse[VerificationResponse](s.T(), w)
	s.False(resp.Success)
	s.Equal("checkout session has expired", resp.Error)

	s.orderRepo.AssertExpectations(s.T())
}

func (s *StripeCheckoutTestSuite) TestVerifyCheckout_PendingPaymentDoesNotCancel() {
	product := oneOffProduct()
	order := pendingOrder("cs_test_wait", product)

	s.orderRepo.On("GetBySessionID", mock.Anything, "cs_test_wait").Return(order, nil)
	s.provider.On("VerifyPayment", mock.Anything, "cs_test_wait").
		Return(&domain.VerificationResult{
			Success:   false,
			Reason:    "payment has not been completed yet",
			Retryable: true,
		}, nil)

	w, r := executeRequest(s.T(), http.MethodGet,
		"/api/checkout/stripe?sessionId=cs_test_wait&userId=user-1", nil)

	s.app.VerifyStripeCheckoutHandler(w, r)

	s.Equal(http.StatusOK, w.Code)

	resp := decodeResponse[VerificationResponse](s.T(), w)
	s.False(resp.Success)

	s.orderRepo.AssertNotCalled(s.T(), "Cancel", mock.Anything, mock.Anything)
}

func (s *StripeCheckoutTestSuite) TestVerifyCheckout_ProductMismatch() {
	product := oneOffProduct()
	order := pendingOrder("cs_test_123", product)

	completed := *order
	completed.Status = domain.OrderStatusCompleted

	s.orderRepo.On("GetBySessionID", mock.Anything, "cs_test_123").Return(order, nil)
	s.provider.On("VerifyPayment", mock.Anything, "cs_test_123").
		Return(&domain.VerificationResult{Success: true}, nil)
	s.orderRepo.On("Complete", mock.Anything, "cs_test_123", mock.Anything).
		Return(&completed, true, nil)
	s.productRepo.On("GetByID", mock.Anything, "prod-ebook").Return(product, nil)

	w, r := executeRequest(s.T(), http.MethodGet,
		"/api/checkout/stripe?sessionId=cs_test_123&userId=user-1&productId=prod-other", nil)

	s.app.VerifyStripeCheckoutHandler(w, r)

	s.Equal(http.StatusBadRequest, w.Code)
}
