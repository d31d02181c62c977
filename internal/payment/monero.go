package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/volkanakin/storefront-checkout/internal/domain"
	"github.com/volkanakin/storefront-checkout/internal/fx"
	"github.com/volkanakin/storefront-checkout/internal/monero"
)

const (
	// moneroSessionTTL bounds how long a generated payment id stays payable.
	moneroSessionTTL = 30 * time.Minute

	// minConfirmations a transfer needs before it counts as received.
	minConfirmations = 1
)

// MoneroWallet is the slice of the wallet RPC client the adapter needs.
type MoneroWallet interface {
	GetPayments(ctx context.Context, paymentID string) ([]monero.Payment, error)
	GetHeight(ctx context.Context) (uint64, error)
	Refresh(ctx context.Context) error
}

// moneroSession is the locally generated counterpart of a provider checkout
// session. Monero has no hosted checkout, so the expected amount is fixed at
// creation time and kept in Redis until the transfer shows up in the wallet.
type moneroSession struct {
	PaymentID      string          `json:"paymentId"`
	ProductID      string          `json:"productId"`
	UserID         string          `json:"userId"`
	XMRAmount      decimal.Decimal `json:"xmrAmount"`
	EURAmount      decimal.Decimal `json:"eurAmount"`
	IsSubscription bool            `json:"isSubscription"`
}

type MoneroProvider struct {
	wallet  MoneroWallet
	redis   redis.UniversalClient
	rates   fx.RateSource
	address string
	baseURL string
}

func NewMoneroProvider(
	wallet MoneroWallet,
	redisClient redis.UniversalClient,
	rates fx.RateSource,
	address string,
	baseURL string) *MoneroProvider {

	return &MoneroProvider{
		wallet:  wallet,
		redis:   redisClient,
		rates:   rates,
		address: address,
		baseURL: baseURL,
	}
}

func moneroSessionKey(paymentID string) string {
	return "monero_checkout:" + paymentID
}

func newPaymentID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate payment id: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

func (m *MoneroProvider) CreateCheckoutSession(
	ctx context.Context,
	input domain.CheckoutInput) (*domain.CheckoutSession, error) {

	product := input.Product

	rate, err := m.rates.Rate(ctx, product.Currency, "XMR")
	if err != nil {
		return nil, err
	}

	xmrAmount := product.Price.DivRound(rate, 12)

	paymentID, err := newPaymentID()
	if err != nil {
		return nil, err
	}

	userID := domain.AnonymousUserID
	if input.User != nil {
		userID = input.User.ID
	}

	session := moneroSession{
		PaymentID:      paymentID,
		ProductID:      product.ID,
		UserID:         userID,
		XMRAmount:      xmrAmount,
		EURAmount:      product.Price,
		IsSubscription: product.IsSubscription,
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal monero checkout session: %w", err)
	}

	err = m.redis.Set(ctx, moneroSessionKey(paymentID), data, moneroSessionTTL).Err()
	if err != nil {
		return nil, fmt.Errorf("store monero checkout session: %w", err)
	}

	// Same-origin payment page instead of an external redirect.
	redirectURL := fmt.Sprintf("%s/checkout/monero?paymentId=%s&address=%s&amount=%s",
		m.baseURL, paymentID, url.QueryEscape(m.address), xmrAmount.StringFixed(12))

	return &domain.CheckoutSession{
		ID:          paymentID,
		RedirectURL: redirectURL,
		Address:     m.address,
		XMRAmount:   xmrAmount,
	}, nil
}

func (m *MoneroProvider) VerifyPayment(
	ctx context.Context,
	sessionID string) (*domain.VerificationResult, error) {

	data, err := m.redis.Get(ctx, moneroSessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &domain.VerificationResult{
			Reason: domain.ErrCheckoutSessionExpired.Error(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load monero checkout session: %w", err)
	}

	var session moneroSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal monero checkout session: %w", err)
	}

	if err := m.wallet.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("refresh wallet: %w", err)
	}

	height, err := m.wallet.GetHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("get wallet height: %w", err)
	}

	payments, err := m.wallet.GetPayments(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("scan wallet payments: %w", err)
	}

	expected := session.XMRAmount.Shift(12).IntPart()

	var received uint64
	for _, p := range payments {
		if p.BlockHeight == 0 || height < p.BlockHeight+minConfirmations {
			continue
		}
		received += p.Amount
	}

	if received < uint64(expected) {
		return &domain.VerificationResult{
			Reason:    "payment has not been confirmed yet",
			Retryable: true,
		}, nil
	}

	return &domain.VerificationResult{
		Success:        true,
		ProductID:      session.ProductID,
		IsSubscription: session.IsSubscription,
	}, nil
}
