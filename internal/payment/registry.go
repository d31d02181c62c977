package payment

import (
	"fmt"

	"github.com/volkanakin/storefront-checkout/internal/domain"
)

// Registry maps payment methods to their adapters. Adapters are constructed
// once at application start and registered here, so every request observes
// the same instance per provider; some adapters hold provider clients and
// wallet handles that are expensive to reinitialize.
type Registry struct {
	providers map[domain.PaymentMethod]domain.PaymentProvider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[domain.PaymentMethod]domain.PaymentProvider),
	}
}

func (r *Registry) Register(method domain.PaymentMethod, provider domain.PaymentProvider) {
	r.providers[method] = provider
}

func (r *Registry) Get(method domain.PaymentMethod) (domain.PaymentProvider, error) {
	provider, ok := r.providers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPaymentMethod, method)
	}

	return provider, nil
}

var (
	_ domain.PaymentProvider = (*StripeProvider)(nil)
	_ domain.PaymentProvider = (*PayPalProvider)(nil)
	_ domain.PaymentProvider = (*MoneroProvider)(nil)
)
