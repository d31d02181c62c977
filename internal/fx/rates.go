package fx

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// RateSource reports how many units of the base currency one unit of the
// quote currency costs, e.g. Rate(ctx, "EUR", "XMR") = 140 means 1 XMR
// costs 140 EUR.
type RateSource interface {
	Rate(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// Fixed serves hardcoded rates. It stands in for a live pricing feed; the
// Monero adapter only depends on the RateSource interface, so a real feed
// can be injected without touching the checkout flow.
type Fixed struct {
	rates map[string]decimal.Decimal
}

func NewFixed(rates map[string]decimal.Decimal) *Fixed {
	return &Fixed{rates: rates}
}

// NewFixedEURXMR returns a source quoting only the EUR/XMR pair.
func NewFixedEURXMR(eurPerXMR decimal.Decimal) *Fixed {
	return NewFixed(map[string]decimal.Decimal{
		"EUR/XMR": eurPerXMR,
	})
}

func (f *Fixed) Rate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	rate, ok := f.rates[base+"/"+quote]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no rate configured for %s/%s", base, quote)
	}

	if rate.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("non-positive rate configured for %s/%s", base, quote)
	}

	return rate, nil
}
