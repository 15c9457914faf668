package feedsim

import (
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Walk is a bounded multiplicative random walk. Each step moves the price by
// at most volatility times its current value, rounded to cents.
type Walk struct {
	price      decimal.Decimal
	volatility decimal.Decimal
	rng        *rand.Rand
}

// NewWalk starts a walk at start. rng may be nil.
func NewWalk(start, volatility decimal.Decimal, rng *rand.Rand) *Walk {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Walk{price: start, volatility: volatility, rng: rng}
}

// Next advances the walk and returns the new price. The price never drops
// below one cent.
func (w *Walk) Next() decimal.Decimal {
	// factor is uniform in [-volatility, +volatility).
	u := decimal.NewFromFloat(w.rng.Float64())
	factor := u.Mul(two).Sub(decimal.NewFromInt(1)).Mul(w.volatility)

	next := w.price.Add(w.price.Mul(factor)).Round(2)
	if next.LessThan(decimal.New(1, -2)) {
		next = decimal.New(1, -2)
	}
	w.price = next
	return next
}

// Current returns the last price.
func (w *Walk) Current() decimal.Decimal {
	return w.price
}
