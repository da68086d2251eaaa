package commission

import (
	"github.com/shopspring/decimal"
)

// Rates is the Rate Calculator output for one policy.
type Rates struct {
	Base              decimal.Decimal
	Reward            decimal.Decimal
	Bonus             decimal.Decimal
	Total             decimal.Decimal
	InsurerCommission decimal.Decimal
}

// Calculate computes the insurer-side commission:
//
//	total   = base + reward + bonus
//	insurer = round_half_up(premium * total / 100)
//
// When matched is false every rate and the commission are zero.
func Calculate(p Policy, g Grid, matched bool) (Rates, error) {
	if p.Premium.IsNegative() {
		return Rates{}, &InvalidInputError{Record: "policy " + string(p.ID), Field: "premium_amount", Reason: "must not be negative"}
	}
	if !matched {
		return Rates{
			Base:              decimal.Zero,
			Reward:            decimal.Zero,
			Bonus:             decimal.Zero,
			Total:             decimal.Zero,
			InsurerCommission: decimal.Zero,
		}, nil
	}
	if err := g.Validate(); err != nil {
		return Rates{}, err
	}

	total := g.TotalRate()
	return Rates{
		Base:              g.BaseRate,
		Reward:            g.RewardRate,
		Bonus:             g.BonusRate,
		Total:             total,
		InsurerCommission: PercentOf(p.Premium, total),
	}, nil
}
