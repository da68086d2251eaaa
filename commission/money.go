package commission

import "github.com/shopspring/decimal"

// MinorUnits is the currency precision (paise for INR).
const MinorUnits int32 = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds to the currency's minor unit, half-up.
// decimal.Round rounds half away from zero, which equals half-up for the
// non-negative amounts the engine works with.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnits)
}

// PercentOf returns amount * pct / 100, rounded to minor units.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(pct).Div(hundred))
}

// Tolerance is one minor currency unit.
func Tolerance() decimal.Decimal {
	return decimal.New(1, -MinorUnits)
}
