package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROGRESSIVE INTEREST - Monthly compound late interest
// =============================================================================

// ProgressiveInterest compounds a monthly late-interest percentage over whole
// months overdue.
//
// The amount is multiplied by (1 + pct/100) once per month and only the final
// result is rounded to cents. When months < 1 or pct is zero the base amount
// is returned untouched (and unrounded).
//
//	ProgressiveInterest(1000, 10, 2) = 1000 * 1.1 * 1.1 = 1210.00
func ProgressiveInterest(base, pct decimal.Decimal, months int) decimal.Decimal {
	if months < 1 || pct.IsZero() {
		return base
	}

	factor := decimal.NewFromInt(1).Add(pct.Div(hundred))
	amount := base
	for i := 0; i < months; i++ {
		amount = amount.Mul(factor)
	}
	return Round2(amount)
}

// InterestFor applies ProgressiveInterest for the whole months between a due
// date and the instant the amount is evaluated (now, or the payment instant).
func InterestFor(base, pct decimal.Decimal, due, at time.Time) decimal.Decimal {
	return ProgressiveInterest(base, pct, MonthsOverdue(DaysOverdue(due, at)))
}
