package payment

import (
	"github.com/shopspring/decimal"
	"github.com/warp/arrears-engine/generic"
)

// =============================================================================
// UNIT AMOUNTS - How the bidder's total splits across the schedule
// =============================================================================

// Amounts is the per-unit split of a bidder's total, before interest.
//
// Known[i] is false when the amount of unit i cannot be computed (a down
// payment without a configured amount). Unknown units carry a zero amount.
type Amounts struct {
	Total decimal.Decimal
	Units []decimal.Decimal
	Known []bool
}

// Unit returns the amount of unit i and whether it is known.
func (a Amounts) Unit(i int) (decimal.Decimal, bool) {
	if i < 0 || i >= len(a.Units) {
		return decimal.Zero, false
	}
	return a.Units[i], a.Known[i]
}

// UnitAmounts splits the bidder's total over the plan's units.
//
//   - Cash: one unit worth the total.
//   - Installments: total / N each.
//   - Down payment: unit 0 is the configured down payment amount, the other
//     units share (total - down payment) / N.
//
// Installments are rounded to cents and the last one absorbs the remainder,
// so a fully known schedule always sums to the total.
func UnitAmounts(p Plan, b Bidder) Amounts {
	total := b.Total()
	n := UnitCount(p)
	out := Amounts{
		Total: total,
		Units: make([]decimal.Decimal, n),
		Known: make([]bool, n),
	}
	if n == 0 {
		return out
	}

	switch p.Modality {
	case ModalityCash:
		out.Units[0] = generic.Round2(total)
		out.Known[0] = true
		return out

	case ModalityDownPayment:
		if p.DownPaymentAmount == nil {
			// Without a down payment amount the remainder is unknown too.
			return out
		}
		down := generic.Round2(*p.DownPaymentAmount)
		out.Units[0] = down
		out.Known[0] = true
		remainder := total.Sub(down)
		if remainder.IsNegative() {
			remainder = decimal.Zero
		}
		split(remainder, out.Units[1:], out.Known[1:])
		return out

	default:
		split(total, out.Units, out.Known)
		return out
	}
}

func split(total decimal.Decimal, units []decimal.Decimal, known []bool) {
	n := len(units)
	if n == 0 {
		return
	}
	each := generic.Round2(total.Div(decimal.NewFromInt(int64(n))))
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		units[i] = each
		known[i] = true
		allocated = allocated.Add(each)
	}
	units[n-1] = generic.Round2(total.Sub(allocated))
	known[n-1] = true
}
