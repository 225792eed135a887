package payment

import (
	"time"

	"github.com/warp/arrears-engine/generic"
)

// =============================================================================
// UNITS - What each position in the schedule is
// =============================================================================

// UnitKind distinguishes the payment units of a plan.
type UnitKind string

const (
	UnitCash        UnitKind = "cash"
	UnitDownPayment UnitKind = "down_payment"
	UnitInstallment UnitKind = "installment"
)

// UnitCount returns the number of payment units in the plan:
// 1 for cash, N installments, or N+1 when a down payment precedes them.
func UnitCount(p Plan) int {
	switch p.Modality {
	case ModalityCash:
		return 1
	case ModalityDownPayment:
		return p.Installments + 1
	default:
		return p.Installments
	}
}

// UnitKindOf returns the kind of unit i. The second result is false when i is
// outside the plan.
func UnitKindOf(p Plan, i int) (UnitKind, bool) {
	if i < 0 || i >= UnitCount(p) {
		return "", false
	}
	switch p.Modality {
	case ModalityCash:
		return UnitCash, true
	case ModalityDownPayment:
		if i == 0 {
			return UnitDownPayment, true
		}
	}
	return UnitInstallment, true
}

// InstallmentNumber returns the 1-based installment number of unit i, or 0
// for cash and down-payment units.
func InstallmentNumber(p Plan, i int) int {
	kind, ok := UnitKindOf(p, i)
	if !ok || kind != UnitInstallment {
		return 0
	}
	if p.HasDownPayment() {
		return i
	}
	return i + 1
}

// =============================================================================
// DUE DATES
// =============================================================================

// DueDate returns the due date (UTC midnight) of unit i.
//
//   - Cash: the configured date; i is ignored.
//   - Installments: date(startYear, startMonth + i, dueDay).
//   - Down payment: unit 0 is the down payment date, unit i >= 1 is
//     installment i-1.
//
// The second result is false when the date is not computable: missing
// configuration, malformed start month, or i outside the plan.
func DueDate(p Plan, i int) (time.Time, bool) {
	kind, ok := UnitKindOf(p, i)
	if !ok {
		if p.Modality != ModalityCash {
			return time.Time{}, false
		}
		// Cash has a single date whatever the index.
		kind = UnitCash
	}

	switch kind {
	case UnitCash:
		if p.CashDueDate == nil {
			return time.Time{}, false
		}
		return generic.DateOnly(*p.CashDueDate), true
	case UnitDownPayment:
		if p.DownPaymentDueDate == nil {
			return time.Time{}, false
		}
		return generic.DateOnly(*p.DownPaymentDueDate), true
	default:
		offset := i
		if p.HasDownPayment() {
			offset = i - 1
		}
		return installmentDueDate(p, offset)
	}
}

// DueDateOrNow is DueDate with the documented fallback for cash plans
// without a configured date: the due date is taken to be now.
func DueDateOrNow(p Plan, i int, now time.Time) (time.Time, bool) {
	if d, ok := DueDate(p, i); ok {
		return d, true
	}
	if p.Modality == ModalityCash {
		return generic.DateOnly(now), true
	}
	return time.Time{}, false
}

func installmentDueDate(p Plan, offset int) (time.Time, bool) {
	if p.StartMonth == 0 || p.StartYear == 0 || p.DueDay <= 0 {
		return time.Time{}, false
	}
	return generic.Date(p.StartYear, p.StartMonth+time.Month(offset), p.DueDay), true
}
