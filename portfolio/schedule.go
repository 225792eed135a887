package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/arrears-engine/payment"
)

// =============================================================================
// SCHEDULE - Per-unit amortization rows for reports
// =============================================================================

// Row is one unit of a bidder's schedule.
type Row struct {
	Index       int
	Kind        payment.UnitKind
	Installment int
	State       payment.UnitState

	DueDate  *time.Time
	PaidAt   *time.Time
	Amount   decimal.Decimal
	Interest decimal.Decimal // late interest owed or paid on top of Amount
	Owed     decimal.Decimal // Amount + Interest
	Known    bool

	DaysOverdue int
}

// Schedule expands a record into one row per unit. Interest on settled rows
// is what was paid late; on overdue rows it is what has accrued so far.
func Schedule(r Record) []Row {
	c := r.Classification
	rows := make([]Row, 0, len(c.Units))

	overdue := make(map[int]OverdueUnit, len(r.OverdueUnits))
	for _, ou := range r.OverdueUnits {
		overdue[ou.Index] = ou
	}

	for _, u := range c.Units {
		amount, known := r.Amounts.Unit(u.Index)
		row := Row{
			Index:       u.Index,
			Kind:        u.Kind,
			Installment: u.Installment,
			State:       u.State,
			Amount:      amount,
			Interest:    decimal.Zero,
			Owed:        amount,
			Known:       known,
			DaysOverdue: u.DaysOverdue,
		}
		if u.DueKnown {
			due := u.DueDate
			row.DueDate = &due
		}

		switch u.State {
		case payment.UnitSettled:
			if at, ok := r.SettledAt[u.Index]; ok {
				paid := at
				row.PaidAt = &paid
				if known && u.DueKnown {
					row.Owed = settledAmount(u, amount, r.InterestPct, payment.Progress{SettledAt: r.SettledAt})
					row.Interest = row.Owed.Sub(amount)
				}
			}
		case payment.UnitOverdue:
			if ou, ok := overdue[u.Index]; ok && known {
				row.Owed = ou.WithInterest
				row.Interest = ou.WithInterest.Sub(amount)
			}
		}
		rows = append(rows, row)
	}
	return rows
}
