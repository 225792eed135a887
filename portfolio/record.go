/*
Package portfolio turns per-bidder classifications into the records and
totals the dashboard, report generator and notifier consume.

PURPOSE:
  The payment package answers "which unit is due and is it late". This
  package attaches money to that answer: how much was received, how much is
  pending, how much is overdue with late interest, and how the whole
  portfolio adds up.

AMOUNT RULES:
  Received: settled units at their base amount. A unit paid after the end
            of its due day carries the interest of the whole 30-day months
            between due date and payment.
  Pending:  unsettled units that are not overdue, without interest.
  Overdue:  overdue units with interest accrued up to now.
  Units whose amount is unknown contribute nothing to any sum.

SEE ALSO:
  - aggregate.go: Portfolio totals and display order
  - schedule.go: Per-unit amortization rows
  - payment/classifier.go: The classification every record is built on
*/
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/arrears-engine/generic"
	"github.com/warp/arrears-engine/payment"
)

// Entry is one bidder together with the auction it belongs to.
type Entry struct {
	Auction *payment.Auction
	Bidder  *payment.Bidder
}

// OverdueUnit is an overdue candidate with its owed amount.
type OverdueUnit struct {
	Index         int
	Kind          payment.UnitKind
	DueDate       time.Time
	DaysOverdue   int
	MonthsOverdue int
	Base          decimal.Decimal
	WithInterest  decimal.Decimal
	AmountKnown   bool
}

// Record is the enriched status of one bidder at one instant.
type Record struct {
	AuctionID   generic.AuctionID
	AuctionName string
	Archived    bool
	BidderID    generic.BidderID
	BidderName  string
	LotID       generic.LotID

	Plan           payment.Plan
	Classification payment.Classification
	Amounts        payment.Amounts
	InterestPct    decimal.Decimal

	Status payment.Status
	Total  decimal.Decimal

	// AmountDueNow is the primary overdue unit with interest, or the next
	// pending unit's amount. Zero when nothing is due.
	AmountDueNow      decimal.Decimal
	AmountDueNowKnown bool

	// NextDueDate is the due date driving the display order: the primary
	// overdue unit's when overdue, the next unit's otherwise.
	NextDueDate *time.Time

	DaysOverdue   int
	MonthsOverdue int
	OverdueUnits  []OverdueUnit

	Received decimal.Decimal
	Pending  decimal.Decimal
	Overdue  decimal.Decimal

	// SettledAt is a copy of the bidder's payment instants.
	SettledAt map[int]time.Time
}

// Evaluate builds the record of one bidder as of now.
func Evaluate(auction *payment.Auction, bidder *payment.Bidder, now time.Time) Record {
	plan := payment.ResolveForBidder(auction, bidder, now)
	c := payment.Classify(plan, bidder.Progress, now)
	amounts := payment.UnitAmounts(plan, *bidder)
	pct := bidder.InterestRate()

	r := Record{
		BidderID:       bidder.ID,
		BidderName:     bidder.Name,
		LotID:          bidder.LotID,
		Plan:           plan,
		Classification: c,
		Amounts:        amounts,
		InterestPct:    pct,
		Status:         c.Status,
		Total:          generic.Round2(amounts.Total),
		Received:       decimal.Zero,
		Pending:        decimal.Zero,
		Overdue:        decimal.Zero,
		AmountDueNow:   decimal.Zero,
		SettledAt:      bidder.Progress.Clone().SettledAt,
	}
	if auction != nil {
		r.AuctionID = auction.ID
		r.AuctionName = auction.Name
		r.Archived = auction.Archived
	}

	for _, u := range c.Units {
		base, known := amounts.Unit(u.Index)
		if !known {
			continue
		}
		switch u.State {
		case payment.UnitSettled:
			r.Received = r.Received.Add(settledAmount(u, base, pct, bidder.Progress))
		case payment.UnitOverdue:
			r.Overdue = r.Overdue.Add(generic.InterestFor(base, pct, u.DueDate, now))
		default:
			r.Pending = r.Pending.Add(base)
		}
	}

	for _, i := range c.Overdue {
		u := c.Units[i]
		base, known := amounts.Unit(i)
		ou := OverdueUnit{
			Index:         i,
			Kind:          u.Kind,
			DueDate:       u.DueDate,
			DaysOverdue:   u.DaysOverdue,
			MonthsOverdue: u.MonthsOverdue,
			Base:          base,
			WithInterest:  base,
			AmountKnown:   known,
		}
		if known {
			ou.WithInterest = generic.ProgressiveInterest(base, pct, u.MonthsOverdue)
		}
		r.OverdueUnits = append(r.OverdueUnits, ou)
	}

	if primary, ok := c.PrimaryOverdue(); ok {
		r.DaysOverdue = primary.DaysOverdue
		r.MonthsOverdue = primary.MonthsOverdue
		due := primary.DueDate
		r.NextDueDate = &due
		r.AmountDueNow = r.OverdueUnits[0].WithInterest
		r.AmountDueNowKnown = r.OverdueUnits[0].AmountKnown
	} else if next, ok := c.NextDueUnit(); ok {
		if next.DueKnown {
			due := next.DueDate
			r.NextDueDate = &due
		}
		r.AmountDueNow, r.AmountDueNowKnown = amounts.Unit(next.Index)
	} else {
		r.AmountDueNowKnown = true
	}

	r.Received = generic.Round2(r.Received)
	r.Pending = generic.Round2(r.Pending)
	r.Overdue = generic.Round2(r.Overdue)
	return r
}

// settledAmount is what a settled unit brought in, including interest when
// it was paid late.
func settledAmount(u payment.UnitStatus, base, pct decimal.Decimal, progress payment.Progress) decimal.Decimal {
	paidAt, ok := progress.SettledAt[u.Index]
	if !ok || !u.DueKnown {
		return base
	}
	return generic.InterestFor(base, pct, u.DueDate, paidAt)
}
