// Package payment implements the payment schedule semantics for auction bidders.
// It uses the generic package for money, dates and interest, and adds plan
// resolution, due dates, unit amounts, arrears classification and the
// monotonic progress rules.
package payment

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/arrears-engine/generic"
)

// =============================================================================
// MODALITY
// =============================================================================

// Modality is how a bidder pays for what they won.
type Modality string

const (
	ModalityCash         Modality = "cash"          // one lump sum, one due date
	ModalityInstallments Modality = "installments"  // N equal monthly payments
	ModalityDownPayment  Modality = "down_payment"  // down payment, then N monthly payments
)

// Valid reports whether m is one of the known modalities.
func (m Modality) Valid() bool {
	switch m {
	case ModalityCash, ModalityInstallments, ModalityDownPayment:
		return true
	}
	return false
}

// =============================================================================
// PLAN OVERRIDE - Partially specified plan parameters at one layer
// =============================================================================

// PlanOverride holds the plan parameters configured at a single layer
// (auction default, lot, or bidder). Nil or zero fields are unset and fall
// through to the next layer.
type PlanOverride struct {
	Modality           Modality
	CashDueDate        *time.Time
	StartMonth         string // "YYYY-MM" or bare month "3"
	DueDay             int
	Installments       int
	DownPaymentDueDate *time.Time
	DownPaymentAmount  *decimal.Decimal
}

// IsZero reports whether the override configures nothing.
func (o PlanOverride) IsZero() bool {
	return o.Modality == "" &&
		o.CashDueDate == nil &&
		o.StartMonth == "" &&
		o.DueDay <= 0 &&
		o.Installments <= 0 &&
		o.DownPaymentDueDate == nil &&
		o.DownPaymentAmount == nil
}

// Equal reports whether o and other configure the same parameters.
func (o PlanOverride) Equal(other PlanOverride) bool {
	return o.Modality == other.Modality &&
		o.StartMonth == other.StartMonth &&
		o.DueDay == other.DueDay &&
		o.Installments == other.Installments &&
		sameDate(o.CashDueDate, other.CashDueDate) &&
		sameDate(o.DownPaymentDueDate, other.DownPaymentDueDate) &&
		sameAmount(o.DownPaymentAmount, other.DownPaymentAmount)
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameAmount(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// =============================================================================
// AUCTION / LOT / BIDDER
// =============================================================================

type Auction struct {
	ID        generic.AuctionID
	Name      string
	StartDate *time.Time
	Archived  bool
	Defaults  PlanOverride
	Lots      []Lot
	Bidders   []Bidder
}

// Lot returns the lot with the given ID.
func (a *Auction) Lot(id generic.LotID) (*Lot, bool) {
	if id == "" {
		return nil, false
	}
	for i := range a.Lots {
		if a.Lots[i].ID == id {
			return &a.Lots[i], true
		}
	}
	return nil, false
}

// Bidder returns the bidder with the given ID.
func (a *Auction) Bidder(id generic.BidderID) (*Bidder, bool) {
	for i := range a.Bidders {
		if a.Bidders[i].ID == id {
			return &a.Bidders[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy, so stores can hand out auctions without sharing
// slices or maps with their callers.
func (a Auction) Clone() Auction {
	out := a
	out.Lots = append([]Lot(nil), a.Lots...)
	out.Bidders = make([]Bidder, len(a.Bidders))
	for i, b := range a.Bidders {
		out.Bidders[i] = b
		out.Bidders[i].Progress = b.Progress.Clone()
	}
	return out
}

type Lot struct {
	ID          generic.LotID
	Number      string
	Description string
	Plan        PlanOverride
}

// Bidder (arrematante) is the winner of a lot and the party that pays.
type Bidder struct {
	ID       generic.BidderID
	Name     string
	Document string
	Email    string
	Phone    string
	LotID    generic.LotID

	// AmountDue is authoritative. AmountDueText is the string form kept by
	// older records and only consulted when AmountDue is zero.
	AmountDue     decimal.Decimal
	AmountDueText string

	Pricing Pricing
	Plan    PlanOverride

	// LateInterestPct is the monthly late-interest rate in percent.
	// Nil or zero disables interest.
	LateInterestPct *decimal.Decimal

	Progress Progress
}

// Pricing is the alternative "bid value times factor" pricing mode.
type Pricing struct {
	UseMultiplier bool
	BidValue      decimal.Decimal
	Factor        decimal.Decimal
}

// InterestRate returns the monthly late-interest percentage, zero when unset.
func (b Bidder) InterestRate() decimal.Decimal {
	if b.LateInterestPct == nil {
		return decimal.Zero
	}
	return *b.LateInterestPct
}

// Total returns what the bidder owes over the whole plan, before interest.
func (b Bidder) Total() decimal.Decimal {
	if b.Pricing.UseMultiplier {
		return b.Pricing.BidValue.Mul(b.Pricing.Factor)
	}
	if b.AmountDue.IsZero() && b.AmountDueText != "" {
		return generic.ParseCurrency(b.AmountDueText)
	}
	return b.AmountDue
}

// =============================================================================
// PROGRESS - Units settled so far
// =============================================================================

// Progress is the settlement state of a bidder's plan.
//
// UnitsSettled counts fully paid units from the start of the plan (the down
// payment is unit 0). FullySettled overrides the counter: once set, every
// unit is settled whatever UnitsSettled says.
type Progress struct {
	UnitsSettled int
	FullySettled bool

	// SettledAt records when each unit was paid, keyed by unit index.
	// Optional: units without an entry are treated as paid on time.
	SettledAt map[int]time.Time
}

// Clone returns a copy that does not share the SettledAt map.
func (p Progress) Clone() Progress {
	out := p
	if p.SettledAt != nil {
		out.SettledAt = make(map[int]time.Time, len(p.SettledAt))
		for k, v := range p.SettledAt {
			out.SettledAt[k] = v
		}
	}
	return out
}

// Settled returns the counter clamped to [0, total].
func (p Progress) Settled(total int) int {
	if p.FullySettled {
		return total
	}
	switch {
	case p.UnitsSettled < 0:
		return 0
	case p.UnitsSettled > total:
		return total
	}
	return p.UnitsSettled
}

// Remaining returns how many units are still unpaid. Never negative.
func (p Progress) Remaining(total int) int {
	return total - p.Settled(total)
}

// =============================================================================
// STATUS
// =============================================================================

// Status is the bidder-level payment status.
type Status string

const (
	StatusSettled Status = "pago"
	StatusPending Status = "pendente"
	StatusOverdue Status = "atrasado"
)
