package payment

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/arrears-engine/generic"
)

// =============================================================================
// PLAN - Fully resolved payment plan
// =============================================================================

// Layer identifies where a plan parameter came from.
type Layer string

const (
	LayerBidder   Layer = "bidder"
	LayerLot      Layer = "lot"
	LayerAuction  Layer = "auction"
	LayerFallback Layer = "fallback"
)

// Built-in fallback applied when no layer configures a parameter.
const (
	DefaultModality     = ModalityInstallments
	DefaultInstallments = 12
	DefaultDueDay       = 15
)

// Plan is a payment plan with every layer applied.
//
// Fields that no layer configured and that have no fallback stay empty
// (CashDueDate, DownPaymentDueDate, DownPaymentAmount); the due-date
// calculator reports such units as not computable.
type Plan struct {
	Modality Modality
	Source   Layer // layer that chose the modality

	CashDueDate *time.Time

	StartYear  int
	StartMonth time.Month // zero when the configured start month is malformed
	DueDay     int

	Installments int

	DownPaymentDueDate *time.Time
	DownPaymentAmount  *decimal.Decimal
}

// HasDownPayment reports whether unit 0 is a down payment.
func (p Plan) HasDownPayment() bool { return p.Modality == ModalityDownPayment }

// =============================================================================
// RESOLVER
// =============================================================================

// Resolve layers the bidder's, lot's and auction's plan parameters, field by
// field, over the built-in fallback (installments, 12 units, day 15, starting
// in the month of now). lot may be nil.
func Resolve(auction *Auction, lot *Lot, bidder *Bidder, now time.Time) Plan {
	var layers []layered
	if bidder != nil {
		layers = append(layers, layered{LayerBidder, bidder.Plan})
	}
	if lot != nil {
		layers = append(layers, layered{LayerLot, lot.Plan})
	}
	if auction != nil {
		layers = append(layers, layered{LayerAuction, auction.Defaults})
	}

	plan := Plan{
		Modality:     DefaultModality,
		Source:       LayerFallback,
		Installments: DefaultInstallments,
		DueDay:       DefaultDueDay,
	}

	for _, l := range layers {
		if l.o.Modality.Valid() {
			plan.Modality = l.o.Modality
			plan.Source = l.layer
			break
		}
	}
	for _, l := range layers {
		if l.o.CashDueDate != nil {
			plan.CashDueDate = l.o.CashDueDate
			break
		}
	}
	for _, l := range layers {
		if l.o.DueDay > 0 {
			plan.DueDay = l.o.DueDay
			break
		}
	}
	for _, l := range layers {
		if l.o.Installments > 0 {
			plan.Installments = l.o.Installments
			break
		}
	}
	for _, l := range layers {
		if l.o.DownPaymentDueDate != nil {
			plan.DownPaymentDueDate = l.o.DownPaymentDueDate
			break
		}
	}
	for _, l := range layers {
		if l.o.DownPaymentAmount != nil {
			plan.DownPaymentAmount = l.o.DownPaymentAmount
			break
		}
	}

	startMonth := generic.FormatYearMonth(now.UTC().Year(), now.UTC().Month())
	for _, l := range layers {
		if l.o.StartMonth != "" {
			startMonth = l.o.StartMonth
			break
		}
	}
	if y, m, ok := generic.ParseYearMonth(startMonth, now); ok {
		plan.StartYear, plan.StartMonth = y, m
	}

	return plan
}

// ResolveForBidder resolves the plan for a bidder of the auction, looking the
// lot up by the bidder's LotID.
func ResolveForBidder(auction *Auction, bidder *Bidder, now time.Time) Plan {
	var lot *Lot
	if auction != nil && bidder != nil {
		lot, _ = auction.Lot(bidder.LotID)
	}
	return Resolve(auction, lot, bidder, now)
}

type layered struct {
	layer Layer
	o     PlanOverride
}
