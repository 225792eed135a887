package portfolio_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/arrears-engine/generic"
	"github.com/warp/arrears-engine/payment"
	"github.com/warp/arrears-engine/portfolio"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) time.Time {
	return generic.Date(year, month, day)
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := date(year, month, day)
	return &d
}

func money(s string) decimal.Decimal { return generic.MustParseDecimal(s) }

func moneyPtr(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

func pct(s string) *decimal.Decimal { return moneyPtr(s) }

func cashBidder(id, name, amount string, due time.Time) payment.Bidder {
	return payment.Bidder{
		ID:        generic.BidderID(id),
		Name:      name,
		AmountDue: money(amount),
		Plan: payment.PlanOverride{
			Modality:    payment.ModalityCash,
			CashDueDate: &due,
		},
	}
}

// =============================================================================
// RECORD TESTS
// =============================================================================

func TestEvaluate_CashOverdueAccruesInterest(t *testing.T) {
	// GIVEN: 1000 cash due 2024-01-10 at 10% per month
	// WHEN:  Evaluated on 2024-03-15 (65 days, 2 whole months)
	// THEN:  1000 * 1.1 * 1.1 is owed now

	b := cashBidder("b1", "Ana", "1000", date(2024, time.January, 10))
	b.LateInterestPct = pct("10")

	r := portfolio.Evaluate(&payment.Auction{ID: "a1", Name: "Leilão"}, &b, date(2024, time.March, 15))

	assert.Equal(t, payment.StatusOverdue, r.Status)
	assert.Equal(t, 65, r.DaysOverdue)
	assert.Equal(t, 2, r.MonthsOverdue)
	assert.Equal(t, "1210.00", r.AmountDueNow.StringFixed(2))
	assert.Equal(t, "1210.00", r.Overdue.StringFixed(2))
	assert.True(t, r.Pending.IsZero())
	assert.True(t, r.Received.IsZero())
	require.NotNil(t, r.NextDueDate)
	assert.Equal(t, date(2024, time.January, 10), *r.NextDueDate)
	assert.Equal(t, generic.AuctionID("a1"), r.AuctionID)
}

func TestEvaluate_LatePaymentReceivesRetroactiveInterest(t *testing.T) {
	// GIVEN: 3 installments of 1000 from 2024-01, day 10, 2% per month
	//        Unit 0 paid on 2024-02-15 (36 days late, 1 month)
	// WHEN:  Evaluated on 2024-02-20
	// THEN:  Received includes one month of interest; unit 1 is overdue
	//        without interest yet; unit 2 is pending

	b := payment.Bidder{
		ID:              "b1",
		AmountDue:       money("3000"),
		LateInterestPct: pct("2"),
		Plan: payment.PlanOverride{
			Modality:     payment.ModalityInstallments,
			StartMonth:   "2024-01",
			DueDay:       10,
			Installments: 3,
		},
		Progress: payment.Progress{
			UnitsSettled: 1,
			SettledAt:    map[int]time.Time{0: date(2024, time.February, 15)},
		},
	}

	r := portfolio.Evaluate(&payment.Auction{}, &b, date(2024, time.February, 20))

	assert.Equal(t, "1020.00", r.Received.StringFixed(2))
	assert.Equal(t, "1000.00", r.Overdue.StringFixed(2))
	assert.Equal(t, "1000.00", r.Pending.StringFixed(2))
	assert.Equal(t, "3000.00", r.Total.StringFixed(2))
	assert.Equal(t, 10, r.DaysOverdue)
}

func TestEvaluate_DownPaymentBothOverdueExposesBothAmounts(t *testing.T) {
	b := payment.Bidder{
		ID:        "b1",
		AmountDue: money("10000"),
		Plan: payment.PlanOverride{
			Modality:           payment.ModalityDownPayment,
			DownPaymentDueDate: datePtr(2024, time.January, 5),
			DownPaymentAmount:  moneyPtr("2000"),
			StartMonth:         "2024-01",
			DueDay:             15,
			Installments:       4,
		},
	}

	r := portfolio.Evaluate(&payment.Auction{}, &b, date(2024, time.February, 1))

	require.Len(t, r.OverdueUnits, 2)
	assert.Equal(t, payment.UnitDownPayment, r.OverdueUnits[0].Kind)
	assert.Equal(t, 27, r.OverdueUnits[0].DaysOverdue)
	assert.Equal(t, 1, r.OverdueUnits[1].Index)
	assert.Equal(t, 17, r.OverdueUnits[1].DaysOverdue)
	assert.Equal(t, "2000.00", r.OverdueUnits[1].WithInterest.StringFixed(2))

	assert.Equal(t, "2000.00", r.AmountDueNow.StringFixed(2), "down payment is primary")
	assert.Equal(t, "4000.00", r.Overdue.StringFixed(2))
	assert.Equal(t, "6000.00", r.Pending.StringFixed(2))
}

func TestEvaluate_UnknownAmountsContributeNothing(t *testing.T) {
	b := payment.Bidder{
		ID:        "b1",
		AmountDue: money("900"),
		Plan: payment.PlanOverride{
			Modality:           payment.ModalityDownPayment,
			DownPaymentDueDate: datePtr(2024, time.January, 5),
			StartMonth:         "2024-01",
			Installments:       2,
		},
	}

	r := portfolio.Evaluate(&payment.Auction{}, &b, date(2024, time.February, 1))

	assert.Equal(t, payment.StatusOverdue, r.Status)
	assert.False(t, r.AmountDueNowKnown)
	assert.True(t, r.Overdue.IsZero())
	assert.True(t, r.Pending.IsZero())
}

// =============================================================================
// AGGREGATE TESTS
// =============================================================================

func fixture() []payment.Auction {
	settled := cashBidder("b1", "Carla", "500", date(2024, time.January, 10))
	settled.Progress = payment.Progress{FullySettled: true}

	return []payment.Auction{
		{
			ID:   "a1",
			Name: "Fazenda",
			Bidders: []payment.Bidder{
				settled,
				cashBidder("b2", "Bruno", "1000", date(2024, time.January, 10)),
				cashBidder("b3", "Ana", "300", date(2024, time.March, 1)),
			},
		},
		{
			ID:       "a2",
			Name:     "Arquivado",
			Archived: true,
			Bidders: []payment.Bidder{
				cashBidder("b4", "Davi", "700", date(2024, time.January, 1)),
			},
		},
	}
}

func TestAggregate_TotalsAndOrder(t *testing.T) {
	entries := portfolio.EntriesFromAuctions(fixture())
	report := portfolio.Aggregate(entries, date(2024, time.February, 1), portfolio.Options{})

	require.Len(t, report.Records, 3)
	assert.Equal(t, generic.BidderID("b2"), report.Records[0].BidderID, "overdue first")
	assert.Equal(t, generic.BidderID("b3"), report.Records[1].BidderID, "pending second")
	assert.Equal(t, generic.BidderID("b1"), report.Records[2].BidderID, "settled last")

	s := report.Stats
	assert.Equal(t, 3, s.Bidders)
	assert.Equal(t, 1, s.Settled)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Overdue)
	assert.Equal(t, 1, s.OverdueUnits)
	assert.Equal(t, "1800.00", s.TotalContracted.StringFixed(2))
	assert.Equal(t, "500.00", s.Received.StringFixed(2))
	assert.Equal(t, "300.00", s.PendingAmount.StringFixed(2))
	assert.Equal(t, "1000.00", s.OverdueAmount.StringFixed(2))
	assert.Equal(t, "600.00", s.AverageTicket.StringFixed(2))
	assert.Equal(t, "1000.00", s.AverageOverdue.StringFixed(2))
	assert.Equal(t, "33.33", s.DelinquencyRate.StringFixed(2))
}

func TestAggregate_IncludeArchived(t *testing.T) {
	entries := portfolio.EntriesFromAuctions(fixture())
	report := portfolio.Aggregate(entries, date(2024, time.February, 1), portfolio.Options{IncludeArchived: true})

	require.Len(t, report.Records, 4)
	assert.Equal(t, generic.BidderID("b4"), report.Records[0].BidderID, "most overdue first")
	assert.Equal(t, generic.BidderID("b2"), report.Records[1].BidderID)
	assert.Equal(t, 2, report.Stats.Overdue)
	assert.Equal(t, "50.00", report.Stats.DelinquencyRate.StringFixed(2))
}

func TestAggregate_Empty(t *testing.T) {
	report := portfolio.Aggregate(nil, date(2024, time.February, 1), portfolio.Options{})

	assert.Empty(t, report.Records)
	assert.True(t, report.Stats.AverageTicket.IsZero())
	assert.True(t, report.Stats.DelinquencyRate.IsZero())
}

func TestSortRecords_UnknownDatesLastThenName(t *testing.T) {
	records := []portfolio.Record{
		{BidderID: "x", BidderName: "Zeca", Status: payment.StatusPending},
		{BidderID: "y", BidderName: "Beto", Status: payment.StatusPending, NextDueDate: datePtr(2024, time.May, 1)},
		{BidderID: "z", BidderName: "Alice", Status: payment.StatusPending},
		{BidderID: "w", BidderName: "Beto", Status: payment.StatusPending, NextDueDate: datePtr(2024, time.April, 1)},
	}

	portfolio.SortRecords(records)

	var got []generic.BidderID
	for _, r := range records {
		got = append(got, r.BidderID)
	}
	assert.Equal(t, []generic.BidderID{"w", "y", "z", "x"}, got)
}

// =============================================================================
// SCHEDULE TESTS
// =============================================================================

func TestSchedule_RowsPerUnit(t *testing.T) {
	b := payment.Bidder{
		ID:              "b1",
		AmountDue:       money("3000"),
		LateInterestPct: pct("2"),
		Plan: payment.PlanOverride{
			Modality:     payment.ModalityInstallments,
			StartMonth:   "2024-01",
			DueDay:       10,
			Installments: 3,
		},
		Progress: payment.Progress{
			UnitsSettled: 1,
			SettledAt:    map[int]time.Time{0: date(2024, time.February, 15)},
		},
	}

	r := portfolio.Evaluate(&payment.Auction{}, &b, date(2024, time.April, 20))
	rows := portfolio.Schedule(r)

	require.Len(t, rows, 3)

	assert.Equal(t, payment.UnitSettled, rows[0].State)
	require.NotNil(t, rows[0].PaidAt)
	assert.Equal(t, "20.00", rows[0].Interest.StringFixed(2))
	assert.Equal(t, "1020.00", rows[0].Owed.StringFixed(2))

	// Unit 1 due 2024-02-10, 70 days late on 2024-04-20: 2 months.
	assert.Equal(t, payment.UnitOverdue, rows[1].State)
	assert.Equal(t, 2, rows[1].Installment)
	assert.Equal(t, "1040.40", rows[1].Owed.StringFixed(2))
	assert.Equal(t, "40.40", rows[1].Interest.StringFixed(2))

	assert.Equal(t, payment.UnitPending, rows[2].State)
	assert.True(t, rows[2].Interest.IsZero())
	require.NotNil(t, rows[2].DueDate)
	assert.Equal(t, date(2024, time.March, 10), *rows[2].DueDate)
}
