package portfolio

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/arrears-engine/generic"
	"github.com/warp/arrears-engine/payment"
)

// =============================================================================
// AGGREGATE - Portfolio totals across bidders
// =============================================================================

// Options tune which entries are aggregated.
type Options struct {
	IncludeArchived bool
}

// Stats are the portfolio totals. Amounts are rounded to cents.
type Stats struct {
	Bidders int
	Settled int
	Pending int
	Overdue int

	OverdueUnits int

	TotalContracted decimal.Decimal
	Received        decimal.Decimal
	PendingAmount   decimal.Decimal
	OverdueAmount   decimal.Decimal

	// AverageTicket is contracted / bidders.
	AverageTicket decimal.Decimal
	// AverageOverdue is the overdue amount per delinquent bidder.
	AverageOverdue decimal.Decimal
	// DelinquencyRate is the percentage of bidders that are overdue.
	DelinquencyRate decimal.Decimal
}

// Report is the evaluated portfolio in display order.
type Report struct {
	AsOf    time.Time
	Records []Record
	Stats   Stats
}

// EntriesFromAuctions flattens auctions into one entry per bidder.
// The entries point into the given slice.
func EntriesFromAuctions(auctions []payment.Auction) []Entry {
	var out []Entry
	for i := range auctions {
		a := &auctions[i]
		for j := range a.Bidders {
			out = append(out, Entry{Auction: a, Bidder: &a.Bidders[j]})
		}
	}
	return out
}

// Aggregate evaluates every entry as of now, sorts the records for display
// and totals them. Entries of archived auctions are skipped unless
// opts.IncludeArchived is set.
func Aggregate(entries []Entry, now time.Time, opts Options) Report {
	report := Report{AsOf: now}

	for _, e := range entries {
		if e.Bidder == nil {
			continue
		}
		if e.Auction != nil && e.Auction.Archived && !opts.IncludeArchived {
			continue
		}
		report.Records = append(report.Records, Evaluate(e.Auction, e.Bidder, now))
	}

	SortRecords(report.Records)
	report.Stats = Summarize(report.Records)
	return report
}

// Summarize totals already evaluated records.
func Summarize(records []Record) Stats {
	s := Stats{
		Bidders:         len(records),
		TotalContracted: decimal.Zero,
		Received:        decimal.Zero,
		PendingAmount:   decimal.Zero,
		OverdueAmount:   decimal.Zero,
		AverageTicket:   decimal.Zero,
		AverageOverdue:  decimal.Zero,
		DelinquencyRate: decimal.Zero,
	}

	for _, r := range records {
		switch r.Status {
		case payment.StatusSettled:
			s.Settled++
		case payment.StatusOverdue:
			s.Overdue++
		default:
			s.Pending++
		}
		s.OverdueUnits += len(r.Classification.Overdue)
		s.TotalContracted = s.TotalContracted.Add(r.Total)
		s.Received = s.Received.Add(r.Received)
		s.PendingAmount = s.PendingAmount.Add(r.Pending)
		s.OverdueAmount = s.OverdueAmount.Add(r.Overdue)
	}

	if s.Bidders > 0 {
		n := decimal.NewFromInt(int64(s.Bidders))
		s.AverageTicket = generic.Round2(s.TotalContracted.Div(n))
		s.DelinquencyRate = generic.Round2(decimal.NewFromInt(int64(s.Overdue * 100)).Div(n))
	}
	if s.Overdue > 0 {
		s.AverageOverdue = generic.Round2(s.OverdueAmount.Div(decimal.NewFromInt(int64(s.Overdue))))
	}

	s.TotalContracted = generic.Round2(s.TotalContracted)
	s.Received = generic.Round2(s.Received)
	s.PendingAmount = generic.Round2(s.PendingAmount)
	s.OverdueAmount = generic.Round2(s.OverdueAmount)
	return s
}

// =============================================================================
// DISPLAY ORDER
// =============================================================================

var statusRank = map[payment.Status]int{
	payment.StatusOverdue: 0,
	payment.StatusPending: 1,
	payment.StatusSettled: 2,
}

// SortRecords orders records overdue first, then pending, then settled.
// Within a group the earliest next-due date comes first and unknown dates go
// last; remaining ties are broken by bidder name, then ID.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if ra, rb := statusRank[a.Status], statusRank[b.Status]; ra != rb {
			return ra < rb
		}
		if a.Status != payment.StatusSettled {
			switch {
			case a.NextDueDate != nil && b.NextDueDate == nil:
				return true
			case a.NextDueDate == nil && b.NextDueDate != nil:
				return false
			case a.NextDueDate != nil && !a.NextDueDate.Equal(*b.NextDueDate):
				return a.NextDueDate.Before(*b.NextDueDate)
			}
		}
		if a.BidderName != b.BidderName {
			return a.BidderName < b.BidderName
		}
		return a.BidderID < b.BidderID
	})
}
