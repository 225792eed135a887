/*
Package generic provides the domain-agnostic primitives of the arrears engine.

PURPOSE:
  This package contains the money, date and interest arithmetic shared by
  every payment modality. It knows nothing about auctions, lots or bidders:
  the payment package builds the schedule semantics on top of it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal amounts, rounded to cents only at the edges
  - Currency parsing: lenient conversion of free-form currency strings
  - Identifiers: type-safe IDs for auctions, lots and bidders

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift
  2. Rounding at the edge: intermediate values are never rounded
  3. Type Safety: Strong typing for IDs prevents mixing auction/bidder IDs
  4. Soft failure: malformed input degrades to zero, never panics

USAGE:
  amount := generic.ParseCurrency("R$ 1.234,56")   // 1234.56
  owed := generic.ProgressiveInterest(amount, generic.Percent(2), 3)

SEE ALSO:
  - time.go: Date anchoring and overdue arithmetic
  - interest.go: Progressive (compound) late interest
  - errors.go: Sentinel errors
*/
package generic

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// CentPlaces is the number of decimal places monetary results are rounded to.
const CentPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// Round2 rounds a monetary amount to cents (half away from zero).
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(CentPlaces) }

// Percent builds a percentage value, e.g. Percent(2.5) for 2.5%.
func Percent(p float64) decimal.Decimal { return decimal.NewFromFloat(p) }

// Money builds an amount from a float literal. Intended for tests and fixtures.
func Money(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseCurrency converts a free-form currency string into a decimal.
//
// Everything except digits, separators and a leading minus sign is stripped.
// When a comma is present it is the decimal separator and dots are thousands
// separators ("R$ 1.234,56"). Without a comma, a single dot is a decimal
// point ("1234.56") and several dots are thousands separators ("1.234.567").
// Unparseable input yields zero.
func ParseCurrency(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}

	negative := false
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			negative = true
		}
	}
	cleaned := b.String()

	switch {
	case strings.Contains(cleaned, ","):
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		// Only the last comma separates cents.
		if i := strings.LastIndex(cleaned, ","); i >= 0 {
			cleaned = strings.ReplaceAll(cleaned[:i], ",", "") + "." + cleaned[i+1:]
		}
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		d = d.Neg()
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AuctionID string
type LotID string
type BidderID string
