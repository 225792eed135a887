package generic_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/arrears-engine/generic"
)

func dec(s string) decimal.Decimal { return generic.MustParseDecimal(s) }

// =============================================================================
// PROGRESSIVE INTEREST TESTS
// =============================================================================

func TestProgressiveInterest_CompoundsMonthly(t *testing.T) {
	// GIVEN: 1000 at 10% per month, 2 months overdue
	// THEN: 1000 * 1.1 * 1.1 = 1210.00

	got := generic.ProgressiveInterest(dec("1000"), dec("10"), 2)
	assert.True(t, got.Equal(dec("1210.00")), "got %s", got)
	assert.Equal(t, "1210.00", got.StringFixed(2))
}

func TestProgressiveInterest_ZeroRateIsIdentity(t *testing.T) {
	for _, months := range []int{0, 1, 5, 120} {
		got := generic.ProgressiveInterest(dec("1234.567"), decimal.Zero, months)
		assert.True(t, got.Equal(dec("1234.567")), "months=%d got %s", months, got)
	}
}

func TestProgressiveInterest_LessThanOneMonthIsIdentity(t *testing.T) {
	got := generic.ProgressiveInterest(dec("99.999"), dec("5"), 0)
	assert.True(t, got.Equal(dec("99.999")), "base must come back unrounded, got %s", got)

	got = generic.ProgressiveInterest(dec("99.999"), dec("5"), -3)
	assert.True(t, got.Equal(dec("99.999")))
}

func TestProgressiveInterest_RoundsOnlyTheFinalResult(t *testing.T) {
	// 100 * 1.015^3 = 104.5678375
	got := generic.ProgressiveInterest(dec("100"), dec("1.5"), 3)
	assert.Equal(t, "104.57", got.StringFixed(2))

	// 1.025^4 = 1.103812890625
	exact := dec("333.33").Mul(dec("1.103812890625"))
	got = generic.ProgressiveInterest(dec("333.33"), dec("2.5"), 4)
	assert.True(t, got.Equal(exact.Round(2)), "got %s want %s", got, exact.Round(2))

	// 0.01 at 50% for 1 month is 0.015 exactly; rounding happens once, at the end.
	got = generic.ProgressiveInterest(dec("0.01"), dec("50"), 1)
	assert.Equal(t, "0.02", got.StringFixed(2))
}

func TestProgressiveInterest_StableUnderRepetition(t *testing.T) {
	first := generic.ProgressiveInterest(dec("1500.10"), dec("3.3"), 7)
	for i := 0; i < 10; i++ {
		assert.True(t, first.Equal(generic.ProgressiveInterest(dec("1500.10"), dec("3.3"), 7)))
	}
}

func TestInterestFor_UsesThirtyDayMonths(t *testing.T) {
	due := generic.Date(2024, time.January, 1)

	// 59 days -> 1 month
	got := generic.InterestFor(dec("1000"), dec("10"), due, generic.Date(2024, time.February, 29))
	assert.Equal(t, "1100.00", got.StringFixed(2))

	// 60 days -> 2 months
	got = generic.InterestFor(dec("1000"), dec("10"), due, generic.Date(2024, time.March, 1))
	assert.Equal(t, "1210.00", got.StringFixed(2))

	// Not yet due
	got = generic.InterestFor(dec("1000"), dec("10"), due, due.Add(12*time.Hour))
	assert.True(t, got.Equal(dec("1000")))
}
