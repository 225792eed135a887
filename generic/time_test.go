package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/arrears-engine/generic"
)

func TestEndOfDay_DueDayIsNotOverdue(t *testing.T) {
	due := generic.Date(2024, time.January, 10)

	assert.False(t, generic.IsPastDue(due, due))
	assert.False(t, generic.IsPastDue(due, time.Date(2024, 1, 10, 23, 59, 59, 0, time.UTC)))
	assert.True(t, generic.IsPastDue(due, time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)))
}

func TestDaysOverdue(t *testing.T) {
	due := generic.Date(2024, time.January, 10)

	assert.Equal(t, 22, generic.DaysOverdue(due, generic.Date(2024, time.February, 1)))
	assert.Equal(t, 1, generic.DaysOverdue(due, generic.Date(2024, time.January, 11)))
	assert.Equal(t, 0, generic.DaysOverdue(due, generic.Date(2024, time.January, 5)))
}

func TestMonthsOverdue_FixedThirtyDays(t *testing.T) {
	assert.Equal(t, 0, generic.MonthsOverdue(0))
	assert.Equal(t, 0, generic.MonthsOverdue(29))
	assert.Equal(t, 1, generic.MonthsOverdue(30))
	assert.Equal(t, 1, generic.MonthsOverdue(59))
	assert.Equal(t, 2, generic.MonthsOverdue(60))
	assert.Equal(t, 12, generic.MonthsOverdue(365))
}

func TestParseDate(t *testing.T) {
	d, err := generic.ParseDate("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, generic.Date(2024, time.March, 15), d)
	assert.Equal(t, time.UTC, d.Location())

	d, err = generic.ParseDate("2024-03-15T10:30:00-03:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 13, 30, 0, 0, time.UTC), d)

	_, err = generic.ParseDate("15/03/2024")
	assert.Error(t, err)
}

func TestParseYearMonth(t *testing.T) {
	ref := generic.Date(2025, time.June, 1)

	y, m, ok := generic.ParseYearMonth("2024-01", ref)
	require.True(t, ok)
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.January, m)

	y, m, ok = generic.ParseYearMonth("3", ref)
	require.True(t, ok)
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.March, m)

	_, _, ok = generic.ParseYearMonth("2024-13", ref)
	assert.False(t, ok)
	_, _, ok = generic.ParseYearMonth("", ref)
	assert.False(t, ok)
	_, _, ok = generic.ParseYearMonth("march", ref)
	assert.False(t, ok)
}
