package generic

import (
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// DATE ANCHORING
// =============================================================================

// DaysPerMonth is the fixed month length used to turn days overdue into whole
// months overdue. Report amounts and labels are derived from it; changing it
// changes every interest figure the engine produces.
const DaysPerMonth = 30

const dateLayout = "2006-01-02"

// Date returns the UTC midnight of the given calendar day.
// Month and day overflow normalize the way time.Date does (Feb 31 -> Mar 3).
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOnly drops the clock part of t, keeping its UTC calendar day.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return Date(u.Year(), u.Month(), u.Day())
}

// EndOfDay anchors a date-only value at 23:59:59 UTC of the same day.
// Due dates are compared against this anchor so that a payment due "today"
// is not overdue until the day is over.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 0, time.UTC)
}

// ParseDate reads "YYYY-MM-DD" as UTC midnight, or an RFC3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// FormatDate renders the UTC calendar day of t as "YYYY-MM-DD".
func FormatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

// ParseYearMonth reads a plan start month. Accepted forms are "YYYY-MM"
// (a trailing "-DD" is ignored) and a bare month number "1".."12", which
// takes its year from ref.
func ParseYearMonth(s string, ref time.Time) (int, time.Month, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, false
	}

	parts := strings.Split(s, "-")
	if len(parts) == 1 {
		m, err := strconv.Atoi(parts[0])
		if err != nil || m < 1 || m > 12 {
			return 0, 0, false
		}
		return ref.UTC().Year(), time.Month(m), true
	}

	y, err := strconv.Atoi(parts[0])
	if err != nil || y <= 0 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	return y, time.Month(m), true
}

// FormatYearMonth renders "YYYY-MM".
func FormatYearMonth(year int, month time.Month) string {
	return Date(year, month, 1).Format("2006-01")
}

// =============================================================================
// OVERDUE ARITHMETIC
// =============================================================================

// IsPastDue reports whether now is strictly after the end of the due day.
func IsPastDue(due, now time.Time) bool {
	return now.After(EndOfDay(due))
}

// DaysOverdue counts whole days from the due date's midnight to now.
// Zero when the due date has not passed.
func DaysOverdue(due, now time.Time) int {
	if !IsPastDue(due, now) {
		return 0
	}
	return int(now.Sub(DateOnly(due)).Hours() / 24)
}

// MonthsOverdue converts days overdue into whole months of DaysPerMonth days.
func MonthsOverdue(days int) int {
	if days <= 0 {
		return 0
	}
	return days / DaysPerMonth
}
