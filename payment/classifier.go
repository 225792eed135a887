/*
classifier.go - Arrears classification of a bidder's payment units

PURPOSE:
  Answers, for a resolved plan, a progress counter and an explicit "now":
  which units are settled, which one is due next, which are overdue, and
  for how many days and whole months. This is the single implementation
  every screen, report and notification derives its status from.

RULES:
  - FullySettled: every unit is settled; nothing is due.
  - Units below the counter are settled.
  - The first unsettled unit is overdue when now is past the end of its
    due day, pending otherwise.
  - Later units are always pending. They are never marked overdue ahead
    of the unit before them.

DOWN PAYMENT TIE-BREAK:
  A down payment configured after its own due date passed can leave both
  the down payment and the first installment past due. Both are reported
  as overdue candidates, and the one with the earlier due date is the
  primary (most urgent) unit. On equal dates the down payment wins.

MONTHS OVERDUE:
  MonthsOverdue = DaysOverdue / 30. This fixed month length is relied on by
  every amount the engine reports (see generic.DaysPerMonth).

SEE ALSO:
  - duedate.go: Due date of each unit
  - progress.go: Monotonic settle/unsettle transitions
  - portfolio/aggregate.go: Amounts and totals built on the classification
*/
package payment

import (
	"sort"
	"time"

	"github.com/warp/arrears-engine/generic"
)

// UnitState is the settlement state of one payment unit.
type UnitState string

const (
	UnitSettled UnitState = "settled"
	UnitPending UnitState = "pending"
	UnitOverdue UnitState = "overdue"
)

// UnitStatus is the classification of a single unit.
type UnitStatus struct {
	Index       int
	Kind        UnitKind
	Installment int // 1-based installment number, 0 for cash/down payment

	State UnitState

	// DueDate is only meaningful when DueKnown is true.
	DueDate  time.Time
	DueKnown bool

	DaysOverdue   int
	MonthsOverdue int
}

// Classification is the arrears picture of one bidder at one instant.
type Classification struct {
	Plan  Plan
	AsOf  time.Time
	Units []UnitStatus

	// Settled is the clamped number of settled units.
	Settled int

	// NextDue is the first unsettled unit, -1 when everything is settled.
	NextDue int

	// LastSettled is the most recently settled unit, -1 when none is.
	LastSettled int

	// Overdue lists overdue unit indexes, most urgent first.
	Overdue []int

	// Primary is the most urgent overdue unit, -1 when nothing is overdue.
	Primary int

	Status Status
}

// Classify computes the arrears classification. It is a pure function of its
// arguments: identical inputs always give identical output.
func Classify(p Plan, progress Progress, now time.Time) Classification {
	total := UnitCount(p)
	settled := progress.Settled(total)

	c := Classification{
		Plan:        p,
		AsOf:        now,
		Units:       make([]UnitStatus, total),
		Settled:     settled,
		NextDue:     -1,
		LastSettled: settled - 1,
		Primary:     -1,
	}

	for i := 0; i < total; i++ {
		kind, _ := UnitKindOf(p, i)
		due, known := DueDate(p, i)
		c.Units[i] = UnitStatus{
			Index:       i,
			Kind:        kind,
			Installment: InstallmentNumber(p, i),
			State:       UnitPending,
			DueDate:     due,
			DueKnown:    known,
		}
		if i < settled {
			c.Units[i].State = UnitSettled
		}
	}

	if settled < total {
		c.NextDue = settled
		c.markOverdue(settled, now)

		// An overdue down payment does not hide an overdue first installment.
		if p.HasDownPayment() && settled == 0 && total > 1 && c.Units[0].State == UnitOverdue {
			c.markOverdue(1, now)
		}
	}

	sort.SliceStable(c.Overdue, func(i, j int) bool {
		a, b := c.Units[c.Overdue[i]], c.Units[c.Overdue[j]]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.Index < b.Index
	})
	if len(c.Overdue) > 0 {
		c.Primary = c.Overdue[0]
	}

	switch {
	case settled == total:
		c.Status = StatusSettled
	case len(c.Overdue) > 0:
		c.Status = StatusOverdue
	default:
		c.Status = StatusPending
	}
	return c
}

func (c *Classification) markOverdue(i int, now time.Time) {
	u := &c.Units[i]
	if !u.DueKnown || !generic.IsPastDue(u.DueDate, now) {
		return
	}
	u.State = UnitOverdue
	u.DaysOverdue = generic.DaysOverdue(u.DueDate, now)
	u.MonthsOverdue = generic.MonthsOverdue(u.DaysOverdue)
	c.Overdue = append(c.Overdue, i)
}

// NextDueUnit returns the first unsettled unit.
func (c Classification) NextDueUnit() (UnitStatus, bool) {
	if c.NextDue < 0 {
		return UnitStatus{}, false
	}
	return c.Units[c.NextDue], true
}

// LastSettledUnit returns the most recently settled unit.
func (c Classification) LastSettledUnit() (UnitStatus, bool) {
	if c.LastSettled < 0 {
		return UnitStatus{}, false
	}
	return c.Units[c.LastSettled], true
}

// PrimaryOverdue returns the most urgent overdue unit.
func (c Classification) PrimaryOverdue() (UnitStatus, bool) {
	if c.Primary < 0 {
		return UnitStatus{}, false
	}
	return c.Units[c.Primary], true
}

// UnitCount returns the number of units in the classified plan.
func (c Classification) UnitCount() int { return len(c.Units) }
