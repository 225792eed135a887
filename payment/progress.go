package payment

import (
	"fmt"
	"time"

	"github.com/warp/arrears-engine/generic"
)

// =============================================================================
// MONOTONIC PROGRESS - Settle/unsettle one unit at a time
// =============================================================================

// Transition describes what a settle or unsettle changed.
type Transition struct {
	Unit int

	// BecameFullySettled is set when this settle paid the last unit.
	BecameFullySettled bool

	// WasFullySettled is set when this unsettle reopened a settled plan.
	WasFullySettled bool
}

// OrderError reports a toggle outside the monotonic order.
type OrderError struct {
	Op        string // "settle" or "unsettle"
	Requested int
	Allowed   int // -1 when no unit can be toggled
}

func (e *OrderError) Error() string {
	if e.Allowed < 0 {
		return fmt.Sprintf("cannot %s unit %d: no unit can be %sd", e.Op, e.Requested, e.Op)
	}
	return fmt.Sprintf("cannot %s unit %d: only unit %d can be %sd", e.Op, e.Requested, e.Allowed, e.Op)
}

func (e *OrderError) Unwrap() error { return generic.ErrOutOfOrder }

// Settle marks unit as paid at the given instant. Only the next unsettled
// unit may be settled. Settling the last unit sets FullySettled.
func Settle(p Plan, progress Progress, unit int, at time.Time) (Progress, Transition, error) {
	total := UnitCount(p)
	if unit < 0 || unit >= total {
		return progress, Transition{}, fmt.Errorf("settle unit %d of %d: %w", unit, total, generic.ErrUnitOutOfRange)
	}

	settled := progress.Settled(total)
	if settled == total {
		return progress, Transition{}, &OrderError{Op: "settle", Requested: unit, Allowed: -1}
	}
	if unit != settled {
		return progress, Transition{}, &OrderError{Op: "settle", Requested: unit, Allowed: settled}
	}

	next := progress.Clone()
	next.UnitsSettled = settled + 1
	if next.SettledAt == nil {
		next.SettledAt = make(map[int]time.Time)
	}
	next.SettledAt[unit] = at

	tr := Transition{Unit: unit}
	if next.UnitsSettled == total {
		next.FullySettled = true
		tr.BecameFullySettled = true
	}
	return next, tr, nil
}

// Unsettle reverts the most recently settled unit. A fully settled plan
// reopens at its last unit, whatever the advisory counter said.
func Unsettle(p Plan, progress Progress, unit int) (Progress, Transition, error) {
	total := UnitCount(p)
	if unit < 0 || unit >= total {
		return progress, Transition{}, fmt.Errorf("unsettle unit %d of %d: %w", unit, total, generic.ErrUnitOutOfRange)
	}

	settled := progress.Settled(total)
	if settled == 0 {
		return progress, Transition{}, &OrderError{Op: "unsettle", Requested: unit, Allowed: -1}
	}
	if unit != settled-1 {
		return progress, Transition{}, &OrderError{Op: "unsettle", Requested: unit, Allowed: settled - 1}
	}

	next := progress.Clone()
	tr := Transition{Unit: unit, WasFullySettled: progress.FullySettled}
	next.FullySettled = false
	next.UnitsSettled = unit
	delete(next.SettledAt, unit)
	return next, tr, nil
}
