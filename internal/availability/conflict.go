package availability

import (
	"time"

	"github.com/pawa-atelier/glowbook/internal/model"
)

// Overlaps reports whether the candidate [start, end) interval collides with
// any appointment in the set that still blocks its slot. Intervals are
// half-open: touching endpoints do not overlap.
//
// The set is expected to be pre-filtered to one stylist and one calendar day.
// Appointments in non-blocking states are skipped as a safety net in case the
// caller's filter was looser.
func Overlaps(start, end time.Time, existing []model.Appointment) bool {
	for _, a := range existing {
		if !a.Status.Blocks() {
			continue
		}
		if a.StartTime.Before(end) && a.EndTime.After(start) {
			return true
		}
	}
	return false
}

// IsSlotOccupied reports whether the slot's own window collides with an
// existing appointment. This is the grid-granularity check described in the
// package comment.
func IsSlotOccupied(slotStart, slotEnd time.Time, existing []model.Appointment) bool {
	return Overlaps(slotStart, slotEnd, existing)
}
