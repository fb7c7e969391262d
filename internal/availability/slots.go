// Package availability computes the bookable time grid for a stylist's day
// and decides interval conflicts.
//
// Occupancy is judged against each slot's own [start, start+step) window,
// not the full service duration. A slot can therefore show free even though
// booking a long service there would collide with a later appointment; the
// write-time conflict check is what actually guards the calendar. Keep this
// in mind before changing the grid semantics.
package availability

import (
	"iter"
	"time"

	"github.com/pawa-atelier/glowbook/internal/model"
)

// DefaultStep is the slot granularity used when none is configured.
const DefaultStep = 30 * time.Minute

// Period is the presentation bucket a slot falls into. It has no bearing on
// availability.
type Period string

const (
	PeriodMorning   Period = "morning"   // before 12:00
	PeriodAfternoon Period = "afternoon" // 12:00-16:59
	PeriodEvening   Period = "evening"   // 17:00 onward
)

// PeriodOf buckets a slot start time by hour of day.
func PeriodOf(t time.Time) Period {
	switch h := t.Hour(); {
	case h < 12:
		return PeriodMorning
	case h < 17:
		return PeriodAfternoon
	default:
		return PeriodEvening
	}
}

// Slot is a derived candidate window. It is never persisted.
type Slot struct {
	Start    time.Time `json:"start_time"`
	End      time.Time `json:"end_time"`
	Period   Period    `json:"period"`
	Occupied bool      `json:"is_occupied"`
}

// ComputeSlots yields the candidate grid for a stylist on the given calendar
// day, walking the working-hours window in step increments. A day in the
// stylist's days off yields nothing. The last slot's end never exceeds the
// working-hours end. The sequence is finite, restartable, and side-effect
// free; occupancy is left false for the caller to fill in.
func ComputeSlots(stylist model.StylistProfile, day time.Time, step time.Duration) iter.Seq[Slot] {
	if step <= 0 {
		step = DefaultStep
	}
	return func(yield func(Slot) bool) {
		if stylist.DayOff(day.Weekday()) {
			return
		}
		windowStart, windowEnd, err := stylist.Hours().Window(day)
		if err != nil {
			return
		}
		for t := windowStart; !t.Add(step).After(windowEnd); t = t.Add(step) {
			s := Slot{Start: t, End: t.Add(step), Period: PeriodOf(t)}
			if !yield(s) {
				return
			}
		}
	}
}

// AnnotateOccupancy collects the grid into a slice with each slot's Occupied
// flag computed against the existing appointment set. The set must already be
// scoped to the same stylist and day, with cancelled appointments excluded.
func AnnotateOccupancy(grid iter.Seq[Slot], existing []model.Appointment) []Slot {
	slots := []Slot{}
	for s := range grid {
		s.Occupied = IsSlotOccupied(s.Start, s.End, existing)
		slots = append(slots, s)
	}
	return slots
}
