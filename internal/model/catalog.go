package model

import (
	"fmt"
	"time"
)

// Service is a bookable catalog entry. Owned by the catalog collaborator;
// read-only inside the engine.
type Service struct {
	ID              string
	Name            string
	DurationMinutes int
	Price           float64
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// WorkingHours is a stylist's daily window as wall-clock times ("15:04").
type WorkingHours struct {
	Start string
	End   string
}

// Window anchors the working hours onto a calendar day, in that day's
// location. The returned interval is half-open.
func (w WorkingHours) Window(day time.Time) (time.Time, time.Time, error) {
	start, err := time.Parse("15:04", w.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid working hours start %q: %w", w.Start, err)
	}
	end, err := time.Parse("15:04", w.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid working hours end %q: %w", w.End, err)
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), start.Hour(), start.Minute(), 0, 0, day.Location())
	to := time.Date(day.Year(), day.Month(), day.Day(), end.Hour(), end.Minute(), 0, 0, day.Location())
	return from, to, nil
}

// DefaultWorkingHours applies to stylists whose profile carries no hours.
var DefaultWorkingHours = WorkingHours{Start: "09:00", End: "18:00"}

// StylistProfile is the catalog view of a service provider. Read-only here.
type StylistProfile struct {
	ID           string
	Name         string
	WorkingHours WorkingHours
	DaysOff      []time.Weekday
}

// Hours returns the profile's working hours, falling back to the default
// window when the profile has none.
func (p StylistProfile) Hours() WorkingHours {
	if p.WorkingHours.Start == "" || p.WorkingHours.End == "" {
		return DefaultWorkingHours
	}
	return p.WorkingHours
}

func (p StylistProfile) DayOff(w time.Weekday) bool {
	for _, d := range p.DaysOff {
		if d == w {
			return true
		}
	}
	return false
}

// CustomerProfile carries the per-customer loyalty balance. GlowPoints is
// mutated only by the loyalty ledger and never goes negative.
type CustomerProfile struct {
	ID         string
	GlowPoints int
}
