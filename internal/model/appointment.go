package model

import "time"

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus returns the Status for raw, reporting whether it is one of the
// four known states.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return Status(raw), true
	}
	return "", false
}

// Blocks reports whether an appointment in this state holds its time slot.
// Cancelled appointments free the slot; completed ones are in the past.
func (s Status) Blocks() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Appointment struct {
	ID           string
	CustomerID   string
	StylistID    string
	ServiceID    string
	StartTime    time.Time
	EndTime      time.Time
	Status       Status
	TotalPrice   float64
	IsRedeemed   bool
	PointsEarned int
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
}
