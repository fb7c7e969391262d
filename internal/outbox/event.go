package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (one topic per event type).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Topics emitted by the scheduling and loyalty engine.
const (
	TopicAppointmentBooked      = "appointment.booked.v1"
	TopicAppointmentRescheduled = "appointment.rescheduled.v1"
	TopicAppointmentApproved    = "appointment.approved.v1"
	TopicAppointmentCompleted   = "appointment.completed.v1"
	TopicAppointmentCancelled   = "appointment.cancelled.v1"
	TopicPointsRedeemed         = "loyalty.points_redeemed.v1"
	TopicPointsEarned           = "loyalty.points_earned.v1"
)
