// Package booking is the engine façade: it validates requests, consults the
// availability calculator and conflict detector, applies loyalty effects, and
// persists each operation as one consistent unit.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pawa-atelier/glowbook/internal/availability"
	"github.com/pawa-atelier/glowbook/internal/catalog"
	"github.com/pawa-atelier/glowbook/internal/identity"
	"github.com/pawa-atelier/glowbook/internal/lifecycle"
	"github.com/pawa-atelier/glowbook/internal/loyalty"
	"github.com/pawa-atelier/glowbook/internal/model"
	"github.com/pawa-atelier/glowbook/internal/outbox"
	"github.com/pawa-atelier/glowbook/internal/storage"
)

// Transactor scopes a function to one database transaction. *db.Pool is the
// production implementation.
type Transactor interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// AppointmentStore is the persistence surface the orchestrator writes
// through, implemented by storage.AppointmentRepository.
type AppointmentStore interface {
	Insert(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error
	Reschedule(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status) error
	Cancel(ctx context.Context, tx pgx.Tx, id, reason string) (time.Time, error)
	ListBlockingForStylistDay(ctx context.Context, stylistID string, dayStart, dayEnd time.Time) ([]model.Appointment, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]model.Appointment, error)
	ListByStylist(ctx context.Context, stylistID string, limit int) ([]model.Appointment, error)
}

// PointsLedger is the loyalty surface, implemented by loyalty.Ledger.
type PointsLedger interface {
	Redeem(ctx context.Context, tx pgx.Tx, customerID string) (loyalty.Result, error)
	Earn(ctx context.Context, tx pgx.Tx, appointmentID string) (loyalty.Result, error)
	Balance(ctx context.Context, customerID string) (int, error)
	Award() int
}

// EventSink receives domain events inside the operation's transaction,
// implemented by outbox.Repository.
type EventSink interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Orchestrator struct {
	pool    Transactor
	appts   AppointmentStore
	catalog catalog.Provider
	ledger  PointsLedger
	outbox  EventSink
	slots   *availability.Cache
	logger  *slog.Logger
	step    time.Duration
}

func NewOrchestrator(
	pool Transactor,
	appts AppointmentStore,
	catalogProvider catalog.Provider,
	ledger PointsLedger,
	outboxRepo EventSink,
	slotCache *availability.Cache,
	logger *slog.Logger,
	slotStep time.Duration,
) *Orchestrator {
	if slotStep <= 0 {
		slotStep = availability.DefaultStep
	}
	return &Orchestrator{
		pool:    pool,
		appts:   appts,
		catalog: catalogProvider,
		ledger:  ledger,
		outbox:  outboxRepo,
		slots:   slotCache,
		logger:  logger,
		step:    slotStep,
	}
}

// AvailableSlots returns the stylist's slot grid for the calendar day, with
// occupancy computed against the current persisted appointment set. When the
// set cannot be read the call fails rather than reporting slots as free.
func (o *Orchestrator) AvailableSlots(ctx context.Context, stylistID string, day time.Time) ([]availability.Slot, error) {
	if stylistID == "" {
		return nil, &ValidationError{Field: "stylist_id", Reason: "required"}
	}
	stylist, err := o.catalog.Stylist(ctx, stylistID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, &NotFoundError{Kind: "stylist", ID: stylistID}
		}
		return nil, &PersistenceError{Op: "load stylist", Err: err}
	}

	if cached, ok := o.slots.Get(ctx, stylistID, day); ok {
		return cached, nil
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	existing, err := o.appts.ListBlockingForStylistDay(ctx, stylistID, dayStart, dayEnd)
	if err != nil {
		// Fail closed: without the appointment set we cannot certify
		// anything as free.
		return nil, &PersistenceError{Op: "load appointments", Err: err}
	}

	slots := availability.AnnotateOccupancy(availability.ComputeSlots(stylist, day, o.step), existing)
	o.slots.Set(ctx, stylistID, day, slots)
	return slots, nil
}

// Book creates a new appointment in pending state. Redemption is fail-open:
// insufficient points degrade the booking to full price instead of rejecting
// it. The conflict re-check, the point deduction, the appointment insert, and
// the outbox events commit or roll back together.
func (o *Orchestrator) Book(ctx context.Context, actor identity.Actor, req Request) (model.Appointment, error) {
	if err := req.validate(); err != nil {
		return model.Appointment{}, err
	}
	if !actor.CanActFor(req.CustomerID) {
		return model.Appointment{}, &PermissionError{Action: "book for another customer"}
	}

	svc, stylist, err := o.resolve(ctx, req)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := o.withinWorkingHours(stylist, req.StartTime, svc.Duration()); err != nil {
		return model.Appointment{}, err
	}

	appt := model.Appointment{
		ID:         uuid.NewString(),
		CustomerID: req.CustomerID,
		StylistID:  req.StylistID,
		ServiceID:  req.ServiceID,
		StartTime:  req.StartTime,
		EndTime:    req.StartTime.Add(svc.Duration()),
		Status:     model.StatusPending,
	}

	err = o.pool.WithTx(ctx, func(tx pgx.Tx) error {
		redeemed := false
		var redeemRes loyalty.Result
		if req.RedeemPoints {
			redeemRes, err = o.ledger.Redeem(ctx, tx, req.CustomerID)
			if err != nil {
				return &PersistenceError{Op: "redeem points", Err: err}
			}
			redeemed = redeemRes.Applied
			if !redeemRes.Applied {
				o.logger.Info("redemption declined, booking at full price",
					"customer_id", req.CustomerID, "balance", redeemRes.NewBalance)
			}
		}
		appt.IsRedeemed = redeemed
		appt.TotalPrice = FinalPrice(svc, redeemed)

		if err := o.appts.Insert(ctx, tx, &appt); err != nil {
			if errors.Is(err, storage.ErrOverlap) {
				return &SlotConflictError{StylistID: appt.StylistID, Start: appt.StartTime, End: appt.EndTime}
			}
			return &PersistenceError{Op: "create appointment", Err: err}
		}

		if err := o.emitAppointment(ctx, tx, outbox.TopicAppointmentBooked, appt); err != nil {
			return err
		}
		if redeemed {
			if err := o.emitPoints(ctx, tx, outbox.TopicPointsRedeemed, appt, redeemRes.NewBalance); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Appointment{}, o.wrapTxErr("book", err)
	}

	o.slots.Invalidate(ctx, appt.StylistID, appt.StartTime)
	return appt, nil
}

// Rebook modifies an existing appointment and always resets it to pending:
// edited bookings require re-approval regardless of their prior state.
// Redemption already applied to the appointment is kept; a newly requested
// redemption on a not-yet-redeemed appointment goes through the ledger.
func (o *Orchestrator) Rebook(ctx context.Context, actor identity.Actor, appointmentID string, req Request) (model.Appointment, error) {
	if appointmentID == "" {
		return model.Appointment{}, &ValidationError{Field: "appointment_id", Reason: "required"}
	}
	if err := req.validate(); err != nil {
		return model.Appointment{}, err
	}

	svc, stylist, err := o.resolve(ctx, req)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := o.withinWorkingHours(stylist, req.StartTime, svc.Duration()); err != nil {
		return model.Appointment{}, err
	}

	var updated model.Appointment
	var prevStylist string
	var prevStart time.Time
	err = o.pool.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := o.appts.GetForUpdate(ctx, tx, appointmentID)
		if err != nil {
			if storage.IsNotFound(err) {
				return &NotFoundError{Kind: "appointment", ID: appointmentID}
			}
			return &PersistenceError{Op: "load appointment", Err: err}
		}
		if !actor.CanActFor(current.CustomerID) {
			return &PermissionError{Action: "edit this appointment"}
		}
		if _, err := lifecycle.Transition(current.Status, lifecycle.ActionEdit); err != nil {
			return err
		}
		prevStylist, prevStart = current.StylistID, current.StartTime

		redeemed := current.IsRedeemed
		var redeemRes loyalty.Result
		if req.RedeemPoints && !redeemed {
			redeemRes, err = o.ledger.Redeem(ctx, tx, current.CustomerID)
			if err != nil {
				return &PersistenceError{Op: "redeem points", Err: err}
			}
			redeemed = redeemRes.Applied
		}

		updated = current
		updated.StylistID = req.StylistID
		updated.ServiceID = req.ServiceID
		updated.StartTime = req.StartTime
		updated.EndTime = req.StartTime.Add(svc.Duration())
		updated.Status = model.StatusPending
		updated.IsRedeemed = redeemed
		updated.TotalPrice = FinalPrice(svc, redeemed)

		if err := o.appts.Reschedule(ctx, tx, &updated); err != nil {
			if errors.Is(err, storage.ErrOverlap) {
				return &SlotConflictError{StylistID: updated.StylistID, Start: updated.StartTime, End: updated.EndTime}
			}
			return &PersistenceError{Op: "reschedule appointment", Err: err}
		}

		if err := o.emitAppointment(ctx, tx, outbox.TopicAppointmentRescheduled, updated); err != nil {
			return err
		}
		if redeemRes.Applied {
			if err := o.emitPoints(ctx, tx, outbox.TopicPointsRedeemed, updated, redeemRes.NewBalance); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Appointment{}, o.wrapTxErr("rebook", err)
	}

	o.slots.Invalidate(ctx, prevStylist, prevStart)
	o.slots.Invalidate(ctx, updated.StylistID, updated.StartTime)
	return updated, nil
}

// Approve confirms a pending appointment. Stylist/admin only.
func (o *Orchestrator) Approve(ctx context.Context, actor identity.Actor, appointmentID string) (model.Appointment, error) {
	if !actor.CanApprove() {
		return model.Appointment{}, &PermissionError{Action: "approve appointments"}
	}

	var appt model.Appointment
	err := o.pool.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := o.appts.GetForUpdate(ctx, tx, appointmentID)
		if err != nil {
			if storage.IsNotFound(err) {
				return &NotFoundError{Kind: "appointment", ID: appointmentID}
			}
			return &PersistenceError{Op: "load appointment", Err: err}
		}
		next, err := lifecycle.Transition(current.Status, lifecycle.ActionApprove)
		if err != nil {
			return err
		}
		if err := o.appts.UpdateStatus(ctx, tx, appointmentID, next); err != nil {
			return &PersistenceError{Op: "update status", Err: err}
		}
		current.Status = next
		appt = current
		return o.emitAppointment(ctx, tx, outbox.TopicAppointmentApproved, appt)
	})
	if err != nil {
		return model.Appointment{}, o.wrapTxErr("approve", err)
	}
	return appt, nil
}

// Complete finishes a confirmed appointment and awards loyalty points exactly
// once. Completing an already-completed appointment is a no-op, not an error,
// and never re-awards points.
func (o *Orchestrator) Complete(ctx context.Context, actor identity.Actor, appointmentID string) (model.Appointment, error) {
	var appt model.Appointment
	err := o.pool.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := o.appts.GetForUpdate(ctx, tx, appointmentID)
		if err != nil {
			if storage.IsNotFound(err) {
				return &NotFoundError{Kind: "appointment", ID: appointmentID}
			}
			return &PersistenceError{Op: "load appointment", Err: err}
		}
		if !actor.CanComplete(current.StylistID) {
			return &PermissionError{Action: "complete this appointment"}
		}
		if current.Status == model.StatusCompleted {
			appt = current
			return nil
		}
		next, err := lifecycle.Transition(current.Status, lifecycle.ActionComplete)
		if err != nil {
			return err
		}
		if err := o.appts.UpdateStatus(ctx, tx, appointmentID, next); err != nil {
			return &PersistenceError{Op: "update status", Err: err}
		}
		current.Status = next

		earnRes, err := o.ledger.Earn(ctx, tx, appointmentID)
		if err != nil {
			return &PersistenceError{Op: "award points", Err: err}
		}
		if earnRes.Applied {
			current.PointsEarned = o.ledger.Award()
			if err := o.emitPoints(ctx, tx, outbox.TopicPointsEarned, current, earnRes.NewBalance); err != nil {
				return err
			}
		}
		appt = current
		return o.emitAppointment(ctx, tx, outbox.TopicAppointmentCompleted, appt)
	})
	if err != nil {
		return model.Appointment{}, o.wrapTxErr("complete", err)
	}
	return appt, nil
}

// Cancel terminates a live appointment. Administrative action; cancelling an
// already-cancelled appointment returns it unchanged.
func (o *Orchestrator) Cancel(ctx context.Context, actor identity.Actor, appointmentID, reason string) (model.Appointment, error) {
	if !actor.CanApprove() {
		return model.Appointment{}, &PermissionError{Action: "cancel appointments"}
	}

	var appt model.Appointment
	err := o.pool.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := o.appts.GetForUpdate(ctx, tx, appointmentID)
		if err != nil {
			if storage.IsNotFound(err) {
				return &NotFoundError{Kind: "appointment", ID: appointmentID}
			}
			return &PersistenceError{Op: "load appointment", Err: err}
		}
		if current.Status == model.StatusCancelled {
			appt = current
			return nil
		}
		if _, err := lifecycle.Transition(current.Status, lifecycle.ActionCancel); err != nil {
			return err
		}
		cancelledAt, err := o.appts.Cancel(ctx, tx, appointmentID, reason)
		if err != nil {
			return &PersistenceError{Op: "cancel appointment", Err: err}
		}
		current.Status = model.StatusCancelled
		current.CancelledAt = &cancelledAt
		current.CancelReason = reason
		appt = current
		return o.emitAppointment(ctx, tx, outbox.TopicAppointmentCancelled, appt)
	})
	if err != nil {
		return model.Appointment{}, o.wrapTxErr("cancel", err)
	}

	o.slots.Invalidate(ctx, appt.StylistID, appt.StartTime)
	return appt, nil
}

// LoyaltyBalance reads a customer's current point balance.
func (o *Orchestrator) LoyaltyBalance(ctx context.Context, actor identity.Actor, customerID string) (int, error) {
	if customerID == "" {
		return 0, &ValidationError{Field: "customer_id", Reason: "required"}
	}
	if !actor.CanActFor(customerID) && actor.Role != identity.RoleStylist {
		return 0, &PermissionError{Action: "read another customer's balance"}
	}
	balance, err := o.ledger.Balance(ctx, customerID)
	if err != nil {
		return 0, &PersistenceError{Op: "read balance", Err: err}
	}
	return balance, nil
}

// History lists appointments. Callers without explicit filters get their own
// history (stylists their schedule, customers their bookings).
func (o *Orchestrator) History(ctx context.Context, actor identity.Actor, customerID, stylistID string, limit int) ([]model.Appointment, error) {
	if customerID == "" && stylistID == "" {
		if actor.Role == identity.RoleStylist {
			stylistID = actor.ID
		} else {
			customerID = actor.ID
		}
	}

	switch {
	case customerID != "":
		if !actor.CanActFor(customerID) {
			return nil, &PermissionError{Action: "list another customer's appointments"}
		}
		appts, err := o.appts.ListByCustomer(ctx, customerID, limit)
		if err != nil {
			return nil, &PersistenceError{Op: "list appointments", Err: err}
		}
		return appts, nil
	default:
		if actor.Role != identity.RoleAdmin && actor.ID != stylistID {
			return nil, &PermissionError{Action: "list another stylist's schedule"}
		}
		appts, err := o.appts.ListByStylist(ctx, stylistID, limit)
		if err != nil {
			return nil, &PersistenceError{Op: "list appointments", Err: err}
		}
		return appts, nil
	}
}

func (o *Orchestrator) resolve(ctx context.Context, req Request) (model.Service, model.StylistProfile, error) {
	svc, err := o.catalog.Service(ctx, req.ServiceID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Service{}, model.StylistProfile{}, &NotFoundError{Kind: "service", ID: req.ServiceID}
		}
		return model.Service{}, model.StylistProfile{}, &PersistenceError{Op: "load service", Err: err}
	}
	stylist, err := o.catalog.Stylist(ctx, req.StylistID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Service{}, model.StylistProfile{}, &NotFoundError{Kind: "stylist", ID: req.StylistID}
		}
		return model.Service{}, model.StylistProfile{}, &PersistenceError{Op: "load stylist", Err: err}
	}
	return svc, stylist, nil
}

func (o *Orchestrator) withinWorkingHours(stylist model.StylistProfile, start time.Time, duration time.Duration) error {
	if stylist.DayOff(start.Weekday()) {
		return &ValidationError{Field: "start_time", Reason: "stylist is off that day"}
	}
	windowStart, windowEnd, err := stylist.Hours().Window(start)
	if err != nil {
		return &PersistenceError{Op: "parse working hours", Err: err}
	}
	if start.Before(windowStart) || start.Add(duration).After(windowEnd) {
		return &ValidationError{Field: "start_time", Reason: "outside stylist working hours"}
	}
	return nil
}

func (o *Orchestrator) emitAppointment(ctx context.Context, tx pgx.Tx, topic string, appt model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"customer_id":    appt.CustomerID,
		"stylist_id":     appt.StylistID,
		"service_id":     appt.ServiceID,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
		"status":         string(appt.Status),
		"total_price":    appt.TotalPrice,
		"is_redeemed":    appt.IsRedeemed,
	})
	if err != nil {
		return &PersistenceError{Op: "build event payload", Err: err}
	}
	if err := o.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     topic,
		Payload:       payload,
	}); err != nil {
		return &PersistenceError{Op: "write outbox event", Err: err}
	}
	return nil
}

func (o *Orchestrator) emitPoints(ctx context.Context, tx pgx.Tx, topic string, appt model.Appointment, newBalance int) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"customer_id":    appt.CustomerID,
		"new_balance":    newBalance,
	})
	if err != nil {
		return &PersistenceError{Op: "build event payload", Err: err}
	}
	if err := o.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "customer_profile",
		AggregateID:   appt.CustomerID,
		EventType:     topic,
		Payload:       payload,
	}); err != nil {
		return &PersistenceError{Op: "write outbox event", Err: err}
	}
	return nil
}

// wrapTxErr keeps typed domain errors intact and wraps anything else
// (begin/commit failures) as a persistence error.
func (o *Orchestrator) wrapTxErr(op string, err error) error {
	switch ErrorKind(err) {
	case "persistence":
		var pe *PersistenceError
		if errors.As(err, &pe) {
			return err
		}
		return &PersistenceError{Op: op, Err: err}
	default:
		return err
	}
}
