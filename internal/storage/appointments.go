package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pawa-atelier/glowbook/internal/model"
	"github.com/pawa-atelier/glowbook/libs/db"
)

// ErrOverlap means the conditional write found a live appointment holding
// the requested interval.
var ErrOverlap = errors.New("interval overlaps a live appointment")

const apptColumns = `
	id::text, customer_id::text, stylist_id::text, service_id::text,
	start_time, end_time, status, total_price, is_redeemed, points_earned,
	cancelled_at, COALESCE(cancellation_reason, ''), created_at`

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Insert persists a new appointment only if no pending/confirmed appointment
// for the same stylist overlaps it. The predicate and the insert are one
// statement; the table's exclusion constraint backstops the race between two
// inserts that both pass the predicate.
func (r *AppointmentRepository) Insert(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, customer_id, stylist_id, service_id, start_time, end_time,
			 status, total_price, is_redeemed, points_earned)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, 0
		WHERE NOT EXISTS (
			SELECT 1 FROM appointments
			WHERE stylist_id = $3
				AND status IN ('pending', 'confirmed')
				AND start_time < $6
				AND end_time > $5
		)
		RETURNING created_at
	`, appt.ID, appt.CustomerID, appt.StylistID, appt.ServiceID,
		appt.StartTime, appt.EndTime, string(appt.Status), appt.TotalPrice, appt.IsRedeemed).
		Scan(&appt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || IsExclusionConflict(err) {
			return ErrOverlap
		}
		return err
	}
	return nil
}

// Reschedule moves an existing appointment to new details and resets it to
// pending, only if the new interval is free of other live appointments.
func (r *AppointmentRepository) Reschedule(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET stylist_id = $2,
			service_id = $3,
			start_time = $4,
			end_time = $5,
			status = 'pending',
			total_price = $6,
			is_redeemed = $7
		WHERE id = $1
			AND NOT EXISTS (
				SELECT 1 FROM appointments
				WHERE stylist_id = $2
					AND id <> $1
					AND status IN ('pending', 'confirmed')
					AND start_time < $5
					AND end_time > $4
			)
	`, appt.ID, appt.StylistID, appt.ServiceID, appt.StartTime, appt.EndTime,
		appt.TotalPrice, appt.IsRedeemed)
	if err != nil {
		if IsExclusionConflict(err) {
			return ErrOverlap
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOverlap
	}
	return nil
}

// GetForUpdate loads an appointment and row-locks it for the transaction.
func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2
		WHERE id = $1
	`, id, string(status))
	return err
}

// Cancel marks the appointment cancelled with a reason and timestamp.
func (r *AppointmentRepository) Cancel(ctx context.Context, tx pgx.Tx, id, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $2
		WHERE id = $1
		RETURNING cancelled_at
	`, id, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

// ListBlockingForStylistDay returns the pending/confirmed appointments that
// occupy the stylist's calendar within [dayStart, dayEnd).
func (r *AppointmentRepository) ListBlockingForStylistDay(ctx context.Context, stylistID string, dayStart, dayEnd time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE stylist_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, stylistID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

// ListByCustomer returns a customer's appointment history, newest first.
func (r *AppointmentRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE customer_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

// ListByStylist returns a stylist's schedule, newest first.
func (r *AppointmentRepository) ListByStylist(ctx context.Context, stylistID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE stylist_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, stylistID, limit)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	var cancelledAt *time.Time
	err := row.Scan(
		&appt.ID,
		&appt.CustomerID,
		&appt.StylistID,
		&appt.ServiceID,
		&appt.StartTime,
		&appt.EndTime,
		&status,
		&appt.TotalPrice,
		&appt.IsRedeemed,
		&appt.PointsEarned,
		&cancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	appt.CancelledAt = cancelledAt
	return appt, nil
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// IsExclusionConflict reports a Postgres exclusion-constraint violation, the
// DB-level guard against two overlapping inserts racing past the predicate.
func IsExclusionConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
