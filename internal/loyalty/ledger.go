// Package loyalty maintains the per-customer glow-point balance. Both
// mutations are single conditional SQL statements so concurrent requests
// cannot over-spend or double-award; callers run them inside the same
// transaction as the appointment write they belong to.
package loyalty

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/pawa-atelier/glowbook/libs/db"
)

const (
	// DefaultRedeemCost is the points spent per redemption.
	DefaultRedeemCost = 100
	// DefaultAward is the points earned when an appointment completes.
	DefaultAward = 5
)

type Ledger struct {
	pool  *db.Pool
	cost  int
	award int
}

// Result reports whether the conditional mutation applied and the balance
// after the call. Applied=false is informational, never an error: the caller
// decides what a declined redemption means (for booking, full price).
type Result struct {
	Applied    bool
	NewBalance int
}

func NewLedger(pool *db.Pool, redeemCost, award int) *Ledger {
	if redeemCost <= 0 {
		redeemCost = DefaultRedeemCost
	}
	if award <= 0 {
		award = DefaultAward
	}
	return &Ledger{pool: pool, cost: redeemCost, award: award}
}

func (l *Ledger) RedeemCost() int { return l.cost }
func (l *Ledger) Award() int      { return l.award }

// Redeem deducts the redemption cost if and only if the balance covers it,
// as one conditional decrement. Two concurrent redemptions for a customer
// holding a single redemption's worth of points cannot both apply. The
// balance never goes negative; a customer with no profile row has balance 0.
func (l *Ledger) Redeem(ctx context.Context, tx pgx.Tx, customerID string) (Result, error) {
	var balance int
	err := tx.QueryRow(ctx, `
		UPDATE customer_profiles
		SET glow_points = glow_points - $2,
			updated_at = now()
		WHERE id = $1 AND glow_points >= $2
		RETURNING glow_points
	`, customerID, l.cost).Scan(&balance)
	if err == nil {
		return Result{Applied: true, NewBalance: balance}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Result{}, err
	}

	balance, err = l.balance(ctx, tx, customerID)
	if err != nil {
		return Result{}, err
	}
	return Result{Applied: false, NewBalance: balance}, nil
}

// Earn credits the completion award exactly once per appointment: the
// appointment is stamped and the profile credited in the caller's
// transaction, and the stamp's points_earned = 0 predicate makes a second
// call a no-op.
func (l *Ledger) Earn(ctx context.Context, tx pgx.Tx, appointmentID string) (Result, error) {
	var customerID string
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET points_earned = $2
		WHERE id = $1 AND points_earned = 0
		RETURNING customer_id
	`, appointmentID, l.award).Scan(&customerID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already credited (or appointment unknown); report current state.
		balance, berr := l.balanceForAppointment(ctx, tx, appointmentID)
		if berr != nil {
			return Result{}, berr
		}
		return Result{Applied: false, NewBalance: balance}, nil
	}
	if err != nil {
		return Result{}, err
	}

	var balance int
	err = tx.QueryRow(ctx, `
		INSERT INTO customer_profiles (id, glow_points)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET glow_points = customer_profiles.glow_points + EXCLUDED.glow_points,
			updated_at = now()
		RETURNING glow_points
	`, customerID, l.award).Scan(&balance)
	if err != nil {
		return Result{}, err
	}
	return Result{Applied: true, NewBalance: balance}, nil
}

// Balance reads the current point balance outside any transaction. Missing
// profiles read as zero.
func (l *Ledger) Balance(ctx context.Context, customerID string) (int, error) {
	var balance int
	err := l.pool.QueryRow(ctx, `
		SELECT COALESCE((SELECT glow_points FROM customer_profiles WHERE id = $1), 0)
	`, customerID).Scan(&balance)
	return balance, err
}

func (l *Ledger) balance(ctx context.Context, tx pgx.Tx, customerID string) (int, error) {
	var balance int
	err := tx.QueryRow(ctx, `
		SELECT COALESCE((SELECT glow_points FROM customer_profiles WHERE id = $1), 0)
	`, customerID).Scan(&balance)
	return balance, err
}

func (l *Ledger) balanceForAppointment(ctx context.Context, tx pgx.Tx, appointmentID string) (int, error) {
	var balance int
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(p.glow_points, 0)
		FROM appointments a
		LEFT JOIN customer_profiles p ON p.id = a.customer_id
		WHERE a.id = $1
	`, appointmentID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}
