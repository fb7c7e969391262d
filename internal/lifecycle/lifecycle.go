// Package lifecycle is the appointment state machine. It is pure: callers
// apply the returned state and handle persistence themselves.
package lifecycle

import (
	"fmt"

	"github.com/pawa-atelier/glowbook/internal/model"
)

// Action is an operation attempted against an appointment.
type Action string

const (
	// ActionApprove confirms a pending appointment (stylist/admin only).
	ActionApprove Action = "approve"
	// ActionComplete finishes a confirmed appointment (assigned stylist).
	ActionComplete Action = "complete"
	// ActionCancel terminates a live appointment (administrative).
	ActionCancel Action = "cancel"
	// ActionEdit reschedules or modifies details. Edited bookings always
	// drop back to pending and require re-approval.
	ActionEdit Action = "edit"
)

// IllegalTransitionError reports an action not valid from the current state.
type IllegalTransitionError struct {
	From   model.Status
	Action Action
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an appointment in state %q", e.Action, e.From)
}

var transitions = map[Action]map[model.Status]model.Status{
	ActionApprove: {
		model.StatusPending: model.StatusConfirmed,
	},
	ActionComplete: {
		model.StatusConfirmed: model.StatusCompleted,
	},
	ActionCancel: {
		model.StatusPending:   model.StatusCancelled,
		model.StatusConfirmed: model.StatusCancelled,
	},
	ActionEdit: {
		model.StatusPending:   model.StatusPending,
		model.StatusConfirmed: model.StatusPending,
	},
}

// Transition returns the state that action leads to from the current state,
// or an IllegalTransitionError. Idempotent re-completion is handled by the
// caller before consulting the machine; here complete(completed) is illegal
// like any other bad transition.
func Transition(from model.Status, action Action) (model.Status, error) {
	next, ok := transitions[action][from]
	if !ok {
		return "", &IllegalTransitionError{From: from, Action: action}
	}
	return next, nil
}
