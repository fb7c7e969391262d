package lifecycle

import (
	"errors"
	"testing"

	"github.com/pawa-atelier/glowbook/internal/model"
)

func TestTransition_HappyPath(t *testing.T) {
	next, err := Transition(model.StatusPending, ActionApprove)
	if err != nil {
		t.Fatalf("approve(pending): %v", err)
	}
	if next != model.StatusConfirmed {
		t.Fatalf("approve(pending) = %q, want confirmed", next)
	}

	next, err = Transition(model.StatusConfirmed, ActionComplete)
	if err != nil {
		t.Fatalf("complete(confirmed): %v", err)
	}
	if next != model.StatusCompleted {
		t.Fatalf("complete(confirmed) = %q, want completed", next)
	}
}

func TestTransition_EditForcesPending(t *testing.T) {
	for _, from := range []model.Status{model.StatusPending, model.StatusConfirmed} {
		next, err := Transition(from, ActionEdit)
		if err != nil {
			t.Fatalf("edit(%s): %v", from, err)
		}
		if next != model.StatusPending {
			t.Fatalf("edit(%s) = %q, want pending", from, next)
		}
	}
}

func TestTransition_CancelTerminal(t *testing.T) {
	for _, from := range []model.Status{model.StatusPending, model.StatusConfirmed} {
		next, err := Transition(from, ActionCancel)
		if err != nil {
			t.Fatalf("cancel(%s): %v", from, err)
		}
		if next != model.StatusCancelled {
			t.Fatalf("cancel(%s) = %q, want cancelled", from, next)
		}
	}
	if _, err := Transition(model.StatusCancelled, ActionCancel); err == nil {
		t.Fatal("cancel(cancelled) should be illegal")
	}
	if _, err := Transition(model.StatusCompleted, ActionCancel); err == nil {
		t.Fatal("cancel(completed) should be illegal")
	}
}

func TestTransition_Illegal(t *testing.T) {
	cases := []struct {
		from   model.Status
		action Action
	}{
		{model.StatusPending, ActionComplete},
		{model.StatusConfirmed, ActionApprove},
		{model.StatusCompleted, ActionEdit},
		{model.StatusCancelled, ActionApprove},
		{model.StatusCancelled, ActionEdit},
	}
	for _, c := range cases {
		_, err := Transition(c.from, c.action)
		if err == nil {
			t.Fatalf("%s(%s) should be illegal", c.action, c.from)
		}
		var illegal *IllegalTransitionError
		if !errors.As(err, &illegal) {
			t.Fatalf("%s(%s) returned %T, want *IllegalTransitionError", c.action, c.from, err)
		}
		if illegal.From != c.from || illegal.Action != c.action {
			t.Fatalf("error carries %s/%s, want %s/%s", illegal.Action, illegal.From, c.action, c.from)
		}
	}
}
