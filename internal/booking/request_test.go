package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/pawa-atelier/glowbook/internal/lifecycle"
	"github.com/pawa-atelier/glowbook/internal/model"
)

func TestRequestValidate_MissingFields(t *testing.T) {
	start := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		req   Request
		field string
	}{
		{"missing customer", Request{StylistID: "s", ServiceID: "v", StartTime: start}, "customer_id"},
		{"missing stylist", Request{CustomerID: "c", ServiceID: "v", StartTime: start}, "stylist_id"},
		{"missing service", Request{CustomerID: "c", StylistID: "s", StartTime: start}, "service_id"},
		{"missing start", Request{CustomerID: "c", StylistID: "s", ServiceID: "v"}, "start_time"},
	}
	for _, c := range cases {
		err := c.req.validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", c.name)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: got %T, want *ValidationError", c.name, err)
		}
		if ve.Field != c.field {
			t.Fatalf("%s: error on field %q, want %q", c.name, ve.Field, c.field)
		}
	}

	ok := Request{CustomerID: "c", StylistID: "s", ServiceID: "v", StartTime: start}
	if err := ok.validate(); err != nil {
		t.Fatalf("complete request should validate: %v", err)
	}
}

func TestFinalPrice(t *testing.T) {
	svc := model.Service{Price: 2500}
	if got := FinalPrice(svc, false); got != 2500 {
		t.Fatalf("full price = %v, want 2500", got)
	}
	if got := FinalPrice(svc, true); got != 2000 {
		t.Fatalf("redeemed price = %v, want 2000 (20%% off)", got)
	}
}

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{&ValidationError{Field: "x", Reason: "required"}, "validation"},
		{&SlotConflictError{}, "slot_conflict"},
		{&NotFoundError{Kind: "appointment", ID: "a"}, "not_found"},
		{&PermissionError{Action: "approve"}, "permission"},
		{&lifecycle.IllegalTransitionError{From: model.StatusPending, Action: lifecycle.ActionComplete}, "illegal_transition"},
		{&PersistenceError{Op: "write", Err: errors.New("boom")}, "persistence"},
		{errors.New("unclassified"), "persistence"},
	}
	for _, c := range cases {
		if got := ErrorKind(c.err); got != c.kind {
			t.Fatalf("ErrorKind(%v) = %q, want %q", c.err, got, c.kind)
		}
	}
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &PersistenceError{Op: "create appointment", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatal("PersistenceError should unwrap to its cause")
	}
}
