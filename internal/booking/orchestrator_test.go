package booking

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pawa-atelier/glowbook/internal/identity"
	"github.com/pawa-atelier/glowbook/internal/loyalty"
	"github.com/pawa-atelier/glowbook/internal/model"
	"github.com/pawa-atelier/glowbook/internal/outbox"
)

type fakeTxer struct{}

func (fakeTxer) WithTx(_ context.Context, fn func(pgx.Tx) error) error {
	return fn(nil)
}

type fakeStore struct {
	byID      map[string]model.Appointment
	inserted  []model.Appointment
	createdAt time.Time
}

func (s *fakeStore) Insert(_ context.Context, _ pgx.Tx, appt *model.Appointment) error {
	appt.CreatedAt = s.createdAt
	s.inserted = append(s.inserted, *appt)
	return nil
}

func (s *fakeStore) Reschedule(_ context.Context, _ pgx.Tx, appt *model.Appointment) error {
	s.byID[appt.ID] = *appt
	return nil
}

func (s *fakeStore) GetForUpdate(_ context.Context, _ pgx.Tx, id string) (model.Appointment, error) {
	a, ok := s.byID[id]
	if !ok {
		return model.Appointment{}, pgx.ErrNoRows
	}
	return a, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, _ pgx.Tx, id string, status model.Status) error {
	a := s.byID[id]
	a.Status = status
	s.byID[id] = a
	return nil
}

func (s *fakeStore) Cancel(_ context.Context, _ pgx.Tx, id, reason string) (time.Time, error) {
	a := s.byID[id]
	a.Status = model.StatusCancelled
	a.CancelReason = reason
	s.byID[id] = a
	return s.createdAt, nil
}

func (s *fakeStore) ListBlockingForStylistDay(_ context.Context, _ string, _, _ time.Time) ([]model.Appointment, error) {
	return nil, nil
}

func (s *fakeStore) ListByCustomer(_ context.Context, _ string, _ int) ([]model.Appointment, error) {
	return nil, nil
}

func (s *fakeStore) ListByStylist(_ context.Context, _ string, _ int) ([]model.Appointment, error) {
	return nil, nil
}

type fakeLedger struct {
	redeem      loyalty.Result
	earn        loyalty.Result
	redeemCalls int
	earnCalls   int
}

func (l *fakeLedger) Redeem(_ context.Context, _ pgx.Tx, _ string) (loyalty.Result, error) {
	l.redeemCalls++
	return l.redeem, nil
}

func (l *fakeLedger) Earn(_ context.Context, _ pgx.Tx, _ string) (loyalty.Result, error) {
	l.earnCalls++
	return l.earn, nil
}

func (l *fakeLedger) Balance(_ context.Context, _ string) (int, error) {
	return l.redeem.NewBalance, nil
}

func (l *fakeLedger) Award() int { return 5 }

type fakeSink struct {
	topics []string
}

func (s *fakeSink) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	s.topics = append(s.topics, evt.EventType)
	return nil
}

type fakeCatalog struct{}

func (fakeCatalog) Service(_ context.Context, id string) (model.Service, error) {
	return model.Service{ID: id, Name: "Gloss & Glow", DurationMinutes: 45, Price: 2500}, nil
}

func (fakeCatalog) Stylist(_ context.Context, id string) (model.StylistProfile, error) {
	return model.StylistProfile{
		ID:           id,
		Name:         "Aya",
		WorkingHours: model.WorkingHours{Start: "09:00", End: "18:00"},
	}, nil
}

var bookStart = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

func newTestOrchestrator(store *fakeStore, ledger *fakeLedger, sink *fakeSink) *Orchestrator {
	return NewOrchestrator(fakeTxer{}, store, fakeCatalog{}, ledger, sink, nil,
		slog.New(slog.DiscardHandler), 30*time.Minute)
}

func TestBook_InsufficientPointsBooksFullPrice(t *testing.T) {
	store := &fakeStore{createdAt: bookStart.Add(-time.Hour)}
	ledger := &fakeLedger{redeem: loyalty.Result{Applied: false, NewBalance: 40}}
	sink := &fakeSink{}
	o := newTestOrchestrator(store, ledger, sink)

	actor := identity.Actor{ID: "cust-1", Role: identity.RoleCustomer}
	appt, err := o.Book(context.Background(), actor, Request{
		CustomerID:   "cust-1",
		StylistID:    "sty-1",
		ServiceID:    "svc-1",
		StartTime:    bookStart,
		RedeemPoints: true,
	})
	if err != nil {
		t.Fatalf("declined redemption must not fail the booking: %v", err)
	}
	if appt.IsRedeemed {
		t.Fatal("is_redeemed must stay false when the decrement did not apply")
	}
	if appt.TotalPrice != 2500 {
		t.Fatalf("total price = %v, want full price 2500", appt.TotalPrice)
	}
	if ledger.redeemCalls != 1 {
		t.Fatalf("redeem called %d times, want 1", ledger.redeemCalls)
	}
	if len(sink.topics) != 1 || sink.topics[0] != outbox.TopicAppointmentBooked {
		t.Fatalf("events = %v, want only %s", sink.topics, outbox.TopicAppointmentBooked)
	}
	if !appt.CreatedAt.Equal(store.createdAt) {
		t.Fatalf("created_at = %s, want the store's timestamp %s", appt.CreatedAt, store.createdAt)
	}
}

func TestBook_RedemptionAppliesDiscount(t *testing.T) {
	store := &fakeStore{createdAt: bookStart.Add(-time.Hour)}
	ledger := &fakeLedger{redeem: loyalty.Result{Applied: true, NewBalance: 20}}
	sink := &fakeSink{}
	o := newTestOrchestrator(store, ledger, sink)

	actor := identity.Actor{ID: "cust-1", Role: identity.RoleCustomer}
	appt, err := o.Book(context.Background(), actor, Request{
		CustomerID:   "cust-1",
		StylistID:    "sty-1",
		ServiceID:    "svc-1",
		StartTime:    bookStart,
		RedeemPoints: true,
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if !appt.IsRedeemed || appt.TotalPrice != 2000 {
		t.Fatalf("got redeemed=%v price=%v, want redeemed at 2000", appt.IsRedeemed, appt.TotalPrice)
	}
	if len(sink.topics) != 2 ||
		sink.topics[0] != outbox.TopicAppointmentBooked ||
		sink.topics[1] != outbox.TopicPointsRedeemed {
		t.Fatalf("events = %v, want booked then points_redeemed", sink.topics)
	}
}

func TestComplete_AwardsPointsOnce(t *testing.T) {
	store := &fakeStore{
		byID: map[string]model.Appointment{
			"appt-1": {
				ID:         "appt-1",
				CustomerID: "cust-1",
				StylistID:  "sty-1",
				ServiceID:  "svc-1",
				StartTime:  bookStart,
				EndTime:    bookStart.Add(45 * time.Minute),
				Status:     model.StatusConfirmed,
				TotalPrice: 2500,
			},
		},
	}
	ledger := &fakeLedger{earn: loyalty.Result{Applied: true, NewBalance: 45}}
	sink := &fakeSink{}
	o := newTestOrchestrator(store, ledger, sink)

	actor := identity.Actor{ID: "sty-1", Role: identity.RoleStylist}
	appt, err := o.Complete(context.Background(), actor, "appt-1")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if appt.Status != model.StatusCompleted {
		t.Fatalf("status = %s, want completed", appt.Status)
	}
	if appt.PointsEarned != 5 {
		t.Fatalf("points_earned = %d, want 5", appt.PointsEarned)
	}
	if ledger.earnCalls != 1 {
		t.Fatalf("earn called %d times, want 1", ledger.earnCalls)
	}
	if len(sink.topics) != 2 ||
		sink.topics[0] != outbox.TopicPointsEarned ||
		sink.topics[1] != outbox.TopicAppointmentCompleted {
		t.Fatalf("events = %v, want points_earned then completed", sink.topics)
	}
}

func TestComplete_AlreadyCompletedIsNoOp(t *testing.T) {
	completed := model.Appointment{
		ID:           "appt-1",
		CustomerID:   "cust-1",
		StylistID:    "sty-1",
		ServiceID:    "svc-1",
		StartTime:    bookStart,
		EndTime:      bookStart.Add(45 * time.Minute),
		Status:       model.StatusCompleted,
		TotalPrice:   2500,
		PointsEarned: 5,
	}
	store := &fakeStore{byID: map[string]model.Appointment{"appt-1": completed}}
	ledger := &fakeLedger{}
	sink := &fakeSink{}
	o := newTestOrchestrator(store, ledger, sink)

	actor := identity.Actor{ID: "sty-1", Role: identity.RoleStylist}
	appt, err := o.Complete(context.Background(), actor, "appt-1")
	if err != nil {
		t.Fatalf("re-completing must not error: %v", err)
	}
	if appt.Status != model.StatusCompleted || appt.PointsEarned != 5 {
		t.Fatalf("appointment changed on re-complete: %+v", appt)
	}
	if ledger.earnCalls != 0 {
		t.Fatalf("earn called %d times on a completed appointment, want 0", ledger.earnCalls)
	}
	if len(sink.topics) != 0 {
		t.Fatalf("events = %v, want none on re-complete", sink.topics)
	}
}
