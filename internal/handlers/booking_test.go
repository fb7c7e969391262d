package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pawa-atelier/glowbook/internal/availability"
	"github.com/pawa-atelier/glowbook/internal/booking"
	"github.com/pawa-atelier/glowbook/internal/identity"
	"github.com/pawa-atelier/glowbook/internal/model"
)

type stubService struct {
	bookFn    func(ctx context.Context, actor identity.Actor, req booking.Request) (model.Appointment, error)
	slotsFn   func(ctx context.Context, stylistID string, day time.Time) ([]availability.Slot, error)
	balanceFn func(ctx context.Context, actor identity.Actor, customerID string) (int, error)
}

func (s *stubService) AvailableSlots(ctx context.Context, stylistID string, day time.Time) ([]availability.Slot, error) {
	return s.slotsFn(ctx, stylistID, day)
}

func (s *stubService) Book(ctx context.Context, actor identity.Actor, req booking.Request) (model.Appointment, error) {
	return s.bookFn(ctx, actor, req)
}

func (s *stubService) Rebook(_ context.Context, _ identity.Actor, _ string, _ booking.Request) (model.Appointment, error) {
	return model.Appointment{}, nil
}

func (s *stubService) Approve(_ context.Context, _ identity.Actor, _ string) (model.Appointment, error) {
	return model.Appointment{}, nil
}

func (s *stubService) Complete(_ context.Context, _ identity.Actor, _ string) (model.Appointment, error) {
	return model.Appointment{}, nil
}

func (s *stubService) Cancel(_ context.Context, _ identity.Actor, _, _ string) (model.Appointment, error) {
	return model.Appointment{}, nil
}

func (s *stubService) LoyaltyBalance(ctx context.Context, actor identity.Actor, customerID string) (int, error) {
	return s.balanceFn(ctx, actor, customerID)
}

func (s *stubService) History(_ context.Context, _ identity.Actor, _, _ string, _ int) ([]model.Appointment, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func asCustomer(r *http.Request) *http.Request {
	return r.WithContext(identity.WithActor(r.Context(), identity.Actor{ID: "cust-1", Role: identity.RoleCustomer}))
}

func TestBook_Created(t *testing.T) {
	start := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	svc := &stubService{
		bookFn: func(_ context.Context, actor identity.Actor, req booking.Request) (model.Appointment, error) {
			if req.CustomerID != "cust-1" {
				t.Fatalf("customer id defaulted to %q, want actor id", req.CustomerID)
			}
			if !req.StartTime.Equal(start) {
				t.Fatalf("start time = %s", req.StartTime)
			}
			return model.Appointment{
				ID:         "appt-1",
				CustomerID: req.CustomerID,
				StylistID:  req.StylistID,
				ServiceID:  req.ServiceID,
				StartTime:  req.StartTime,
				EndTime:    req.StartTime.Add(45 * time.Minute),
				Status:     model.StatusPending,
				TotalPrice: 2000,
				IsRedeemed: true,
			}, nil
		},
	}
	h := NewBookingHandler(svc, testLogger())

	body := `{"stylist_id":"sty-1","service_id":"svc-1","start_time":"2026-08-26T10:00:00Z","redeem_points":true}`
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/v1/book", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	h.Book(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var item appointmentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if item.Status != "pending" || !item.IsRedeemed || item.TotalPrice != 2000 {
		t.Fatalf("unexpected response: %+v", item)
	}
}

func TestBook_SlotConflict(t *testing.T) {
	svc := &stubService{
		bookFn: func(_ context.Context, _ identity.Actor, req booking.Request) (model.Appointment, error) {
			return model.Appointment{}, &booking.SlotConflictError{
				StylistID: req.StylistID, Start: req.StartTime, End: req.StartTime.Add(30 * time.Minute),
			}
		},
	}
	h := NewBookingHandler(svc, testLogger())

	body := `{"stylist_id":"sty-1","service_id":"svc-1","start_time":"2026-08-26T10:00:00Z"}`
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/v1/book", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	h.Book(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var errResp errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if errResp.Kind != "slot_conflict" {
		t.Fatalf("kind = %q, want slot_conflict", errResp.Kind)
	}
}

func TestBook_BadStartTime(t *testing.T) {
	h := NewBookingHandler(&stubService{}, testLogger())
	body := `{"stylist_id":"sty-1","service_id":"svc-1","start_time":"tomorrow"}`
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/v1/book", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	h.Book(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBook_Unauthenticated(t *testing.T) {
	h := NewBookingHandler(&stubService{}, testLogger())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/book", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Book(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSlots_OK(t *testing.T) {
	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	svc := &stubService{
		slotsFn: func(_ context.Context, stylistID string, got time.Time) ([]availability.Slot, error) {
			if stylistID != "sty-1" || !got.Equal(day) {
				t.Fatalf("slots args = %q %s", stylistID, got)
			}
			return []availability.Slot{
				{Start: day.Add(9 * time.Hour), End: day.Add(9*time.Hour + 30*time.Minute), Period: availability.PeriodMorning},
			}, nil
		},
	}
	h := NewBookingHandler(svc, testLogger())

	req := asCustomer(httptest.NewRequest(http.MethodGet, "/api/v1/slots?stylist_id=sty-1&date=2026-08-26", nil))
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var slots []availability.Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(slots) != 1 || slots[0].Occupied {
		t.Fatalf("unexpected slots: %+v", slots)
	}
}

func TestSlots_FailsClosedOnStorageError(t *testing.T) {
	svc := &stubService{
		slotsFn: func(_ context.Context, _ string, _ time.Time) ([]availability.Slot, error) {
			return nil, &booking.PersistenceError{Op: "load appointments", Err: context.DeadlineExceeded}
		},
	}
	h := NewBookingHandler(svc, testLogger())

	req := asCustomer(httptest.NewRequest(http.MethodGet, "/api/v1/slots?stylist_id=sty-1&date=2026-08-26", nil))
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code == http.StatusOK {
		t.Fatal("slots must not be served when the appointment set is unknown")
	}
}

func TestBalance_DefaultsToActor(t *testing.T) {
	svc := &stubService{
		balanceFn: func(_ context.Context, _ identity.Actor, customerID string) (int, error) {
			if customerID != "cust-1" {
				t.Fatalf("customer id = %q, want actor id", customerID)
			}
			return 120, nil
		},
	}
	h := NewBookingHandler(svc, testLogger())

	req := asCustomer(httptest.NewRequest(http.MethodGet, "/api/v1/loyalty/balance", nil))
	rec := httptest.NewRecorder()
	h.Balance(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		CustomerID string `json:"customer_id"`
		Balance    int    `json:"balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Balance != 120 {
		t.Fatalf("balance = %d, want 120", resp.Balance)
	}
}
