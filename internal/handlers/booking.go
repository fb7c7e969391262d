package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pawa-atelier/glowbook/internal/availability"
	"github.com/pawa-atelier/glowbook/internal/booking"
	"github.com/pawa-atelier/glowbook/internal/identity"
	"github.com/pawa-atelier/glowbook/internal/model"
)

// Service is the engine contract the HTTP layer sits on.
type Service interface {
	AvailableSlots(ctx context.Context, stylistID string, day time.Time) ([]availability.Slot, error)
	Book(ctx context.Context, actor identity.Actor, req booking.Request) (model.Appointment, error)
	Rebook(ctx context.Context, actor identity.Actor, appointmentID string, req booking.Request) (model.Appointment, error)
	Approve(ctx context.Context, actor identity.Actor, appointmentID string) (model.Appointment, error)
	Complete(ctx context.Context, actor identity.Actor, appointmentID string) (model.Appointment, error)
	Cancel(ctx context.Context, actor identity.Actor, appointmentID, reason string) (model.Appointment, error)
	LoyaltyBalance(ctx context.Context, actor identity.Actor, customerID string) (int, error)
	History(ctx context.Context, actor identity.Actor, customerID, stylistID string, limit int) ([]model.Appointment, error)
}

type BookingHandler struct {
	svc    Service
	logger *slog.Logger
}

func NewBookingHandler(svc Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type bookRequest struct {
	CustomerID   string `json:"customer_id"`
	StylistID    string `json:"stylist_id"`
	ServiceID    string `json:"service_id"`
	StartTime    string `json:"start_time"`
	RedeemPoints bool   `json:"redeem_points"`
}

type rebookRequest struct {
	AppointmentID string `json:"appointment_id"`
	bookRequest
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason,omitempty"`
}

type appointmentItem struct {
	AppointmentID string  `json:"appointment_id"`
	CustomerID    string  `json:"customer_id"`
	StylistID     string  `json:"stylist_id"`
	ServiceID     string  `json:"service_id"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	Status        string  `json:"status"`
	TotalPrice    float64 `json:"total_price"`
	IsRedeemed    bool    `json:"is_redeemed"`
	PointsEarned  int     `json:"points_earned"`
	CancelledAt   string  `json:"cancelled_at,omitempty"`
	CancelReason  string  `json:"cancel_reason,omitempty"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"error"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := identity.FromContext(r.Context()); !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	stylistID := strings.TrimSpace(r.URL.Query().Get("stylist_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if stylistID == "" || dateStr == "" {
		writeError(w, &booking.ValidationError{Field: "stylist_id/date", Reason: "required"})
		return
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		writeError(w, &booking.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"})
		return
	}

	slots, err := h.svc.AvailableSlots(r.Context(), stylistID, day)
	if err != nil {
		h.logError(r, "slots", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	domainReq, err := req.toDomain(actor)
	if err != nil {
		writeError(w, err)
		return
	}

	appt, err := h.svc.Book(r.Context(), actor, domainReq)
	if err != nil {
		h.logError(r, "book", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItem(appt))
}

func (h *BookingHandler) Rebook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req rebookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	domainReq, err := req.toDomain(actor)
	if err != nil {
		writeError(w, err)
		return
	}

	appt, err := h.svc.Rebook(r.Context(), actor, strings.TrimSpace(req.AppointmentID), domainReq)
	if err != nil {
		h.logError(r, "rebook", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(appt))
}

func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve", func(ctx context.Context, actor identity.Actor, req statusRequest) (model.Appointment, error) {
		return h.svc.Approve(ctx, actor, req.AppointmentID)
	})
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete", func(ctx context.Context, actor identity.Actor, req statusRequest) (model.Appointment, error) {
		return h.svc.Complete(ctx, actor, req.AppointmentID)
	})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", func(ctx context.Context, actor identity.Actor, req statusRequest) (model.Appointment, error) {
		return h.svc.Cancel(ctx, actor, req.AppointmentID, strings.TrimSpace(req.Reason))
	})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	customerID := strings.TrimSpace(r.URL.Query().Get("customer_id"))
	stylistID := strings.TrimSpace(r.URL.Query().Get("stylist_id"))

	appts, err := h.svc.History(r.Context(), actor, customerID, stylistID, limit)
	if err != nil {
		h.logError(r, "list", err)
		writeError(w, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toItem(a))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Balance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	customerID := strings.TrimSpace(r.URL.Query().Get("customer_id"))
	if customerID == "" {
		customerID = actor.ID
	}
	balance, err := h.svc.LoyaltyBalance(r.Context(), actor, customerID)
	if err != nil {
		h.logError(r, "balance", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customer_id": customerID,
		"balance":     balance,
	})
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, op string, apply func(context.Context, identity.Actor, statusRequest) (model.Appointment, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		writeError(w, &booking.ValidationError{Field: "appointment_id", Reason: "required"})
		return
	}

	appt, err := apply(r.Context(), actor, req)
	if err != nil {
		h.logError(r, op, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(appt))
}

func (h *BookingHandler) logError(r *http.Request, op string, err error) {
	kind := booking.ErrorKind(err)
	if kind == "persistence" {
		h.logger.Error("operation failed", "op", op, "err", err)
		return
	}
	h.logger.Info("operation rejected", "op", op, "kind", kind, "reason", err.Error())
}

func (req bookRequest) toDomain(actor identity.Actor) (booking.Request, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		customerID = actor.ID
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		return booking.Request{}, &booking.ValidationError{Field: "start_time", Reason: "must be RFC3339"}
	}
	return booking.Request{
		CustomerID:   customerID,
		StylistID:    strings.TrimSpace(req.StylistID),
		ServiceID:    strings.TrimSpace(req.ServiceID),
		StartTime:    start,
		RedeemPoints: req.RedeemPoints,
	}, nil
}

func toItem(a model.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID: a.ID,
		CustomerID:    a.CustomerID,
		StylistID:     a.StylistID,
		ServiceID:     a.ServiceID,
		StartTime:     a.StartTime.UTC().Format(time.RFC3339),
		EndTime:       a.EndTime.UTC().Format(time.RFC3339),
		Status:        string(a.Status),
		TotalPrice:    a.TotalPrice,
		IsRedeemed:    a.IsRedeemed,
		PointsEarned:  a.PointsEarned,
		CancelReason:  a.CancelReason,
	}
	if a.CancelledAt != nil {
		item.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError maps the engine's error taxonomy onto HTTP statuses, keeping
// the kind distinguishable for callers. Persistence failures surface
// generically.
func writeError(w http.ResponseWriter, err error) {
	kind := booking.ErrorKind(err)
	var status int
	message := err.Error()
	switch kind {
	case "validation":
		status = http.StatusBadRequest
	case "slot_conflict":
		status = http.StatusConflict
	case "not_found":
		status = http.StatusNotFound
	case "permission":
		status = http.StatusForbidden
	case "illegal_transition":
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		message = "internal error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
			message = "request timed out"
		}
	}
	writeJSON(w, status, errorBody{Kind: kind, Message: message})
}
