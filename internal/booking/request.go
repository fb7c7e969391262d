package booking

import (
	"time"

	"github.com/pawa-atelier/glowbook/internal/model"
)

// Request carries everything a booking or rebooking needs. EndTime is never
// accepted from callers; it is re-derived from the service duration.
type Request struct {
	CustomerID   string
	StylistID    string
	ServiceID    string
	StartTime    time.Time
	RedeemPoints bool
}

func (r Request) validate() error {
	switch {
	case r.CustomerID == "":
		return &ValidationError{Field: "customer_id", Reason: "required"}
	case r.StylistID == "":
		return &ValidationError{Field: "stylist_id", Reason: "required"}
	case r.ServiceID == "":
		return &ValidationError{Field: "service_id", Reason: "required"}
	case r.StartTime.IsZero():
		return &ValidationError{Field: "start_time", Reason: "required"}
	}
	return nil
}

// discountPercent is how much of the price a redemption shaves off.
const discountPercent = 20

// FinalPrice applies the redemption discount to the service price.
func FinalPrice(service model.Service, redeemed bool) float64 {
	if !redeemed {
		return service.Price
	}
	return service.Price * (100 - discountPercent) / 100
}
