package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/urbanfleet/service-booking/internal/common/domain"
	"github.com/urbanfleet/service-booking/internal/domain/booking"
)

// LocationDTO is a coordinate pair with an optional display address.
type LocationDTO struct {
	Lat     float64 `json:"lat" binding:"required"`
	Lng     float64 `json:"lng" binding:"required"`
	Address string  `json:"address"`
}

// QuoteRequest asks for a fare estimate without creating a booking.
type QuoteRequest struct {
	ServiceType string      `json:"service_type" binding:"required"`
	VehicleType string      `json:"vehicle_type" binding:"required"`
	Pickup      LocationDTO `json:"pickup" binding:"required"`
	Drop        LocationDTO `json:"drop" binding:"required"`
}

// FareDTO mirrors booking.FareBreakdown for API responses.
type FareDTO struct {
	BaseFare        int64   `json:"base_fare"`
	DistanceFare    int64   `json:"distance_fare"`
	TimeFare        int64   `json:"time_fare"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	SurgeReason     string  `json:"surge_reason,omitempty"`
	TotalFare       int64   `json:"total_fare"`
	AdvanceAmount   int64   `json:"advance_amount"`
	RemainingAmount int64   `json:"remaining_amount"`
	Currency        string  `json:"currency"`
}

// RouteDTO mirrors booking.RouteSpec for API responses.
type RouteDTO struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes int     `json:"duration_minutes"`
	Polyline        string  `json:"polyline"`
	Source          string  `json:"source"`
}

// QuoteResponse is a fare estimate. Fare is omitted when only the
// straight-line route estimate was available.
type QuoteResponse struct {
	Route        RouteDTO `json:"route"`
	Fare         *FareDTO `json:"fare,omitempty"`
	EstimateOnly bool     `json:"estimate_only"`
}

// CreateBookingRequest creates a new booking.
type CreateBookingRequest struct {
	ServiceType         string      `json:"service_type" binding:"required"`
	VehicleType         string      `json:"vehicle_type" binding:"required"`
	Pickup              LocationDTO `json:"pickup" binding:"required"`
	Drop                LocationDTO `json:"drop" binding:"required"`
	ScheduledAt         time.Time   `json:"scheduled_at" binding:"required"`
	PassengerCount      int         `json:"passenger_count" binding:"required"`
	SpecialInstructions string      `json:"special_instructions"`
	PaymentMode         string      `json:"payment_mode"`
}

// CancelBookingRequest cancels a booking with a reason.
type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// BookingResponse is the full booking view returned by the API.
type BookingResponse struct {
	ID                  uuid.UUID   `json:"id"`
	BookingNumber       string      `json:"booking_number"`
	CustomerID          uuid.UUID   `json:"customer_id"`
	ServiceType         string      `json:"service_type"`
	VehicleType         string      `json:"vehicle_type"`
	Pickup              LocationDTO `json:"pickup"`
	Drop                LocationDTO `json:"drop"`
	ScheduledAt         time.Time   `json:"scheduled_at"`
	PassengerCount      int         `json:"passenger_count"`
	SpecialInstructions string      `json:"special_instructions,omitempty"`
	Status              string      `json:"status"`
	PaymentStatus       string      `json:"payment_status"`
	DriverID            *uuid.UUID  `json:"driver_id,omitempty"`
	VehicleID           *uuid.UUID  `json:"vehicle_id,omitempty"`
	Fare                FareDTO     `json:"fare"`
	Route               RouteDTO    `json:"route"`
	CancellationReason  string      `json:"cancellation_reason,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// BookingStatsResponse is the admin dashboard counters view.
type BookingStatsResponse struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// CreateIntentRequest opens a payment intent for a booking.
type CreateIntentRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
	Purpose   string    `json:"purpose" binding:"required"`
}

// IntentResponse is the gateway order handed to the client checkout.
type IntentResponse struct {
	IntentID       uuid.UUID `json:"intent_id"`
	BookingID      uuid.UUID `json:"booking_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Purpose        string    `json:"purpose"`
	Status         string    `json:"status"`
}

// VerifyPaymentRequest is a client-side checkout confirmation.
type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" binding:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
}

// PaymentWebhookRequest is the gateway-originated confirmation.
type PaymentWebhookRequest struct {
	Event            string `json:"event" binding:"required"`
	GatewayOrderID   string `json:"gateway_order_id" binding:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
	FailureReason    string `json:"failure_reason"`
}

// PaymentResultResponse reports the settlement outcome.
type PaymentResultResponse struct {
	BookingID        uuid.UUID `json:"booking_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	Status           string    `json:"status"`
	PaymentStatus    string    `json:"payment_status"`
	AlreadyProcessed bool      `json:"already_processed"`
}

func toFareDTO(f booking.FareBreakdown, currency string) FareDTO {
	return FareDTO{
		BaseFare:        f.BaseFare,
		DistanceFare:    f.DistanceFare,
		TimeFare:        f.TimeFare,
		SurgeMultiplier: f.SurgeMultiplier,
		SurgeReason:     f.SurgeReason,
		TotalFare:       f.TotalFare,
		AdvanceAmount:   f.AdvanceAmount,
		RemainingAmount: f.RemainingAmount,
		Currency:        currency,
	}
}

func toRouteDTO(r booking.RouteSpec) RouteDTO {
	return RouteDTO{
		DistanceKm:      r.DistanceKm,
		DurationMinutes: r.DurationMinutes,
		Polyline:        r.Polyline,
		Source:          r.Source,
	}
}

// ToBookingResponse maps the aggregate to its API view.
func ToBookingResponse(b *booking.Booking) BookingResponse {
	pickup := b.Pickup()
	drop := b.Drop()
	return BookingResponse{
		ID:                  b.ID(),
		BookingNumber:       b.BookingNumber(),
		CustomerID:          b.CustomerID(),
		ServiceType:         string(b.ServiceType()),
		VehicleType:         string(b.VehicleType()),
		Pickup:              LocationDTO{Lat: pickup.Lat, Lng: pickup.Lng, Address: pickup.Address},
		Drop:                LocationDTO{Lat: drop.Lat, Lng: drop.Lng, Address: drop.Address},
		ScheduledAt:         b.ScheduledAt(),
		PassengerCount:      b.PassengerCount(),
		SpecialInstructions: b.SpecialInstructions(),
		Status:              string(b.Status()),
		PaymentStatus:       string(b.PaymentStatus()),
		DriverID:            b.DriverID(),
		VehicleID:           b.VehicleID(),
		Fare:                toFareDTO(b.Fare(), domain.CurrencyINR),
		Route:               toRouteDTO(b.Route()),
		CancellationReason:  b.CancellationReason(),
		CreatedAt:           b.CreatedAt(),
		UpdatedAt:           b.UpdatedAt(),
	}
}
