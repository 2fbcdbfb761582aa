package booking

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/urbanfleet/service-booking/internal/common/domain"
	"github.com/urbanfleet/service-booking/internal/domain/geo"
)

// ErrFareOutOfBounds reports a malformed pricing configuration, such as a
// minimum fare above the maximum or a negative rate.
var ErrFareOutOfBounds = errors.New("fare configuration out of bounds")

const maxPassengerCount = 6

// Booking is the ride booking aggregate. It owns the trip lifecycle and
// guards every status transition; all mutation goes through its methods.
type Booking struct {
	id                  uuid.UUID
	bookingNumber       string
	customerID          uuid.UUID
	serviceType         ServiceType
	vehicleType         VehicleType
	pickup              geo.LocationPoint
	drop                geo.LocationPoint
	scheduledAt         time.Time
	passengerCount      int
	specialInstructions string
	status              BookingStatus
	paymentStatus       PaymentStatus
	driverID            *uuid.UUID
	vehicleID           *uuid.UUID
	fare                FareBreakdown
	route               RouteSpec
	cancellationReason  string
	version             int
	createdAt           time.Time
	updatedAt           time.Time
}

// NewBooking creates a pending booking with a freshly generated booking
// number. The fare and route are frozen at creation time.
func NewBooking(
	customerID uuid.UUID,
	serviceType ServiceType,
	vehicleType VehicleType,
	pickup, drop geo.LocationPoint,
	scheduledAt time.Time,
	passengerCount int,
	specialInstructions string,
	fare FareBreakdown,
	route RouteSpec,
) (*Booking, error) {
	if customerID == uuid.Nil {
		return nil, domain.NewValidationError("customer id is required")
	}
	if !serviceType.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid service type: %s", serviceType))
	}
	if !vehicleType.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid vehicle type: %s", vehicleType))
	}
	if err := pickup.Validate(); err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid pickup location: %v", err))
	}
	if err := drop.Validate(); err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid drop location: %v", err))
	}
	if passengerCount < 1 || passengerCount > maxPassengerCount {
		return nil, domain.NewValidationError(fmt.Sprintf("passenger count must be between 1 and %d", maxPassengerCount))
	}
	if scheduledAt.Before(time.Now().Add(-time.Minute)) {
		return nil, domain.NewValidationError("scheduled time cannot be in the past")
	}
	if fare.TotalFare <= 0 {
		return nil, domain.NewValidationError("fare must be positive")
	}
	if fare.AdvanceAmount+fare.RemainingAmount != fare.TotalFare {
		return nil, domain.NewValidationError("fare split does not sum to total")
	}

	number, err := generateBookingNumber()
	if err != nil {
		return nil, fmt.Errorf("generate booking number: %w", err)
	}

	now := time.Now()
	return &Booking{
		id:                  uuid.New(),
		bookingNumber:       number,
		customerID:          customerID,
		serviceType:         serviceType,
		vehicleType:         vehicleType,
		pickup:              pickup,
		drop:                drop,
		scheduledAt:         scheduledAt,
		passengerCount:      passengerCount,
		specialInstructions: specialInstructions,
		status:              StatusPending,
		paymentStatus:       PaymentPending,
		fare:                fare,
		route:               route,
		version:             1,
		createdAt:           now,
		updatedAt:           now,
	}, nil
}

// ReconstructBooking rebuilds a booking from persistence without validation.
func ReconstructBooking(
	id uuid.UUID,
	bookingNumber string,
	customerID uuid.UUID,
	serviceType ServiceType,
	vehicleType VehicleType,
	pickup, drop geo.LocationPoint,
	scheduledAt time.Time,
	passengerCount int,
	specialInstructions string,
	status BookingStatus,
	paymentStatus PaymentStatus,
	driverID, vehicleID *uuid.UUID,
	fare FareBreakdown,
	route RouteSpec,
	cancellationReason string,
	version int,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:                  id,
		bookingNumber:       bookingNumber,
		customerID:          customerID,
		serviceType:         serviceType,
		vehicleType:         vehicleType,
		pickup:              pickup,
		drop:                drop,
		scheduledAt:         scheduledAt,
		passengerCount:      passengerCount,
		specialInstructions: specialInstructions,
		status:              status,
		paymentStatus:       paymentStatus,
		driverID:            driverID,
		vehicleID:           vehicleID,
		fare:                fare,
		route:               route,
		cancellationReason:  cancellationReason,
		version:             version,
		createdAt:           createdAt,
		updatedAt:           updatedAt,
	}
}

func (b *Booking) ID() uuid.UUID { return b.id }
func (b *Booking) BookingNumber() string { return b.bookingNumber }
func (b *Booking) CustomerID() uuid.UUID { return b.customerID }
func (b *Booking) ServiceType() ServiceType { return b.serviceType }
func (b *Booking) VehicleType() VehicleType { return b.vehicleType }
func (b *Booking) Pickup() geo.LocationPoint { return b.pickup }
func (b *Booking) Drop() geo.LocationPoint { return b.drop }
func (b *Booking) ScheduledAt() time.Time { return b.scheduledAt }
func (b *Booking) PassengerCount() int { return b.passengerCount }
func (b *Booking) SpecialInstructions() string { return b.specialInstructions }
func (b *Booking) Status() BookingStatus { return b.status }
func (b *Booking) PaymentStatus() PaymentStatus { return b.paymentStatus }
func (b *Booking) DriverID() *uuid.UUID { return b.driverID }
func (b *Booking) VehicleID() *uuid.UUID { return b.vehicleID }
func (b *Booking) Fare() FareBreakdown { return b.fare }
func (b *Booking) Route() RouteSpec { return b.route }
func (b *Booking) CancellationReason() string { return b.cancellationReason }
func (b *Booking) Version() int { return b.version }
func (b *Booking) CreatedAt() time.Time { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// AssignDriver moves the booking to accepted and attaches the assigned
// driver and vehicle. The advance must have been collected first.
func (b *Booking) AssignDriver(driverID, vehicleID uuid.UUID) error {
	if !b.status.CanTransitionTo(StatusAccepted) {
		return domain.NewInvalidStateError(string(b.status), string(StatusAccepted))
	}
	if driverID == uuid.Nil || vehicleID == uuid.Nil {
		return domain.NewValidationError("driver id and vehicle id are required")
	}
	if !b.paymentStatus.Settled() {
		return domain.NewConflictError("advance payment has not been collected")
	}
	b.driverID = &driverID
	b.vehicleID = &vehicleID
	b.status = StatusAccepted
	b.touch()
	return nil
}

// StartTrip moves an accepted booking to started.
func (b *Booking) StartTrip() error {
	if !b.status.CanTransitionTo(StatusStarted) {
		return domain.NewInvalidStateError(string(b.status), string(StatusStarted))
	}
	b.status = StatusStarted
	b.touch()
	return nil
}

// CompleteTrip moves a started booking to completed.
func (b *Booking) CompleteTrip() error {
	if !b.status.CanTransitionTo(StatusCompleted) {
		return domain.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	b.status = StatusCompleted
	b.touch()
	return nil
}

// Cancel moves the booking to cancelled with a reason. Terminal bookings
// cannot be cancelled.
func (b *Booking) Cancel(reason string) error {
	if reason == "" {
		return domain.NewValidationError("cancellation reason is required")
	}
	if !b.status.CanBeCancelled() {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	b.status = StatusCancelled
	b.cancellationReason = reason
	b.touch()
	return nil
}

// MarkPartiallyPaid records that the advance has been collected.
func (b *Booking) MarkPartiallyPaid() error {
	if b.status.IsTerminal() {
		return domain.NewInvalidStateError(string(b.status), string(b.status))
	}
	if b.paymentStatus == PaymentPaid {
		return domain.NewConflictError("booking is already fully paid")
	}
	b.paymentStatus = PaymentPartial
	b.touch()
	return nil
}

// MarkPaid records that the full fare has been collected.
func (b *Booking) MarkPaid() error {
	if b.status == StatusCancelled {
		return domain.NewInvalidStateError(string(b.status), string(b.status))
	}
	b.paymentStatus = PaymentPaid
	b.touch()
	return nil
}

// MarkPaymentFailed records a failed collection attempt. It only applies
// while nothing has been collected yet.
func (b *Booking) MarkPaymentFailed() error {
	if b.paymentStatus.Settled() {
		return domain.NewConflictError("payment has already been collected")
	}
	b.paymentStatus = PaymentFailed
	b.touch()
	return nil
}

// IncrementVersion bumps the optimistic lock counter after a successful
// persist.
func (b *Booking) IncrementVersion() {
	b.version++
}

func (b *Booking) touch() {
	b.updatedAt = time.Now()
}

const bookingNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateBookingNumber produces a customer-facing reference like RB-7KX2M9.
// The alphabet omits easily confused characters.
func generateBookingNumber() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 6)
	for i, c := range buf {
		out[i] = bookingNumberAlphabet[int(c)%len(bookingNumberAlphabet)]
	}
	return "RB-" + string(out), nil
}
