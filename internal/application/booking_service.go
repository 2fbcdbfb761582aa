package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/urbanfleet/service-booking/internal/common/auth"
	"github.com/urbanfleet/service-booking/internal/common/domain"
	"github.com/urbanfleet/service-booking/internal/common/kafka"
	"github.com/urbanfleet/service-booking/internal/domain/booking"
	"github.com/urbanfleet/service-booking/internal/domain/geo"
	"github.com/urbanfleet/service-booking/internal/realtime"
	"github.com/urbanfleet/service-booking/internal/routing"
)

const (
	// EventSource identifies this service in published CloudEvents.
	EventSource = "urbanfleet.service-booking"

	// TopicBookingEvents carries booking lifecycle events.
	TopicBookingEvents = "booking.events"
	// TopicPaymentEvents carries settlement events.
	TopicPaymentEvents = "payment.events"
)

// Booking lifecycle event types.
const (
	EventBookingCreated   = "booking.created"
	EventBookingAccepted  = "booking.accepted"
	EventBookingStarted   = "booking.started"
	EventBookingCompleted = "booking.completed"
	EventBookingCancelled = "booking.cancelled"
)

// routeProvider is the routing capability the service needs.
type routeProvider interface {
	ComputeRoute(ctx context.Context, pickup, drop geo.Coordinate) (*routing.RouteResult, error)
	Fallback(pickup, drop geo.Coordinate) *routing.RouteResult
}

// eventPublisher is the Kafka capability the service needs.
type eventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event kafka.CloudEvent) error
}

// BookingEventPayload is the data section of booking lifecycle events.
type BookingEventPayload struct {
	BookingID     uuid.UUID  `json:"booking_id"`
	BookingNumber string     `json:"booking_number"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	DriverID      *uuid.UUID `json:"driver_id,omitempty"`
	ServiceType   string     `json:"service_type"`
	VehicleType   string     `json:"vehicle_type"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	TotalFare     int64      `json:"total_fare"`
	PickupLat     float64    `json:"pickup_lat"`
	PickupLng     float64    `json:"pickup_lng"`
	DropLat       float64    `json:"drop_lat"`
	DropLng       float64    `json:"drop_lng"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
}

// BookingService owns the booking lifecycle use cases.
type BookingService struct {
	repo      booking.Repository
	geofence  *geo.Geofence
	routes    routeProvider
	fares     *booking.FareCalculator
	publisher eventPublisher
	notifier  realtime.Notifier
	logger    *zap.Logger
}

// NewBookingService wires the booking use cases.
func NewBookingService(
	repo booking.Repository,
	geofence *geo.Geofence,
	routes routeProvider,
	fares *booking.FareCalculator,
	publisher eventPublisher,
	notifier realtime.Notifier,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:      repo,
		geofence:  geofence,
		routes:    routes,
		fares:     fares,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
	}
}

// Quote prices a trip without creating a booking. When the routing provider
// is unavailable it returns the straight-line estimate without a fare, so
// the client can show a distance band but cannot book against it.
func (s *BookingService) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	serviceType := booking.ServiceType(req.ServiceType)
	vehicleType := booking.VehicleType(req.VehicleType)
	if !serviceType.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid service type: %s", req.ServiceType))
	}
	if !vehicleType.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid vehicle type: %s", req.VehicleType))
	}

	pickup, drop, err := s.resolveLocations(req.Pickup, req.Drop)
	if err != nil {
		return nil, err
	}

	route, routeErr := s.routes.ComputeRoute(ctx, pickup.Coordinate, drop.Coordinate)
	if routeErr != nil {
		var re *routing.RouteError
		if errors.As(routeErr, &re) && re.Cause == routing.CauseNoRoute {
			return nil, domain.NewValidationError("no drivable route between pickup and drop")
		}
		s.logger.Warn("routing provider unavailable, quoting straight-line estimate", zap.Error(routeErr))
		estimate := s.routes.Fallback(pickup.Coordinate, drop.Coordinate)
		return &QuoteResponse{
			Route:        routeResultDTO(estimate),
			EstimateOnly: true,
		}, nil
	}

	fare, err := s.fares.Compute(serviceType, vehicleType, route.DistanceKm, route.DurationMinutes, time.Now(), booking.PaymentModePartial)
	if err != nil {
		return nil, fmt.Errorf("compute fare: %w", err)
	}

	fareDTO := toFareDTO(fare, domain.CurrencyINR)
	return &QuoteResponse{
		Route: routeResultDTO(route),
		Fare:  &fareDTO,
	}, nil
}

// CreateBooking validates the trip, prices it against a provider route and
// persists a pending booking. A straight-line estimate is never accepted as
// the basis for a fare.
func (s *BookingService) CreateBooking(ctx context.Context, customerID uuid.UUID, req CreateBookingRequest) (*BookingResponse, error) {
	serviceType := booking.ServiceType(req.ServiceType)
	vehicleType := booking.VehicleType(req.VehicleType)

	pickup, drop, err := s.resolveLocations(req.Pickup, req.Drop)
	if err != nil {
		return nil, err
	}

	route, routeErr := s.routes.ComputeRoute(ctx, pickup.Coordinate, drop.Coordinate)
	if routeErr != nil {
		return nil, mapRouteError(routeErr)
	}

	mode := booking.PaymentModePartial
	if req.PaymentMode == string(booking.PaymentModeFull) {
		mode = booking.PaymentModeFull
	}

	fare, err := s.fares.Compute(serviceType, vehicleType, route.DistanceKm, route.DurationMinutes, time.Now(), mode)
	if err != nil {
		if errors.Is(err, booking.ErrFareOutOfBounds) {
			return nil, fmt.Errorf("fare configuration: %w", err)
		}
		return nil, domain.NewValidationError(err.Error())
	}

	b, err := booking.NewBooking(
		customerID,
		serviceType,
		vehicleType,
		pickup,
		drop,
		req.ScheduledAt,
		req.PassengerCount,
		req.SpecialInstructions,
		fare,
		booking.RouteSpec{
			DistanceKm:      route.DistanceKm,
			DurationMinutes: route.DurationMinutes,
			Polyline:        routing.EncodePolyline(route.Polyline),
			Source:          string(route.Source),
		},
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("save booking: %w", err)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID().String()),
		zap.String("booking_number", b.BookingNumber()),
		zap.String("service_type", string(serviceType)),
		zap.Int64("total_fare", fare.TotalFare))

	s.emit(ctx, EventBookingCreated, b)
	resp := ToBookingResponse(b)
	return &resp, nil
}

// GetBooking loads one booking. Customers see only their own bookings;
// drivers only bookings assigned to them.
func (s *BookingService) GetBooking(ctx context.Context, id, requesterID uuid.UUID, role string) (*BookingResponse, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeAccess(b, requesterID, role); err != nil {
		return nil, err
	}
	resp := ToBookingResponse(b)
	return &resp, nil
}

// GetBookingByNumber loads one booking by its customer-facing number.
func (s *BookingService) GetBookingByNumber(ctx context.Context, number string, requesterID uuid.UUID, role string) (*BookingResponse, error) {
	b, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := authorizeAccess(b, requesterID, role); err != nil {
		return nil, err
	}
	resp := ToBookingResponse(b)
	return &resp, nil
}

// ListCustomerBookings pages through the requesting customer's bookings.
func (s *BookingService) ListCustomerBookings(ctx context.Context, customerID uuid.UUID, page, limit int) (*domain.PaginatedResult[BookingResponse], error) {
	page, limit = normalizePage(page, limit)
	result, err := s.repo.FindByCustomerID(ctx, customerID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return mapPage(result), nil
}

// ListAllBookings pages through every booking, optionally filtered by
// status. Admin only; the handler enforces the role.
func (s *BookingService) ListAllBookings(ctx context.Context, status string, page, limit int) (*domain.PaginatedResult[BookingResponse], error) {
	page, limit = normalizePage(page, limit)
	var filter *booking.BookingStatus
	if status != "" {
		parsed, err := booking.ParseBookingStatus(status)
		if err != nil {
			return nil, domain.NewValidationError(err.Error())
		}
		filter = &parsed
	}
	result, err := s.repo.ListAll(ctx, filter, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return mapPage(result), nil
}

// Stats returns booking counts per status for the admin dashboard.
func (s *BookingService) Stats(ctx context.Context) (*BookingStatsResponse, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}
	resp := &BookingStatsResponse{ByStatus: make(map[string]int64, len(counts))}
	for status, count := range counts {
		resp.ByStatus[string(status)] = count
		resp.Total += count
	}
	return resp, nil
}

// AssignDriver attaches a dispatched driver and moves the booking to
// accepted. Called from the dispatch event consumer.
func (s *BookingService) AssignDriver(ctx context.Context, bookingID, driverID, vehicleID uuid.UUID) error {
	b, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status() == booking.StatusAccepted && b.DriverID() != nil && *b.DriverID() == driverID {
		// redelivered assignment, nothing to do
		return nil
	}
	if err := b.AssignDriver(driverID, vehicleID); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return fmt.Errorf("update booking: %w", err)
	}

	s.logger.Info("driver assigned",
		zap.String("booking_id", bookingID.String()),
		zap.String("driver_id", driverID.String()))
	s.emit(ctx, EventBookingAccepted, b)
	return nil
}

// StartTrip moves an accepted booking to started. Only the assigned driver
// may start it.
func (s *BookingService) StartTrip(ctx context.Context, bookingID, driverID uuid.UUID) (*BookingResponse, error) {
	b, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.DriverID() == nil || *b.DriverID() != driverID {
		return nil, domain.NewForbiddenError("booking is not assigned to this driver")
	}
	if err := b.StartTrip(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	s.emit(ctx, EventBookingStarted, b)
	resp := ToBookingResponse(b)
	return &resp, nil
}

// CompleteTrip moves a started booking to completed. Only the assigned
// driver may complete it.
func (s *BookingService) CompleteTrip(ctx context.Context, bookingID, driverID uuid.UUID) (*BookingResponse, error) {
	b, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.DriverID() == nil || *b.DriverID() != driverID {
		return nil, domain.NewForbiddenError("booking is not assigned to this driver")
	}
	if err := b.CompleteTrip(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	s.emit(ctx, EventBookingCompleted, b)
	resp := ToBookingResponse(b)
	return &resp, nil
}

// CancelBooking cancels a booking. Customers may cancel their own
// bookings; admins may cancel any.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, requesterID uuid.UUID, role, reason string) (*BookingResponse, error) {
	b, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if role != auth.RoleAdmin && b.CustomerID() != requesterID {
		return nil, domain.NewForbiddenError("you do not own this booking")
	}
	if err := b.Cancel(reason); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", bookingID.String()),
		zap.String("reason", reason))
	s.emit(ctx, EventBookingCancelled, b)
	resp := ToBookingResponse(b)
	return &resp, nil
}

// Rebook creates a fresh pending booking with the same trip parameters as
// an earlier one, repriced against a current route.
func (s *BookingService) Rebook(ctx context.Context, bookingID, customerID uuid.UUID) (*BookingResponse, error) {
	prev, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if prev.CustomerID() != customerID {
		return nil, domain.NewForbiddenError("you do not own this booking")
	}

	pickup := prev.Pickup()
	drop := prev.Drop()
	return s.CreateBooking(ctx, customerID, CreateBookingRequest{
		ServiceType:         string(prev.ServiceType()),
		VehicleType:         string(prev.VehicleType()),
		Pickup:              LocationDTO{Lat: pickup.Lat, Lng: pickup.Lng, Address: pickup.Address},
		Drop:                LocationDTO{Lat: drop.Lat, Lng: drop.Lng, Address: drop.Address},
		ScheduledAt:         time.Now().Add(15 * time.Minute),
		PassengerCount:      prev.PassengerCount(),
		SpecialInstructions: prev.SpecialInstructions(),
	})
}

// resolveLocations validates both endpoints and checks them against the
// service area.
func (s *BookingService) resolveLocations(pickupDTO, dropDTO LocationDTO) (pickup, drop geo.LocationPoint, err error) {
	pickupCoord, err := geo.NewCoordinate(pickupDTO.Lat, pickupDTO.Lng)
	if err != nil {
		return pickup, drop, domain.NewValidationError(fmt.Sprintf("invalid pickup: %v", err))
	}
	dropCoord, err := geo.NewCoordinate(dropDTO.Lat, dropDTO.Lng)
	if err != nil {
		return pickup, drop, domain.NewValidationError(fmt.Sprintf("invalid drop: %v", err))
	}
	if !s.geofence.IsServiceable(pickupCoord) {
		return pickup, drop, domain.NewValidationError("pickup location is outside the serviceable area")
	}
	if !s.geofence.IsServiceable(dropCoord) {
		return pickup, drop, domain.NewValidationError("drop location is outside the serviceable area")
	}
	return geo.LocationPoint{Coordinate: pickupCoord, Address: pickupDTO.Address},
		geo.LocationPoint{Coordinate: dropCoord, Address: dropDTO.Address},
		nil
}

// emit publishes a lifecycle event to Kafka and pushes realtime updates.
// Failures are logged, not surfaced: the state change has already been
// persisted.
func (s *BookingService) emit(ctx context.Context, eventType string, b *booking.Booking) {
	pickup := b.Pickup()
	drop := b.Drop()
	payload := BookingEventPayload{
		BookingID:     b.ID(),
		BookingNumber: b.BookingNumber(),
		CustomerID:    b.CustomerID(),
		DriverID:      b.DriverID(),
		ServiceType:   string(b.ServiceType()),
		VehicleType:   string(b.VehicleType()),
		Status:        string(b.Status()),
		PaymentStatus: string(b.PaymentStatus()),
		TotalFare:     b.Fare().TotalFare,
		PickupLat:     pickup.Lat,
		PickupLng:     pickup.Lng,
		DropLat:       drop.Lat,
		DropLng:       drop.Lng,
		ScheduledAt:   b.ScheduledAt(),
	}

	event, err := kafka.NewCloudEvent(EventSource, eventType, payload)
	if err != nil {
		s.logger.Error("build lifecycle event", zap.Error(err))
	} else if err := s.publisher.PublishEvent(ctx, TopicBookingEvents, b.ID().String(), event); err != nil {
		s.logger.Error("publish lifecycle event",
			zap.String("type", eventType),
			zap.String("booking_id", b.ID().String()),
			zap.Error(err))
	}

	update := realtime.Event{
		Type:          eventType,
		BookingID:     b.ID().String(),
		Status:        string(b.Status()),
		PaymentStatus: string(b.PaymentStatus()),
		Timestamp:     time.Now(),
	}
	for _, topic := range []string{realtime.BookingTopic(b.ID()), realtime.UserTopic(b.CustomerID())} {
		if err := s.notifier.Publish(ctx, topic, update); err != nil {
			s.logger.Warn("publish realtime update", zap.String("topic", topic), zap.Error(err))
		}
	}
}

func authorizeAccess(b *booking.Booking, requesterID uuid.UUID, role string) error {
	switch role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleDriver:
		if b.DriverID() != nil && *b.DriverID() == requesterID {
			return nil
		}
	default:
		if b.CustomerID() == requesterID {
			return nil
		}
	}
	return domain.NewForbiddenError("you do not have access to this booking")
}

// mapRouteError translates routing failures into API errors. A missing
// route is the caller's problem; provider trouble is ours.
func mapRouteError(err error) error {
	var re *routing.RouteError
	if !errors.As(err, &re) {
		return fmt.Errorf("compute route: %w", err)
	}
	switch re.Cause {
	case routing.CauseNoRoute:
		return domain.NewValidationError("no drivable route between pickup and drop")
	case routing.CauseQuotaExceeded, routing.CauseNetwork:
		return &domain.AppError{
			Code:    domain.CodeInternal,
			Message: "routing provider is temporarily unavailable, please retry",
			Status:  http.StatusServiceUnavailable,
		}
	default:
		return &domain.AppError{
			Code:    domain.CodeInternal,
			Message: "routing provider rejected the request",
			Status:  http.StatusBadGateway,
		}
	}
}

func routeResultDTO(r *routing.RouteResult) RouteDTO {
	return RouteDTO{
		DistanceKm:      r.DistanceKm,
		DurationMinutes: r.DurationMinutes,
		Polyline:        routing.EncodePolyline(r.Polyline),
		Source:          string(r.Source),
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func mapPage(result *domain.PaginatedResult[*booking.Booking]) *domain.PaginatedResult[BookingResponse] {
	items := make([]BookingResponse, 0, len(result.Items))
	for _, b := range result.Items {
		items = append(items, ToBookingResponse(b))
	}
	mapped := domain.NewPaginatedResult(items, result.Total, result.Page, result.Limit)
	return &mapped
}
