package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/urbanfleet/service-booking/internal/common/auth"
	"github.com/urbanfleet/service-booking/internal/common/domain"
	"github.com/urbanfleet/service-booking/internal/domain/booking"
	"github.com/urbanfleet/service-booking/internal/domain/geo"
	"github.com/urbanfleet/service-booking/internal/realtime"
	"github.com/urbanfleet/service-booking/internal/routing"
)

var testHubs = []geo.Hub{
	{Name: "Bangalore", Center: geo.Coordinate{Lat: 12.9716, Lng: 77.5946}, RadiusKm: 50},
	{Name: "Mysore", Center: geo.Coordinate{Lat: 12.2958, Lng: 76.6394}, RadiusKm: 50},
}

var (
	bangalorePickup = LocationDTO{Lat: 12.9716, Lng: 77.5946, Address: "MG Road, Bangalore"}
	bangaloreDrop   = LocationDTO{Lat: 12.9352, Lng: 77.6245, Address: "Koramangala, Bangalore"}
	mysoreDrop      = LocationDTO{Lat: 12.2958, Lng: 76.6394, Address: "Mysore Palace"}
	mumbaiDrop      = LocationDTO{Lat: 19.0760, Lng: 72.8777, Address: "Mumbai"}
)

func providerRoute(distanceKm float64, minutes int) *routing.RouteResult {
	return &routing.RouteResult{
		DistanceKm:      distanceKm,
		DurationMinutes: minutes,
		Polyline:        []geo.Coordinate{{Lat: 12.9716, Lng: 77.5946}, {Lat: 12.9352, Lng: 77.6245}},
		Source:          routing.SourceProvider,
	}
}

type bookingFixture struct {
	svc       *BookingService
	repo      *memBookingRepo
	routes    *fakeRoutes
	publisher *fakePublisher
	notifier  *realtime.MemoryNotifier
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	f := &bookingFixture{
		repo:      newMemBookingRepo(),
		routes:    &fakeRoutes{result: providerRoute(10.5, 32)},
		publisher: &fakePublisher{},
		notifier:  realtime.NewMemoryNotifier(),
	}
	t.Cleanup(func() { f.notifier.Close() })
	f.svc = NewBookingService(
		f.repo,
		geo.NewGeofence(testHubs),
		f.routes,
		booking.NewFareCalculator(booking.CalculatorConfig{}),
		f.publisher,
		f.notifier,
		zap.NewNop(),
	)
	return f
}

func createBookingReq() CreateBookingRequest {
	return CreateBookingRequest{
		ServiceType:    string(booking.ServiceCity),
		VehicleType:    string(booking.VehicleSedan),
		Pickup:         bangalorePickup,
		Drop:           bangaloreDrop,
		ScheduledAt:    time.Now().Add(time.Hour),
		PassengerCount: 2,
	}
}

func TestQuote(t *testing.T) {
	f := newBookingFixture(t)

	resp, err := f.svc.Quote(context.Background(), QuoteRequest{
		ServiceType: string(booking.ServiceCity),
		VehicleType: string(booking.VehicleSedan),
		Pickup:      bangalorePickup,
		Drop:        bangaloreDrop,
	})
	require.NoError(t, err)

	assert.False(t, resp.EstimateOnly)
	require.NotNil(t, resp.Fare)
	assert.Equal(t, "provider", resp.Route.Source)
	assert.Equal(t, routing.EncodePolyline(f.routes.result.Polyline), resp.Route.Polyline)
	assert.Equal(t, resp.Fare.TotalFare, resp.Fare.AdvanceAmount+resp.Fare.RemainingAmount)
}

func TestQuoteProviderDownReturnsEstimateWithoutFare(t *testing.T) {
	f := newBookingFixture(t)
	f.routes.err = &routing.RouteError{Cause: routing.CauseQuotaExceeded}

	resp, err := f.svc.Quote(context.Background(), QuoteRequest{
		ServiceType: string(booking.ServiceCity),
		VehicleType: string(booking.VehicleSedan),
		Pickup:      bangalorePickup,
		Drop:        mysoreDrop,
	})
	require.NoError(t, err)

	assert.True(t, resp.EstimateOnly)
	assert.Nil(t, resp.Fare, "estimate must never carry a fare")
	assert.Equal(t, "fallback", resp.Route.Source)
}

func TestQuoteNoRoute(t *testing.T) {
	f := newBookingFixture(t)
	f.routes.err = &routing.RouteError{Cause: routing.CauseNoRoute}

	_, err := f.svc.Quote(context.Background(), QuoteRequest{
		ServiceType: string(booking.ServiceCity),
		VehicleType: string(booking.VehicleSedan),
		Pickup:      bangalorePickup,
		Drop:        bangaloreDrop,
	})
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeValidation, appErr.Code)
}

func TestCreateBooking(t *testing.T) {
	f := newBookingFixture(t)
	customerID := uuid.New()

	resp, err := f.svc.CreateBooking(context.Background(), customerID, createBookingReq())
	require.NoError(t, err)

	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "pending", resp.PaymentStatus)
	assert.Equal(t, customerID, resp.CustomerID)
	assert.Equal(t, "provider", resp.Route.Source)
	assert.NotEmpty(t, resp.BookingNumber)

	stored, err := f.repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, stored.Status())

	// the route snapshot carries the polyline in its encoded form
	assert.Equal(t, routing.EncodePolyline(f.routes.result.Polyline), stored.Route().Polyline)
	decoded, err := routing.DecodePolyline(stored.Route().Polyline)
	require.NoError(t, err)
	assert.Len(t, decoded, len(f.routes.result.Polyline))

	assert.Equal(t, []string{EventBookingCreated}, f.publisher.eventTypes())
	assert.Equal(t, []string{TopicBookingEvents}, f.publisher.topics)
}

func TestCreateBookingOutsideGeofence(t *testing.T) {
	f := newBookingFixture(t)

	req := createBookingReq()
	req.Drop = mumbaiDrop
	_, err := f.svc.CreateBooking(context.Background(), uuid.New(), req)
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Message, "serviceable area")
}

func TestCreateBookingProviderDown(t *testing.T) {
	f := newBookingFixture(t)
	f.routes.err = &routing.RouteError{Cause: routing.CauseQuotaExceeded}

	_, err := f.svc.CreateBooking(context.Background(), uuid.New(), createBookingReq())
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 503, appErr.Status, "booking creation never prices against the fallback")
}

func TestLifecycleThroughService(t *testing.T) {
	f := newBookingFixture(t)
	customerID := uuid.New()
	driverID := uuid.New()
	vehicleID := uuid.New()

	created, err := f.svc.CreateBooking(context.Background(), customerID, createBookingReq())
	require.NoError(t, err)

	// advance not collected yet
	err = f.svc.AssignDriver(context.Background(), created.ID, driverID, vehicleID)
	require.Error(t, err)

	stored, err := f.repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.NoError(t, stored.MarkPartiallyPaid())
	require.NoError(t, f.repo.Update(context.Background(), stored))

	require.NoError(t, f.svc.AssignDriver(context.Background(), created.ID, driverID, vehicleID))

	// redelivered assignment is a no-op
	require.NoError(t, f.svc.AssignDriver(context.Background(), created.ID, driverID, vehicleID))

	_, err = f.svc.StartTrip(context.Background(), created.ID, uuid.New())
	require.Error(t, err, "only the assigned driver may start")

	started, err := f.svc.StartTrip(context.Background(), created.ID, driverID)
	require.NoError(t, err)
	assert.Equal(t, "started", started.Status)

	completed, err := f.svc.CompleteTrip(context.Background(), created.ID, driverID)
	require.NoError(t, err)
	assert.Equal(t, "completed", completed.Status)

	assert.Equal(t, []string{
		EventBookingCreated,
		EventBookingAccepted,
		EventBookingStarted,
		EventBookingCompleted,
	}, f.publisher.eventTypes())

	// every lifecycle event is keyed by the booking, so one booking's
	// events stay ordered on a single partition
	for _, key := range f.publisher.keys {
		assert.Equal(t, created.ID.String(), key)
	}
}

func TestCancelBookingOwnership(t *testing.T) {
	f := newBookingFixture(t)
	customerID := uuid.New()

	created, err := f.svc.CreateBooking(context.Background(), customerID, createBookingReq())
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(context.Background(), created.ID, uuid.New(), auth.RoleCustomer, "not mine")
	require.Error(t, err)

	cancelled, err := f.svc.CancelBooking(context.Background(), created.ID, customerID, auth.RoleCustomer, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "plans changed", cancelled.CancellationReason)
}

func TestGetBookingAuthorization(t *testing.T) {
	f := newBookingFixture(t)
	customerID := uuid.New()

	created, err := f.svc.CreateBooking(context.Background(), customerID, createBookingReq())
	require.NoError(t, err)

	_, err = f.svc.GetBooking(context.Background(), created.ID, customerID, auth.RoleCustomer)
	assert.NoError(t, err)

	_, err = f.svc.GetBooking(context.Background(), created.ID, uuid.New(), auth.RoleCustomer)
	assert.Error(t, err)

	_, err = f.svc.GetBooking(context.Background(), created.ID, uuid.New(), auth.RoleAdmin)
	assert.NoError(t, err)
}

func TestRebook(t *testing.T) {
	f := newBookingFixture(t)
	customerID := uuid.New()

	created, err := f.svc.CreateBooking(context.Background(), customerID, createBookingReq())
	require.NoError(t, err)

	_, err = f.svc.Rebook(context.Background(), created.ID, uuid.New())
	require.Error(t, err, "only the owner may rebook")

	rebooked, err := f.svc.Rebook(context.Background(), created.ID, customerID)
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, rebooked.ID)
	assert.NotEqual(t, created.BookingNumber, rebooked.BookingNumber)
	assert.Equal(t, created.Pickup, rebooked.Pickup)
	assert.Equal(t, created.Drop, rebooked.Drop)
	assert.Equal(t, "pending", rebooked.Status)
}

func TestStats(t *testing.T) {
	f := newBookingFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateBooking(context.Background(), uuid.New(), createBookingReq())
		require.NoError(t, err)
	}

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(3), stats.ByStatus["pending"])
}

func TestRealtimeUpdatesOnCreate(t *testing.T) {
	f := newBookingFixture(t)
	customerID := uuid.New()

	sub, err := f.notifier.Subscribe(context.Background(), realtime.UserTopic(customerID))
	require.NoError(t, err)
	defer sub.Close()

	_, err = f.svc.CreateBooking(context.Background(), customerID, createBookingReq())
	require.NoError(t, err)

	select {
	case event := <-sub.Events():
		assert.Equal(t, EventBookingCreated, event.Type)
		assert.Equal(t, "pending", event.Status)
	case <-time.After(time.Second):
		t.Fatal("no realtime update delivered")
	}
}
