package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/urbanfleet/service-booking/internal/common/domain"
	"github.com/urbanfleet/service-booking/internal/common/kafka"
	"github.com/urbanfleet/service-booking/internal/domain/booking"
	"github.com/urbanfleet/service-booking/internal/domain/geo"
	"github.com/urbanfleet/service-booking/internal/domain/payment"
	"github.com/urbanfleet/service-booking/internal/gateway"
	"github.com/urbanfleet/service-booking/internal/routing"
)

type memBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*booking.Booking
	versions map[uuid.UUID]int
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{
		bookings: make(map[uuid.UUID]*booking.Booking),
		versions: make(map[uuid.UUID]int),
	}
}

func (r *memBookingRepo) Save(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[b.ID()] = b
	r.versions[b.ID()] = b.Version()
	return nil
}

func (r *memBookingRepo) Update(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.versions[b.ID()]
	if !ok {
		return domain.NewNotFoundError("booking", b.ID().String())
	}
	if stored != b.Version() {
		return domain.NewConflictError("booking was modified concurrently")
	}
	b.IncrementVersion()
	r.bookings[b.ID()] = b
	r.versions[b.ID()] = b.Version()
	return nil
}

func (r *memBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", id.String())
	}
	return b, nil
}

func (r *memBookingRepo) FindByNumber(_ context.Context, number string) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.BookingNumber() == number {
			return b, nil
		}
	}
	return nil, domain.NewNotFoundError("booking", number)
}

func (r *memBookingRepo) FindByCustomerID(_ context.Context, customerID uuid.UUID, page, limit int) (*domain.PaginatedResult[*booking.Booking], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*booking.Booking
	for _, b := range r.bookings {
		if b.CustomerID() == customerID {
			items = append(items, b)
		}
	}
	result := domain.NewPaginatedResult(items, int64(len(items)), page, limit)
	return &result, nil
}

func (r *memBookingRepo) ListAll(_ context.Context, status *booking.BookingStatus, page, limit int) (*domain.PaginatedResult[*booking.Booking], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*booking.Booking
	for _, b := range r.bookings {
		if status == nil || b.Status() == *status {
			items = append(items, b)
		}
	}
	result := domain.NewPaginatedResult(items, int64(len(items)), page, limit)
	return &result, nil
}

func (r *memBookingRepo) CountByStatus(_ context.Context) (map[booking.BookingStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[booking.BookingStatus]int64)
	for _, b := range r.bookings {
		counts[b.Status()]++
	}
	return counts, nil
}

type memPaymentRepo struct {
	mu      sync.Mutex
	intents map[uuid.UUID]*payment.Intent
	records map[string]*payment.Record
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{
		intents: make(map[uuid.UUID]*payment.Intent),
		records: make(map[string]*payment.Record),
	}
}

func recordKey(bookingID uuid.UUID, gatewayPaymentID string) string {
	return bookingID.String() + "/" + gatewayPaymentID
}

func (r *memPaymentRepo) SaveIntent(_ context.Context, intent *payment.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.intents {
		if existing.BookingID() == intent.BookingID() && !existing.Status().IsTerminal() {
			return payment.ErrOpenIntentExists
		}
	}
	r.intents[intent.ID()] = intent
	return nil
}

func (r *memPaymentRepo) UpdateIntent(_ context.Context, intent *payment.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.intents[intent.ID()]; !ok {
		return domain.NewNotFoundError("payment intent", intent.ID().String())
	}
	r.intents[intent.ID()] = intent
	return nil
}

func (r *memPaymentRepo) FindIntentByID(_ context.Context, id uuid.UUID) (*payment.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return nil, domain.NewNotFoundError("payment intent", id.String())
	}
	return intent, nil
}

func (r *memPaymentRepo) FindIntentByOrderID(_ context.Context, orderID string) (*payment.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.intents {
		if intent.GatewayOrderID() == orderID {
			return intent, nil
		}
	}
	return nil, domain.NewNotFoundError("payment intent", orderID)
}

func (r *memPaymentRepo) FindOpenIntentByBookingID(_ context.Context, bookingID uuid.UUID) (*payment.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.intents {
		if intent.BookingID() == bookingID && !intent.Status().IsTerminal() {
			return intent, nil
		}
	}
	return nil, domain.NewNotFoundError("payment intent", bookingID.String())
}

func (r *memPaymentRepo) SaveRecord(_ context.Context, record *payment.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recordKey(record.BookingID(), record.GatewayPaymentID())
	if _, ok := r.records[key]; ok {
		return payment.ErrDuplicateRecord
	}
	r.records[key] = record
	return nil
}

func (r *memPaymentRepo) FindRecordByGatewayPaymentID(_ context.Context, bookingID uuid.UUID, gatewayPaymentID string) (*payment.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[recordKey(bookingID, gatewayPaymentID)]
	if !ok {
		return nil, domain.NewNotFoundError("payment record", gatewayPaymentID)
	}
	return record, nil
}

func (r *memPaymentRepo) ListRecordsByBookingID(_ context.Context, bookingID uuid.UUID) ([]*payment.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var records []*payment.Record
	for _, record := range r.records {
		if record.BookingID() == bookingID {
			records = append(records, record)
		}
	}
	return records, nil
}

// fakeRoutes serves a scripted route or error.
type fakeRoutes struct {
	result *routing.RouteResult
	err    error
}

func (f *fakeRoutes) ComputeRoute(context.Context, geo.Coordinate, geo.Coordinate) (*routing.RouteResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRoutes) Fallback(pickup, drop geo.Coordinate) *routing.RouteResult {
	return &routing.RouteResult{
		DistanceKm:      geo.HaversineKm(pickup, drop),
		DurationMinutes: 60,
		Polyline:        []geo.Coordinate{pickup, drop},
		Source:          routing.SourceFallback,
	}
}

// fakePublisher captures published CloudEvents.
type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
	topics []string
	keys   []string
}

func (f *fakePublisher) PublishEvent(_ context.Context, topic, key string, event kafka.CloudEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.keys = append(f.keys, key)
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, len(f.events))
	for i, e := range f.events {
		types[i] = e.Type
	}
	return types
}

// fakeOrders mints sequential gateway orders.
type fakeOrders struct {
	mu     sync.Mutex
	seq    int
	err    error
	orders []*gateway.Order
}

func (f *fakeOrders) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*gateway.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.seq++
	order := &gateway.Order{
		ID:       fmt.Sprintf("order_fake%04d", f.seq),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}
	f.orders = append(f.orders, order)
	return order, nil
}
