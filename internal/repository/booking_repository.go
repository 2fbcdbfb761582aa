package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/urbanfleet/service-booking/internal/common/domain"
	"github.com/urbanfleet/service-booking/internal/domain/booking"
	"github.com/urbanfleet/service-booking/internal/domain/geo"
)

// BookingModel is the GORM mapping of the booking aggregate. Locations,
// fare and route are stored as jsonb snapshots.
type BookingModel struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingNumber       string     `gorm:"uniqueIndex;size:16;not null"`
	CustomerID          uuid.UUID  `gorm:"type:uuid;index;not null"`
	ServiceType         string     `gorm:"size:32;not null"`
	VehicleType         string     `gorm:"size:32;not null"`
	Pickup              []byte     `gorm:"type:jsonb;not null"`
	Drop                []byte     `gorm:"type:jsonb;not null"`
	ScheduledAt         time.Time  `gorm:"not null"`
	PassengerCount      int        `gorm:"not null"`
	SpecialInstructions string     `gorm:"type:text"`
	Status              string     `gorm:"size:32;index;not null"`
	PaymentStatus       string     `gorm:"size:32;not null"`
	DriverID            *uuid.UUID `gorm:"type:uuid;index"`
	VehicleID           *uuid.UUID `gorm:"type:uuid"`
	Fare                []byte     `gorm:"type:jsonb;not null"`
	Route               []byte     `gorm:"type:jsonb;not null"`
	CancellationReason  string     `gorm:"type:text"`
	Version             int        `gorm:"not null"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName maps the model to the bookings table.
func (BookingModel) TableName() string {
	return "bookings"
}

type locationDoc struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// GormBookingRepository persists bookings through GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a booking repository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// Save inserts a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	model, err := toBookingModel(b)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("booking number collision, retry the request")
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// Update persists the aggregate guarded by its version. A stale version
// means another writer got there first.
func (r *GormBookingRepository) Update(ctx context.Context, b *booking.Booking) error {
	model, err := toBookingModel(b)
	if err != nil {
		return err
	}
	model.Version = b.Version() + 1

	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", b.ID(), b.Version()).
		Updates(map[string]interface{}{
			"status":              model.Status,
			"payment_status":      model.PaymentStatus,
			"driver_id":           model.DriverID,
			"vehicle_id":          model.VehicleID,
			"cancellation_reason": model.CancellationReason,
			"version":             model.Version,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified concurrently")
	}
	b.IncrementVersion()
	return nil
}

// FindByID loads one booking.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	var model BookingModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("booking", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return toBookingDomain(&model)
}

// FindByNumber loads one booking by its customer-facing number.
func (r *GormBookingRepository) FindByNumber(ctx context.Context, number string) (*booking.Booking, error) {
	var model BookingModel
	err := r.db.WithContext(ctx).First(&model, "booking_number = ?", number).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("booking", number)
	}
	if err != nil {
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return toBookingDomain(&model)
}

// FindByCustomerID pages through one customer's bookings, newest first.
func (r *GormBookingRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) (*domain.PaginatedResult[*booking.Booking], error) {
	query := r.db.WithContext(ctx).Model(&BookingModel{}).Where("customer_id = ?", customerID)
	return r.paginate(query, page, limit)
}

// ListAll pages through every booking, optionally filtered by status.
func (r *GormBookingRepository) ListAll(ctx context.Context, status *booking.BookingStatus, page, limit int) (*domain.PaginatedResult[*booking.Booking], error) {
	query := r.db.WithContext(ctx).Model(&BookingModel{})
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}
	return r.paginate(query, page, limit)
}

// CountByStatus returns booking counts grouped by status.
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[booking.BookingStatus]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}
	counts := make(map[booking.BookingStatus]int64, len(rows))
	for _, row := range rows {
		counts[booking.BookingStatus(row.Status)] = row.Count
	}
	return counts, nil
}

func (r *GormBookingRepository) paginate(query *gorm.DB, page, limit int) (*domain.PaginatedResult[*booking.Booking], error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	var models []BookingModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	items := make([]*booking.Booking, 0, len(models))
	for i := range models {
		b, err := toBookingDomain(&models[i])
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	result := domain.NewPaginatedResult(items, total, page, limit)
	return &result, nil
}

func toBookingModel(b *booking.Booking) (*BookingModel, error) {
	pickup := b.Pickup()
	drop := b.Drop()

	pickupDoc, err := json.Marshal(locationDoc{Lat: pickup.Lat, Lng: pickup.Lng, Address: pickup.Address})
	if err != nil {
		return nil, fmt.Errorf("marshal pickup: %w", err)
	}
	dropDoc, err := json.Marshal(locationDoc{Lat: drop.Lat, Lng: drop.Lng, Address: drop.Address})
	if err != nil {
		return nil, fmt.Errorf("marshal drop: %w", err)
	}
	fareDoc, err := json.Marshal(b.Fare())
	if err != nil {
		return nil, fmt.Errorf("marshal fare: %w", err)
	}
	routeDoc, err := json.Marshal(b.Route())
	if err != nil {
		return nil, fmt.Errorf("marshal route: %w", err)
	}

	return &BookingModel{
		ID:                  b.ID(),
		BookingNumber:       b.BookingNumber(),
		CustomerID:          b.CustomerID(),
		ServiceType:         string(b.ServiceType()),
		VehicleType:         string(b.VehicleType()),
		Pickup:              pickupDoc,
		Drop:                dropDoc,
		ScheduledAt:         b.ScheduledAt(),
		PassengerCount:      b.PassengerCount(),
		SpecialInstructions: b.SpecialInstructions(),
		Status:              string(b.Status()),
		PaymentStatus:       string(b.PaymentStatus()),
		DriverID:            b.DriverID(),
		VehicleID:           b.VehicleID(),
		Fare:                fareDoc,
		Route:               routeDoc,
		CancellationReason:  b.CancellationReason(),
		Version:             b.Version(),
		CreatedAt:           b.CreatedAt(),
		UpdatedAt:           b.UpdatedAt(),
	}, nil
}

func toBookingDomain(model *BookingModel) (*booking.Booking, error) {
	var pickupDoc, dropDoc locationDoc
	if err := json.Unmarshal(model.Pickup, &pickupDoc); err != nil {
		return nil, fmt.Errorf("unmarshal pickup: %w", err)
	}
	if err := json.Unmarshal(model.Drop, &dropDoc); err != nil {
		return nil, fmt.Errorf("unmarshal drop: %w", err)
	}
	var fare booking.FareBreakdown
	if err := json.Unmarshal(model.Fare, &fare); err != nil {
		return nil, fmt.Errorf("unmarshal fare: %w", err)
	}
	var route booking.RouteSpec
	if err := json.Unmarshal(model.Route, &route); err != nil {
		return nil, fmt.Errorf("unmarshal route: %w", err)
	}

	return booking.ReconstructBooking(
		model.ID,
		model.BookingNumber,
		model.CustomerID,
		booking.ServiceType(model.ServiceType),
		booking.VehicleType(model.VehicleType),
		geo.LocationPoint{Coordinate: geo.Coordinate{Lat: pickupDoc.Lat, Lng: pickupDoc.Lng}, Address: pickupDoc.Address},
		geo.LocationPoint{Coordinate: geo.Coordinate{Lat: dropDoc.Lat, Lng: dropDoc.Lng}, Address: dropDoc.Address},
		model.ScheduledAt,
		model.PassengerCount,
		model.SpecialInstructions,
		booking.BookingStatus(model.Status),
		booking.PaymentStatus(model.PaymentStatus),
		model.DriverID,
		model.VehicleID,
		fare,
		route,
		model.CancellationReason,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	), nil
}
