package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/urbanfleet/service-booking/internal/common/domain"
	"github.com/urbanfleet/service-booking/internal/domain/payment"
)

// PaymentIntentModel is the GORM mapping of a payment intent.
type PaymentIntentModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID      uuid.UUID `gorm:"type:uuid;index;not null"`
	CustomerID     uuid.UUID `gorm:"type:uuid;not null"`
	GatewayOrderID string    `gorm:"uniqueIndex;size:64;not null"`
	Amount         int64     `gorm:"not null"`
	Currency       string    `gorm:"size:8;not null"`
	Purpose        string    `gorm:"size:16;not null"`
	Status         string    `gorm:"size:16;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName maps the model to the payment_intents table.
func (PaymentIntentModel) TableName() string {
	return "payment_intents"
}

// PaymentRecordModel is the GORM mapping of a settlement record. The
// composite unique index is the idempotency guarantee: the same gateway
// payment can be recorded at most once per booking.
type PaymentRecordModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID        uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_booking_gateway_payment;not null"`
	IntentID         uuid.UUID `gorm:"type:uuid;not null"`
	GatewayOrderID   string    `gorm:"size:64;not null"`
	GatewayPaymentID string    `gorm:"size:64;uniqueIndex:idx_booking_gateway_payment;not null"`
	Amount           int64     `gorm:"not null"`
	Currency         string    `gorm:"size:8;not null"`
	Purpose          string    `gorm:"size:16;not null"`
	Status           string    `gorm:"size:16;not null"`
	FailureReason    string    `gorm:"type:text"`
	CreatedAt        time.Time
}

// TableName maps the model to the payment_records table.
func (PaymentRecordModel) TableName() string {
	return "payment_records"
}

// GormPaymentRepository persists payment intents and records through GORM.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a payment repository.
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// SaveIntent inserts a new intent after checking the one-open-intent rule
// inside a transaction.
func (r *GormPaymentRepository) SaveIntent(ctx context.Context, intent *payment.Intent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		err := tx.Model(&PaymentIntentModel{}).
			Where("booking_id = ? AND status = ?", intent.BookingID(), string(payment.IntentCreated)).
			Count(&open).Error
		if err != nil {
			return fmt.Errorf("check open intents: %w", err)
		}
		if open > 0 {
			return payment.ErrOpenIntentExists
		}
		if err := tx.Create(toIntentModel(intent)).Error; err != nil {
			return fmt.Errorf("insert payment intent: %w", err)
		}
		return nil
	})
}

// UpdateIntent persists intent status changes.
func (r *GormPaymentRepository) UpdateIntent(ctx context.Context, intent *payment.Intent) error {
	result := r.db.WithContext(ctx).
		Model(&PaymentIntentModel{}).
		Where("id = ?", intent.ID()).
		Updates(map[string]interface{}{
			"status":     string(intent.Status()),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("update payment intent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("payment intent", intent.ID().String())
	}
	return nil
}

// FindIntentByID loads one intent.
func (r *GormPaymentRepository) FindIntentByID(ctx context.Context, id uuid.UUID) (*payment.Intent, error) {
	var model PaymentIntentModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("payment intent", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("find payment intent: %w", err)
	}
	return toIntentDomain(&model), nil
}

// FindIntentByOrderID loads the intent matching a gateway order.
func (r *GormPaymentRepository) FindIntentByOrderID(ctx context.Context, gatewayOrderID string) (*payment.Intent, error) {
	var model PaymentIntentModel
	err := r.db.WithContext(ctx).First(&model, "gateway_order_id = ?", gatewayOrderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("payment intent", gatewayOrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("find payment intent: %w", err)
	}
	return toIntentDomain(&model), nil
}

// FindOpenIntentByBookingID loads the booking's non-terminal intent if any.
func (r *GormPaymentRepository) FindOpenIntentByBookingID(ctx context.Context, bookingID uuid.UUID) (*payment.Intent, error) {
	var model PaymentIntentModel
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, string(payment.IntentCreated)).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("payment intent", bookingID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("find payment intent: %w", err)
	}
	return toIntentDomain(&model), nil
}

// SaveRecord appends a settlement record. The unique index on (booking_id,
// gateway_payment_id) is the authority on duplicates, concurrent writers
// included.
func (r *GormPaymentRepository) SaveRecord(ctx context.Context, record *payment.Record) error {
	err := r.db.WithContext(ctx).Create(toRecordModel(record)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return payment.ErrDuplicateRecord
	}
	if err != nil {
		return fmt.Errorf("insert payment record: %w", err)
	}
	return nil
}

// FindRecordByGatewayPaymentID loads one settlement record.
func (r *GormPaymentRepository) FindRecordByGatewayPaymentID(ctx context.Context, bookingID uuid.UUID, gatewayPaymentID string) (*payment.Record, error) {
	var model PaymentRecordModel
	err := r.db.WithContext(ctx).
		First(&model, "booking_id = ? AND gateway_payment_id = ?", bookingID, gatewayPaymentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("payment record", gatewayPaymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("find payment record: %w", err)
	}
	return toRecordDomain(&model), nil
}

// ListRecordsByBookingID loads every settlement record for a booking,
// oldest first.
func (r *GormPaymentRepository) ListRecordsByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*payment.Record, error) {
	var models []PaymentRecordModel
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list payment records: %w", err)
	}
	records := make([]*payment.Record, 0, len(models))
	for i := range models {
		records = append(records, toRecordDomain(&models[i]))
	}
	return records, nil
}

func toIntentModel(intent *payment.Intent) *PaymentIntentModel {
	return &PaymentIntentModel{
		ID:             intent.ID(),
		BookingID:      intent.BookingID(),
		CustomerID:     intent.CustomerID(),
		GatewayOrderID: intent.GatewayOrderID(),
		Amount:         intent.Amount(),
		Currency:       intent.Currency(),
		Purpose:        string(intent.Purpose()),
		Status:         string(intent.Status()),
		CreatedAt:      intent.CreatedAt(),
		UpdatedAt:      intent.UpdatedAt(),
	}
}

func toIntentDomain(model *PaymentIntentModel) *payment.Intent {
	return payment.ReconstructIntent(
		model.ID,
		model.BookingID,
		model.CustomerID,
		model.GatewayOrderID,
		model.Amount,
		model.Currency,
		payment.Purpose(model.Purpose),
		payment.IntentStatus(model.Status),
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func toRecordModel(record *payment.Record) *PaymentRecordModel {
	return &PaymentRecordModel{
		ID:               record.ID(),
		BookingID:        record.BookingID(),
		IntentID:         record.IntentID(),
		GatewayOrderID:   record.GatewayOrderID(),
		GatewayPaymentID: record.GatewayPaymentID(),
		Amount:           record.Amount(),
		Currency:         record.Currency(),
		Purpose:          string(record.Purpose()),
		Status:           string(record.Status()),
		FailureReason:    record.FailureReason(),
		CreatedAt:        record.CreatedAt(),
	}
}

func toRecordDomain(model *PaymentRecordModel) *payment.Record {
	return payment.ReconstructRecord(
		model.ID,
		model.BookingID,
		model.IntentID,
		model.GatewayOrderID,
		model.GatewayPaymentID,
		model.Amount,
		model.Currency,
		payment.Purpose(model.Purpose),
		payment.RecordStatus(model.Status),
		model.FailureReason,
		model.CreatedAt,
	)
}
