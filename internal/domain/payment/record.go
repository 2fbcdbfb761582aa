package payment

import (
	"time"

	"github.com/google/uuid"

	"github.com/urbanfleet/service-booking/internal/common/domain"
)

// RecordStatus is the outcome of one gateway payment attempt.
type RecordStatus string

const (
	RecordCaptured RecordStatus = "captured"
	RecordFailed   RecordStatus = "failed"
)

// Record is an append-only settlement entry. The pair (bookingID,
// gatewayPaymentID) is unique; replaying the same gateway payment must not
// create a second record.
type Record struct {
	id               uuid.UUID
	bookingID        uuid.UUID
	intentID         uuid.UUID
	gatewayOrderID   string
	gatewayPaymentID string
	amount           int64
	currency         string
	purpose          Purpose
	status           RecordStatus
	failureReason    string
	createdAt        time.Time
}

// NewCapturedRecord creates a settlement record for a verified payment.
func NewCapturedRecord(intent *Intent, gatewayPaymentID string) (*Record, error) {
	if gatewayPaymentID == "" {
		return nil, domain.NewValidationError("gateway payment id is required")
	}
	return &Record{
		id:               uuid.New(),
		bookingID:        intent.BookingID(),
		intentID:         intent.ID(),
		gatewayOrderID:   intent.GatewayOrderID(),
		gatewayPaymentID: gatewayPaymentID,
		amount:           intent.Amount(),
		currency:         intent.Currency(),
		purpose:          intent.Purpose(),
		status:           RecordCaptured,
		createdAt:        time.Now(),
	}, nil
}

// NewFailedRecord creates a settlement record for a rejected payment.
func NewFailedRecord(intent *Intent, gatewayPaymentID, reason string) (*Record, error) {
	if gatewayPaymentID == "" {
		return nil, domain.NewValidationError("gateway payment id is required")
	}
	return &Record{
		id:               uuid.New(),
		bookingID:        intent.BookingID(),
		intentID:         intent.ID(),
		gatewayOrderID:   intent.GatewayOrderID(),
		gatewayPaymentID: gatewayPaymentID,
		amount:           intent.Amount(),
		currency:         intent.Currency(),
		purpose:          intent.Purpose(),
		status:           RecordFailed,
		failureReason:    reason,
		createdAt:        time.Now(),
	}, nil
}

// ReconstructRecord rebuilds a record from persistence.
func ReconstructRecord(
	id, bookingID, intentID uuid.UUID,
	gatewayOrderID, gatewayPaymentID string,
	amount int64,
	currency string,
	purpose Purpose,
	status RecordStatus,
	failureReason string,
	createdAt time.Time,
) *Record {
	return &Record{
		id:               id,
		bookingID:        bookingID,
		intentID:         intentID,
		gatewayOrderID:   gatewayOrderID,
		gatewayPaymentID: gatewayPaymentID,
		amount:           amount,
		currency:         currency,
		purpose:          purpose,
		status:           status,
		failureReason:    failureReason,
		createdAt:        createdAt,
	}
}

func (r *Record) ID() uuid.UUID { return r.id }
func (r *Record) BookingID() uuid.UUID { return r.bookingID }
func (r *Record) IntentID() uuid.UUID { return r.intentID }
func (r *Record) GatewayOrderID() string { return r.gatewayOrderID }
func (r *Record) GatewayPaymentID() string { return r.gatewayPaymentID }
func (r *Record) Amount() int64 { return r.amount }
func (r *Record) Currency() string { return r.currency }
func (r *Record) Purpose() Purpose { return r.purpose }
func (r *Record) Status() RecordStatus { return r.status }
func (r *Record) FailureReason() string { return r.failureReason }
func (r *Record) CreatedAt() time.Time { return r.createdAt }
func (r *Record) Captured() bool { return r.status == RecordCaptured }
