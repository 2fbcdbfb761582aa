package payment

import (
	"time"

	"github.com/google/uuid"

	"github.com/urbanfleet/service-booking/internal/common/domain"
)

// IntentStatus is the lifecycle state of a payment intent.
type IntentStatus string

const (
	IntentCreated IntentStatus = "created"
	IntentPaid    IntentStatus = "paid"
	IntentFailed  IntentStatus = "failed"
)

// IsTerminal reports whether the intent can no longer change.
func (s IntentStatus) IsTerminal() bool {
	return s == IntentPaid || s == IntentFailed
}

// Purpose says which slice of the fare an intent collects.
type Purpose string

const (
	PurposeAdvance   Purpose = "advance"
	PurposeRemaining Purpose = "remaining"
	PurposeFull      Purpose = "full"
)

// IsValid returns true for a recognized purpose.
func (p Purpose) IsValid() bool {
	switch p {
	case PurposeAdvance, PurposeRemaining, PurposeFull:
		return true
	}
	return false
}

// Intent is a gateway order awaiting collection. At most one non-terminal
// intent may exist per booking at any time.
type Intent struct {
	id             uuid.UUID
	bookingID      uuid.UUID
	customerID     uuid.UUID
	gatewayOrderID string
	amount         int64
	currency       string
	purpose        Purpose
	status         IntentStatus
	createdAt      time.Time
	updatedAt      time.Time
}

// NewIntent creates an intent pending gateway collection. amount is in
// paise.
func NewIntent(bookingID, customerID uuid.UUID, gatewayOrderID string, amount int64, purpose Purpose) (*Intent, error) {
	if bookingID == uuid.Nil || customerID == uuid.Nil {
		return nil, domain.NewValidationError("booking id and customer id are required")
	}
	if gatewayOrderID == "" {
		return nil, domain.NewValidationError("gateway order id is required")
	}
	if amount <= 0 {
		return nil, domain.NewValidationError("payment amount must be positive")
	}
	if !purpose.IsValid() {
		return nil, domain.NewValidationError("invalid payment purpose")
	}
	now := time.Now()
	return &Intent{
		id:             uuid.New(),
		bookingID:      bookingID,
		customerID:     customerID,
		gatewayOrderID: gatewayOrderID,
		amount:         amount,
		currency:       domain.CurrencyINR,
		purpose:        purpose,
		status:         IntentCreated,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructIntent rebuilds an intent from persistence.
func ReconstructIntent(
	id, bookingID, customerID uuid.UUID,
	gatewayOrderID string,
	amount int64,
	currency string,
	purpose Purpose,
	status IntentStatus,
	createdAt, updatedAt time.Time,
) *Intent {
	return &Intent{
		id:             id,
		bookingID:      bookingID,
		customerID:     customerID,
		gatewayOrderID: gatewayOrderID,
		amount:         amount,
		currency:       currency,
		purpose:        purpose,
		status:         status,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

func (i *Intent) ID() uuid.UUID { return i.id }
func (i *Intent) BookingID() uuid.UUID { return i.bookingID }
func (i *Intent) CustomerID() uuid.UUID { return i.customerID }
func (i *Intent) GatewayOrderID() string { return i.gatewayOrderID }
func (i *Intent) Amount() int64 { return i.amount }
func (i *Intent) Currency() string { return i.currency }
func (i *Intent) Purpose() Purpose { return i.purpose }
func (i *Intent) Status() IntentStatus { return i.status }
func (i *Intent) CreatedAt() time.Time { return i.createdAt }
func (i *Intent) UpdatedAt() time.Time { return i.updatedAt }

// MarkPaid settles the intent. Settling an already settled intent is a
// no-op so that replayed confirmations stay idempotent.
func (i *Intent) MarkPaid() error {
	if i.status == IntentPaid {
		return nil
	}
	if i.status.IsTerminal() {
		return domain.NewInvalidStateError(string(i.status), string(IntentPaid))
	}
	i.status = IntentPaid
	i.updatedAt = time.Now()
	return nil
}

// MarkFailed records a failed collection attempt.
func (i *Intent) MarkFailed() error {
	if i.status.IsTerminal() {
		return domain.NewInvalidStateError(string(i.status), string(IntentFailed))
	}
	i.status = IntentFailed
	i.updatedAt = time.Now()
	return nil
}
