package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDuplicateRecord is returned by SaveRecord when a record for the same
// (bookingID, gatewayPaymentID) pair already exists. Callers treat it as
// the idempotency signal, not a failure.
var ErrDuplicateRecord = errors.New("payment record already exists")

// ErrOpenIntentExists is returned by SaveIntent when the booking already
// has a non-terminal intent.
var ErrOpenIntentExists = errors.New("an open payment intent already exists for this booking")

// Repository is the persistence port for payment intents and settlement
// records.
type Repository interface {
	SaveIntent(ctx context.Context, intent *Intent) error
	UpdateIntent(ctx context.Context, intent *Intent) error
	FindIntentByID(ctx context.Context, id uuid.UUID) (*Intent, error)
	FindIntentByOrderID(ctx context.Context, gatewayOrderID string) (*Intent, error)
	FindOpenIntentByBookingID(ctx context.Context, bookingID uuid.UUID) (*Intent, error)

	SaveRecord(ctx context.Context, record *Record) error
	FindRecordByGatewayPaymentID(ctx context.Context, bookingID uuid.UUID, gatewayPaymentID string) (*Record, error)
	ListRecordsByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*Record, error)
}
