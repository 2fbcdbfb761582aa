package booking

import (
	"context"

	"github.com/google/uuid"

	"github.com/urbanfleet/service-booking/internal/common/domain"
)

// Repository is the persistence port for booking aggregates. Update applies
// optimistic concurrency control against the aggregate's version and
// returns a conflict error when the stored version has moved on.
type Repository interface {
	Save(ctx context.Context, b *Booking) error
	Update(ctx context.Context, b *Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	FindByNumber(ctx context.Context, bookingNumber string) (*Booking, error)
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) (*domain.PaginatedResult[*Booking], error)
	ListAll(ctx context.Context, status *BookingStatus, page, limit int) (*domain.PaginatedResult[*Booking], error)
	CountByStatus(ctx context.Context) (map[BookingStatus]int64, error)
}
