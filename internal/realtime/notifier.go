package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a realtime update pushed to subscribed clients.
type Event struct {
	Type          string    `json:"type"`
	BookingID     string    `json:"bookingId"`
	Status        string    `json:"status,omitempty"`
	PaymentStatus string    `json:"paymentStatus,omitempty"`
	Message       string    `json:"message,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// BookingTopic is the channel carrying updates for one booking.
func BookingTopic(bookingID uuid.UUID) string {
	return fmt.Sprintf("booking:%s", bookingID)
}

// UserTopic is the channel carrying notifications for one user.
func UserTopic(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:notifications", userID)
}

// Subscription is a live feed for one topic. Close releases it; Events is
// closed afterwards.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Notifier fans booking updates out to realtime subscribers.
type Notifier interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Close() error
}
