package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/urbanfleet/service-booking/internal/common/domain"
	"github.com/urbanfleet/service-booking/internal/common/kafka"
)

// TopicDispatchEvents carries driver assignment events from the dispatch
// service.
const TopicDispatchEvents = "dispatch.events"

// EventDriverAssigned announces that dispatch matched a driver to a booking.
const EventDriverAssigned = "dispatch.driver.assigned"

// DriverAssignedPayload is the data section of driver assignment events.
type DriverAssignedPayload struct {
	BookingID uuid.UUID `json:"booking_id"`
	DriverID  uuid.UUID `json:"driver_id"`
	VehicleID uuid.UUID `json:"vehicle_id"`
}

// driverAssigner is the slice of the booking service the consumer needs.
type driverAssigner interface {
	AssignDriver(ctx context.Context, bookingID, driverID, vehicleID uuid.UUID) error
}

// DispatchConsumer applies dispatch decisions to bookings.
type DispatchConsumer struct {
	consumer *kafka.Consumer
	bookings driverAssigner
	logger   *zap.Logger
}

// NewDispatchConsumer creates a consumer in the given group reading
// dispatch events.
func NewDispatchConsumer(brokers []string, groupID string, bookings driverAssigner, logger *zap.Logger) *DispatchConsumer {
	return &DispatchConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, TopicDispatchEvents, logger),
		bookings: bookings,
		logger:   logger,
	}
}

// Start consumes until the context is cancelled.
func (c *DispatchConsumer) Start(ctx context.Context) error {
	c.logger.Info("dispatch consumer starting", zap.String("topic", TopicDispatchEvents))
	return c.consumer.Consume(ctx, c.handle)
}

// Close shuts the underlying reader.
func (c *DispatchConsumer) Close() error {
	return c.consumer.Close()
}

// handle processes one dispatch message. Returning an error leaves the
// offset uncommitted so the message is redelivered; malformed messages and
// permanent rejections are logged and committed instead.
func (c *DispatchConsumer) handle(ctx context.Context, msg kafkago.Message) error {
	var event kafka.CloudEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Warn("skipping malformed dispatch message",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}
	if event.Type != EventDriverAssigned {
		return nil
	}

	var payload DriverAssignedPayload
	if err := event.ParseData(&payload); err != nil {
		c.logger.Warn("skipping dispatch event with malformed payload",
			zap.String("event_id", event.ID),
			zap.Error(err))
		return nil
	}

	err := c.bookings.AssignDriver(ctx, payload.BookingID, payload.DriverID, payload.VehicleID)
	if err == nil {
		return nil
	}

	if appErr, ok := domain.AsAppError(err); ok {
		switch appErr.Code {
		case domain.CodeConflict:
			// update race or payment confirmation still in flight,
			// redeliver and retry
			return err
		default:
			// invalid state or unknown booking will not heal on retry
			c.logger.Warn("rejecting driver assignment",
				zap.String("booking_id", payload.BookingID.String()),
				zap.String("driver_id", payload.DriverID.String()),
				zap.String("code", appErr.Code),
				zap.String("reason", appErr.Message))
			return nil
		}
	}

	c.logger.Error("driver assignment failed, will retry",
		zap.String("booking_id", payload.BookingID.String()),
		zap.Error(err))
	return err
}
