package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/urbanfleet/service-booking/internal/common/domain"
	"github.com/urbanfleet/service-booking/internal/common/kafka"
	"github.com/urbanfleet/service-booking/internal/domain/booking"
	"github.com/urbanfleet/service-booking/internal/domain/payment"
	"github.com/urbanfleet/service-booking/internal/gateway"
	"github.com/urbanfleet/service-booking/internal/realtime"
)

// Settlement event types.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// PaymentEventPayload is the data section of settlement events.
type PaymentEventPayload struct {
	BookingID        uuid.UUID `json:"booking_id"`
	BookingNumber    string    `json:"booking_number"`
	CustomerID       uuid.UUID `json:"customer_id"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Purpose          string    `json:"purpose"`
	PaymentStatus    string    `json:"payment_status"`
}

// PaymentService owns intent creation and settlement verification.
type PaymentService struct {
	payments      payment.Repository
	bookings      booking.Repository
	orders        gateway.OrderCreator
	gatewaySecret string
	publisher     eventPublisher
	notifier      realtime.Notifier
	logger        *zap.Logger
}

// NewPaymentService wires the payment use cases.
func NewPaymentService(
	payments payment.Repository,
	bookings booking.Repository,
	orders gateway.OrderCreator,
	gatewaySecret string,
	publisher eventPublisher,
	notifier realtime.Notifier,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		payments:      payments,
		bookings:      bookings,
		orders:        orders,
		gatewaySecret: gatewaySecret,
		publisher:     publisher,
		notifier:      notifier,
		logger:        logger,
	}
}

// CreateIntent registers a gateway order for one slice of the fare and
// stores the matching intent. At most one open intent per booking.
func (s *PaymentService) CreateIntent(ctx context.Context, customerID uuid.UUID, req CreateIntentRequest) (*IntentResponse, error) {
	purpose := payment.Purpose(req.Purpose)
	if !purpose.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid payment purpose: %s", req.Purpose))
	}

	b, err := s.bookings.FindByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if b.CustomerID() != customerID {
		return nil, domain.NewForbiddenError("you do not own this booking")
	}

	amount, err := intentAmount(b, purpose)
	if err != nil {
		return nil, err
	}

	if existing, err := s.payments.FindOpenIntentByBookingID(ctx, b.ID()); err == nil && existing != nil {
		if existing.Purpose() == purpose && existing.Amount() == amount {
			// same checkout reopened, hand back the existing order
			return toIntentResponse(existing), nil
		}
		return nil, domain.NewConflictError("an open payment intent already exists for this booking")
	}

	order, err := s.orders.CreateOrder(ctx, amount, domain.CurrencyINR, b.BookingNumber())
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	intent, err := payment.NewIntent(b.ID(), customerID, order.ID, amount, purpose)
	if err != nil {
		return nil, err
	}
	if err := s.payments.SaveIntent(ctx, intent); err != nil {
		if errors.Is(err, payment.ErrOpenIntentExists) {
			return nil, domain.NewConflictError("an open payment intent already exists for this booking")
		}
		return nil, fmt.Errorf("save payment intent: %w", err)
	}

	s.logger.Info("payment intent created",
		zap.String("booking_id", b.ID().String()),
		zap.String("gateway_order_id", order.ID),
		zap.String("purpose", string(purpose)),
		zap.Int64("amount", amount))
	return toIntentResponse(intent), nil
}

// VerifyPayment settles a client checkout confirmation. Replays of an
// already settled payment return success without touching state.
func (s *PaymentService) VerifyPayment(ctx context.Context, customerID uuid.UUID, req VerifyPaymentRequest) (*PaymentResultResponse, error) {
	intent, err := s.payments.FindIntentByOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if intent.CustomerID() != customerID {
		return nil, domain.NewForbiddenError("you do not own this payment")
	}
	return s.settle(ctx, intent, req.GatewayPaymentID, req.Signature)
}

// HandleWebhook settles a gateway-originated confirmation. The signature
// authenticates the caller, so no user token is required.
func (s *PaymentService) HandleWebhook(ctx context.Context, req PaymentWebhookRequest) (*PaymentResultResponse, error) {
	intent, err := s.payments.FindIntentByOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		return nil, err
	}

	switch req.Event {
	case "payment.captured":
		return s.settle(ctx, intent, req.GatewayPaymentID, req.Signature)
	case "payment.failed":
		return s.recordFailure(ctx, intent, req.GatewayPaymentID, req.Signature, req.FailureReason)
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("unsupported webhook event: %s", req.Event))
	}
}

// settle verifies the signature, records the settlement exactly once and
// rolls the booking's payment status forward.
func (s *PaymentService) settle(ctx context.Context, intent *payment.Intent, gatewayPaymentID, signature string) (*PaymentResultResponse, error) {
	// idempotency fast path
	if existing, err := s.payments.FindRecordByGatewayPaymentID(ctx, intent.BookingID(), gatewayPaymentID); err == nil && existing != nil {
		b, err := s.bookings.FindByID(ctx, intent.BookingID())
		if err != nil {
			return nil, err
		}
		return &PaymentResultResponse{
			BookingID:        intent.BookingID(),
			GatewayPaymentID: gatewayPaymentID,
			Status:           string(existing.Status()),
			PaymentStatus:    string(b.PaymentStatus()),
			AlreadyProcessed: true,
		}, nil
	}

	if !gateway.VerifySignature(s.gatewaySecret, intent.GatewayOrderID(), gatewayPaymentID, signature) {
		s.logger.Warn("payment signature mismatch",
			zap.String("gateway_order_id", intent.GatewayOrderID()),
			zap.String("gateway_payment_id", gatewayPaymentID))
		return nil, domain.NewUnauthorizedError("payment signature verification failed")
	}

	if err := intent.MarkPaid(); err != nil {
		return nil, err
	}

	record, err := payment.NewCapturedRecord(intent, gatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if err := s.payments.SaveRecord(ctx, record); err != nil {
		if errors.Is(err, payment.ErrDuplicateRecord) {
			// lost the race to a concurrent confirmation
			b, err := s.bookings.FindByID(ctx, intent.BookingID())
			if err != nil {
				return nil, err
			}
			return &PaymentResultResponse{
				BookingID:        intent.BookingID(),
				GatewayPaymentID: gatewayPaymentID,
				Status:           string(payment.RecordCaptured),
				PaymentStatus:    string(b.PaymentStatus()),
				AlreadyProcessed: true,
			}, nil
		}
		return nil, fmt.Errorf("save payment record: %w", err)
	}
	if err := s.payments.UpdateIntent(ctx, intent); err != nil {
		return nil, fmt.Errorf("update payment intent: %w", err)
	}

	b, err := s.advanceBookingPayment(ctx, intent)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment captured",
		zap.String("booking_id", intent.BookingID().String()),
		zap.String("gateway_payment_id", gatewayPaymentID),
		zap.Int64("amount", intent.Amount()))
	s.emitPayment(ctx, EventPaymentCaptured, b, intent, gatewayPaymentID)

	return &PaymentResultResponse{
		BookingID:        intent.BookingID(),
		GatewayPaymentID: gatewayPaymentID,
		Status:           string(payment.RecordCaptured),
		PaymentStatus:    string(b.PaymentStatus()),
	}, nil
}

func (s *PaymentService) recordFailure(ctx context.Context, intent *payment.Intent, gatewayPaymentID, signature, reason string) (*PaymentResultResponse, error) {
	if !gateway.VerifySignature(s.gatewaySecret, intent.GatewayOrderID(), gatewayPaymentID, signature) {
		return nil, domain.NewUnauthorizedError("payment signature verification failed")
	}

	record, err := payment.NewFailedRecord(intent, gatewayPaymentID, reason)
	if err != nil {
		return nil, err
	}
	if err := s.payments.SaveRecord(ctx, record); err != nil && !errors.Is(err, payment.ErrDuplicateRecord) {
		return nil, fmt.Errorf("save payment record: %w", err)
	}
	if err := intent.MarkFailed(); err == nil {
		if err := s.payments.UpdateIntent(ctx, intent); err != nil {
			return nil, fmt.Errorf("update payment intent: %w", err)
		}
	}

	b, err := s.bookings.FindByID(ctx, intent.BookingID())
	if err != nil {
		return nil, err
	}
	if err := b.MarkPaymentFailed(); err == nil {
		if err := s.bookings.Update(ctx, b); err != nil {
			return nil, fmt.Errorf("update booking: %w", err)
		}
	}

	s.logger.Warn("payment failed",
		zap.String("booking_id", intent.BookingID().String()),
		zap.String("gateway_payment_id", gatewayPaymentID),
		zap.String("reason", reason))
	s.emitPayment(ctx, EventPaymentFailed, b, intent, gatewayPaymentID)

	return &PaymentResultResponse{
		BookingID:        intent.BookingID(),
		GatewayPaymentID: gatewayPaymentID,
		Status:           string(payment.RecordFailed),
		PaymentStatus:    string(b.PaymentStatus()),
	}, nil
}

// advanceBookingPayment rolls the booking payment status forward for a
// captured intent, retrying once on an optimistic lock conflict.
func (s *PaymentService) advanceBookingPayment(ctx context.Context, intent *payment.Intent) (*booking.Booking, error) {
	for attempt := 0; attempt < 2; attempt++ {
		b, err := s.bookings.FindByID(ctx, intent.BookingID())
		if err != nil {
			return nil, err
		}

		var markErr error
		switch intent.Purpose() {
		case payment.PurposeAdvance:
			markErr = b.MarkPartiallyPaid()
		default:
			markErr = b.MarkPaid()
		}
		if markErr != nil {
			return nil, markErr
		}

		err = s.bookings.Update(ctx, b)
		if err == nil {
			return b, nil
		}
		if appErr, ok := domain.AsAppError(err); !ok || appErr.Code != domain.CodeConflict {
			return nil, fmt.Errorf("update booking: %w", err)
		}
	}
	return nil, domain.NewConflictError("booking was modified concurrently, retry the confirmation")
}

func (s *PaymentService) emitPayment(ctx context.Context, eventType string, b *booking.Booking, intent *payment.Intent, gatewayPaymentID string) {
	payload := PaymentEventPayload{
		BookingID:        b.ID(),
		BookingNumber:    b.BookingNumber(),
		CustomerID:       b.CustomerID(),
		GatewayOrderID:   intent.GatewayOrderID(),
		GatewayPaymentID: gatewayPaymentID,
		Amount:           intent.Amount(),
		Currency:         intent.Currency(),
		Purpose:          string(intent.Purpose()),
		PaymentStatus:    string(b.PaymentStatus()),
	}

	event, err := kafka.NewCloudEvent(EventSource, eventType, payload)
	if err != nil {
		s.logger.Error("build settlement event", zap.Error(err))
	} else if err := s.publisher.PublishEvent(ctx, TopicPaymentEvents, b.ID().String(), event); err != nil {
		s.logger.Error("publish settlement event",
			zap.String("type", eventType),
			zap.String("booking_id", b.ID().String()),
			zap.Error(err))
	}

	update := realtime.Event{
		Type:          eventType,
		BookingID:     b.ID().String(),
		Status:        string(b.Status()),
		PaymentStatus: string(b.PaymentStatus()),
		Timestamp:     time.Now(),
	}
	for _, topic := range []string{realtime.BookingTopic(b.ID()), realtime.UserTopic(b.CustomerID())} {
		if err := s.notifier.Publish(ctx, topic, update); err != nil {
			s.logger.Warn("publish realtime update", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// intentAmount picks the fare slice an intent may collect given the
// booking's current state.
func intentAmount(b *booking.Booking, purpose payment.Purpose) (int64, error) {
	fare := b.Fare()
	switch purpose {
	case payment.PurposeAdvance:
		if b.PaymentStatus() != booking.PaymentPending && b.PaymentStatus() != booking.PaymentFailed {
			return 0, domain.NewConflictError("advance has already been collected")
		}
		if b.Status() != booking.StatusPending {
			return 0, domain.NewConflictError("advance can only be collected while the booking is pending")
		}
		return fare.AdvanceAmount, nil
	case payment.PurposeFull:
		if b.PaymentStatus().Settled() {
			return 0, domain.NewConflictError("payment has already been collected")
		}
		if b.Status() != booking.StatusPending {
			return 0, domain.NewConflictError("full payment can only be collected while the booking is pending")
		}
		return fare.TotalFare, nil
	case payment.PurposeRemaining:
		if b.Status() != booking.StatusCompleted {
			return 0, domain.NewConflictError("remaining fare is collected after the trip completes")
		}
		if b.PaymentStatus() != booking.PaymentPartial {
			return 0, domain.NewConflictError("no remaining balance to collect")
		}
		if fare.RemainingAmount <= 0 {
			return 0, domain.NewConflictError("no remaining balance to collect")
		}
		return fare.RemainingAmount, nil
	}
	return 0, domain.NewValidationError("invalid payment purpose")
}

func toIntentResponse(intent *payment.Intent) *IntentResponse {
	return &IntentResponse{
		IntentID:       intent.ID(),
		BookingID:      intent.BookingID(),
		GatewayOrderID: intent.GatewayOrderID(),
		Amount:         intent.Amount(),
		Currency:       intent.Currency(),
		Purpose:        string(intent.Purpose()),
		Status:         string(intent.Status()),
	}
}
