//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"googlemaps.github.io/maps"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/urbanfleet/service-booking/internal/application"
	"github.com/urbanfleet/service-booking/internal/common/kafka"
	"github.com/urbanfleet/service-booking/internal/domain/booking"
	"github.com/urbanfleet/service-booking/internal/domain/geo"
	"github.com/urbanfleet/service-booking/internal/events"
	"github.com/urbanfleet/service-booking/internal/gateway"
	"github.com/urbanfleet/service-booking/internal/realtime"
	"github.com/urbanfleet/service-booking/internal/repository"
	"github.com/urbanfleet/service-booking/internal/routing"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Bookings        *application.BookingService
	Payments        *application.PaymentService
	Consumer        *events.DispatchConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_booking sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(
		&repository.BookingModel{},
		&repository.PaymentIntentModel{},
		&repository.PaymentRecordModel{},
	))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, "booking.events", "payment.events", "dispatch.events")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// stubDirections always returns one route so booking creation can price
// without reaching the real provider.
type stubDirections struct{}

func (stubDirections) Directions(context.Context, *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error) {
	return []maps.Route{{
		Legs: []*maps.Leg{{
			Distance: maps.Distance{Meters: 12000},
			Duration: 25 * time.Minute,
		}},
		OverviewPolyline: maps.Polyline{Points: "_p~iF~ps|U_ulLnnqC"},
	}}, nil, nil
}

// stubOrders mints local gateway orders without HTTP.
type stubOrders struct{ seq int }

func (s *stubOrders) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*gateway.Order, error) {
	s.seq++
	return &gateway.Order{
		ID:       fmt.Sprintf("order_int%04d", s.seq),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

const testGatewaySecret = "integration_webhook_secret"

// setupBookingStack wires up the full booking service stack.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookingRepo := repository.NewGormBookingRepository(db)
	paymentRepo := repository.NewGormPaymentRepository(db)
	producer := kafka.NewProducer(brokers, logger)
	notifier := realtime.NewMemoryNotifier()

	geofence := geo.NewGeofence([]geo.Hub{
		{Name: "Bangalore", Center: geo.Coordinate{Lat: 12.9716, Lng: 77.5946}, RadiusKm: 50},
		{Name: "Mysore", Center: geo.Coordinate{Lat: 12.2958, Lng: 76.6394}, RadiusKm: 50},
	})
	engine := routing.NewEngineWithAPI(stubDirections{}, 5*time.Second, 40.0, logger)

	bookingSvc := application.NewBookingService(
		bookingRepo,
		geofence,
		engine,
		booking.NewFareCalculator(booking.CalculatorConfig{}),
		producer,
		notifier,
		logger,
	)
	paymentSvc := application.NewPaymentService(
		paymentRepo,
		bookingRepo,
		&stubOrders{},
		testGatewaySecret,
		producer,
		notifier,
		logger,
	)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := events.NewDispatchConsumer(brokers, groupID, bookingSvc, logger)

	return &bookingStack{
		Bookings: bookingSvc,
		Payments: paymentSvc,
		Consumer: consumer,
		CleanupProducer: func() {
			_ = producer.Close()
			_ = notifier.Close()
		},
	}
}

// seedPendingPaidBooking inserts a pending booking whose advance has been
// collected, ready for driver assignment.
func seedPendingPaidBooking(t *testing.T, db *gorm.DB, bookingID, customerID uuid.UUID) {
	t.Helper()
	now := time.Now().UTC()

	pickup, _ := json.Marshal(map[string]interface{}{
		"lat": 12.9716, "lng": 77.5946, "address": "MG Road, Bangalore",
	})
	drop, _ := json.Marshal(map[string]interface{}{
		"lat": 12.9352, "lng": 77.6245, "address": "Koramangala, Bangalore",
	})
	fare, _ := json.Marshal(map[string]interface{}{
		"base_fare":        5750,
		"distance_fare":    16560,
		"time_fare":        4313,
		"surge_multiplier": 1.0,
		"total_fare":       26623,
		"advance_amount":   6656,
		"remaining_amount": 19967,
	})
	route, _ := json.Marshal(map[string]interface{}{
		"distance_km":      12.0,
		"duration_minutes": 25,
		"polyline":         "_p~iF~ps|U_ulLnnqC",
		"source":           "provider",
	})

	model := repository.BookingModel{
		ID:             bookingID,
		BookingNumber:  fmt.Sprintf("RB-INT%s", uuid.New().String()[:3]),
		CustomerID:     customerID,
		ServiceType:    "city",
		VehicleType:    "sedan",
		Pickup:         pickup,
		Drop:           drop,
		ScheduledAt:    now.Add(time.Hour),
		PassengerCount: 2,
		Status:         "pending",
		PaymentStatus:  "partial",
		Fare:           fare,
		Route:          route,
		Version:        2,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed booking")
}

// publishTestEvent publishes a CloudEvent to Kafka keyed by the aggregate.
func publishTestEvent(t *testing.T, brokers []string, topic, key, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, key, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForBookingStatus polls the bookings table until the status matches.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expectedStatus string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		err := db.Where("id = ?", bookingID).First(&model).Error
		if err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not transition to %s", expectedStatus)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
