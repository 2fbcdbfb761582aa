package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/urbanfleet/service-booking/internal/application"
	"github.com/urbanfleet/service-booking/internal/common/auth"
	"github.com/urbanfleet/service-booking/internal/common/database"
	"github.com/urbanfleet/service-booking/internal/common/health"
	"github.com/urbanfleet/service-booking/internal/common/kafka"
	"github.com/urbanfleet/service-booking/internal/common/logger"
	"github.com/urbanfleet/service-booking/internal/common/middleware"
	"github.com/urbanfleet/service-booking/internal/config"
	"github.com/urbanfleet/service-booking/internal/domain/booking"
	"github.com/urbanfleet/service-booking/internal/domain/geo"
	"github.com/urbanfleet/service-booking/internal/events"
	"github.com/urbanfleet/service-booking/internal/gateway"
	"github.com/urbanfleet/service-booking/internal/geocoding"
	"github.com/urbanfleet/service-booking/internal/handler"
	"github.com/urbanfleet/service-booking/internal/realtime"
	"github.com/urbanfleet/service-booking/internal/repository"
	"github.com/urbanfleet/service-booking/internal/routing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations (dev auto-migrate; production schemas are
	// managed by the deployment pipeline)
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.BookingModel{},
			&repository.PaymentIntentModel{},
			&repository.PaymentRecordModel{},
		); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 15*time.Minute)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize Redis-backed realtime notifier
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	notifier := realtime.NewRedisNotifier(redisClient, log)
	defer func() { _ = notifier.Close() }()

	// Initialize geofence from configured hubs
	hubs := make([]geo.Hub, 0, len(cfg.Hubs))
	for _, hc := range cfg.Hubs {
		hubs = append(hubs, geo.Hub{
			Name:     hc.Name,
			Center:   geo.Coordinate{Lat: hc.Lat, Lng: hc.Lng},
			RadiusKm: hc.RadiusKm,
		})
	}
	geofence := geo.NewGeofence(hubs)

	// Initialize routing engine and geocoder
	routingTimeout := time.Duration(cfg.Routing.TimeoutSeconds) * time.Second
	routeEngine, err := routing.NewEngine(cfg.Routing.APIKey, routingTimeout, cfg.Routing.FallbackSpeedKmh, log)
	if err != nil {
		log.Fatal("failed to create routing engine", zap.Error(err))
	}
	geocoder, err := geocoding.NewGeocoder(cfg.Routing.APIKey, routingTimeout, log)
	if err != nil {
		log.Fatal("failed to create geocoder", zap.Error(err))
	}

	// Initialize payment gateway client
	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.Secret, 10*time.Second, log)

	// Initialize repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	paymentRepo := repository.NewGormPaymentRepository(db)

	// Initialize application services
	bookingService := application.NewBookingService(
		bookingRepo,
		geofence,
		routeEngine,
		booking.NewFareCalculator(booking.CalculatorConfig{}),
		kafkaProducer,
		notifier,
		log,
	)
	paymentService := application.NewPaymentService(
		paymentRepo,
		bookingRepo,
		gatewayClient,
		cfg.Gateway.Secret,
		kafkaProducer,
		notifier,
		log,
	)

	// Initialize and start dispatch event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.Kafka.GroupPrefix + "booking-service"
	dispatchConsumer := events.NewDispatchConsumer(cfg.Kafka.Brokers, groupID, bookingService, log)
	defer func() { _ = dispatchConsumer.Close() }()

	go func() {
		if err := dispatchConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("dispatch consumer error", zap.Error(err))
		}
	}()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-booking")
	healthHandler.RegisterRoutes(router)

	// Register routes
	handler.NewBookingHandler(bookingService, jwtManager).RegisterRoutes(router)
	handler.NewPaymentHandler(paymentService, jwtManager).RegisterRoutes(router)
	handler.NewAdminHandler(bookingService, jwtManager).RegisterRoutes(router)
	handler.NewGeoHandler(geocoder, geofence, jwtManager).RegisterRoutes(router)
	handler.NewRealtimeHandler(notifier, jwtManager, log).RegisterRoutes(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
