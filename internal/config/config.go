package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/urbanfleet/service-booking/internal/common/database"
)

// HubConfig is one serviceable hub: a named center with a radius.
type HubConfig struct {
	Name     string
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// KafkaConfig holds broker addresses and the consumer group prefix.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// RoutingConfig holds Directions provider settings.
type RoutingConfig struct {
	APIKey           string
	TimeoutSeconds   int
	FallbackSpeedKmh float64
}

// GatewayConfig holds payment gateway credentials.
type GatewayConfig struct {
	BaseURL string
	KeyID   string
	Secret  string
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port      string
	AppEnv    string
	DBConfig  database.PostgresConfig
	JWTSecret string
	Kafka     KafkaConfig
	RedisAddr string
	Routing   RoutingConfig
	Gateway   GatewayConfig
	Hubs      []HubConfig
}

// Load reads configuration from BOOKING_-prefixed environment variables with
// development defaults.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("service_port", ":8083")
	v.SetDefault("app_env", "development")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")
	v.SetDefault("db_name", "booking")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("jwt_secret", "dev-secret-change-me")
	v.SetDefault("kafka_brokers", "localhost:9092")
	v.SetDefault("kafka_group_prefix", "urbanfleet.")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("maps_api_key", "")
	v.SetDefault("routing_timeout_seconds", 5)
	v.SetDefault("routing_fallback_speed_kmh", 40.0)
	v.SetDefault("gateway_base_url", "https://api.razorpay.com/v1")
	v.SetDefault("gateway_key_id", "")
	v.SetDefault("gateway_secret", "")
	// name=lat,lng,radiusKm entries separated by ";"
	v.SetDefault("geofence_hubs", "Bangalore=12.9716,77.5946,50;Mysore=12.2958,76.6394,50")

	hubs, err := parseHubs(v.GetString("geofence_hubs"))
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKING_GEOFENCE_HUBS: %w", err)
	}

	return &ServiceConfig{
		Port:   v.GetString("service_port"),
		AppEnv: v.GetString("app_env"),
		DBConfig: database.PostgresConfig{
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			DBName:   v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
		},
		JWTSecret: v.GetString("jwt_secret"),
		Kafka: KafkaConfig{
			Brokers:     strings.Split(v.GetString("kafka_brokers"), ","),
			GroupPrefix: v.GetString("kafka_group_prefix"),
		},
		RedisAddr: v.GetString("redis_addr"),
		Routing: RoutingConfig{
			APIKey:           v.GetString("maps_api_key"),
			TimeoutSeconds:   v.GetInt("routing_timeout_seconds"),
			FallbackSpeedKmh: v.GetFloat64("routing_fallback_speed_kmh"),
		},
		Gateway: GatewayConfig{
			BaseURL: v.GetString("gateway_base_url"),
			KeyID:   v.GetString("gateway_key_id"),
			Secret:  v.GetString("gateway_secret"),
		},
		Hubs: hubs,
	}, nil
}

func parseHubs(raw string) ([]HubConfig, error) {
	entries := strings.Split(raw, ";")
	hubs := make([]HubConfig, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, rest, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("hub entry %q missing '='", entry)
		}
		parts := strings.Split(rest, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("hub entry %q must be name=lat,lng,radiusKm", entry)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("hub %s latitude: %w", name, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("hub %s longitude: %w", name, err)
		}
		radius, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("hub %s radius: %w", name, err)
		}
		hubs = append(hubs, HubConfig{Name: name, Lat: lat, Lng: lng, RadiusKm: radius})
	}
	if len(hubs) == 0 {
		return nil, fmt.Errorf("at least one hub is required")
	}
	return hubs, nil
}
