package geocoding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"googlemaps.github.io/maps"

	"github.com/urbanfleet/service-booking/internal/domain/geo"
)

// reverseGeocodeAPI is the slice of the maps client the geocoder needs.
type reverseGeocodeAPI interface {
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// Geocoder resolves tapped coordinates to human-readable addresses. Failures
// never block location selection; the raw lat/lng text is the fallback.
type Geocoder struct {
	api     reverseGeocodeAPI
	timeout time.Duration
	logger  *zap.Logger
}

// NewGeocoder creates a Geocoder backed by the Google Maps client.
func NewGeocoder(apiKey string, timeout time.Duration, logger *zap.Logger) (*Geocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return NewGeocoderWithAPI(client, timeout, logger), nil
}

// NewGeocoderWithAPI creates a Geocoder over a caller-supplied geocoding
// implementation. Used by tests.
func NewGeocoderWithAPI(api reverseGeocodeAPI, timeout time.Duration, logger *zap.Logger) *Geocoder {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Geocoder{api: api, timeout: timeout, logger: logger}
}

// ReverseGeocode resolves a coordinate into a LocationPoint. When the
// provider fails or returns nothing, the address falls back to "lat,lng"
// text and no error is surfaced.
func (g *Geocoder) ReverseGeocode(ctx context.Context, point geo.Coordinate) geo.LocationPoint {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	results, err := g.api.ReverseGeocode(callCtx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: point.Lat, Lng: point.Lng},
	})
	if err != nil {
		g.logger.Debug("reverse geocode failed, using coordinate text",
			zap.Float64("lat", point.Lat),
			zap.Float64("lng", point.Lng),
			zap.Error(err),
		)
		return geo.LocationPoint{Coordinate: point, Address: point.String()}
	}
	if len(results) == 0 || results[0].FormattedAddress == "" {
		return geo.LocationPoint{Coordinate: point, Address: point.String()}
	}

	return geo.LocationPoint{Coordinate: point, Address: results[0].FormattedAddress}
}
