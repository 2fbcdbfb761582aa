package geocoding

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"googlemaps.github.io/maps"

	"github.com/urbanfleet/service-booking/internal/domain/geo"
)

type fakeGeocode struct {
	results []maps.GeocodingResult
	err     error
}

func (f *fakeGeocode) ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	return f.results, f.err
}

func TestReverseGeocode_UsesFormattedAddress(t *testing.T) {
	api := &fakeGeocode{results: []maps.GeocodingResult{{FormattedAddress: "MG Road, Bengaluru, Karnataka"}}}
	g := NewGeocoderWithAPI(api, time.Second, zap.NewNop())

	point := geo.Coordinate{Lat: 12.9752, Lng: 77.6057}
	got := g.ReverseGeocode(context.Background(), point)

	if got.Address != "MG Road, Bengaluru, Karnataka" {
		t.Errorf("Address = %q", got.Address)
	}
	if got.Coordinate != point {
		t.Errorf("Coordinate = %v, want %v", got.Coordinate, point)
	}
}

func TestReverseGeocode_FallsBackToCoordinateText(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeGeocode
	}{
		{"provider error", &fakeGeocode{err: errors.New("quota")}},
		{"empty results", &fakeGeocode{}},
		{"blank address", &fakeGeocode{results: []maps.GeocodingResult{{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGeocoderWithAPI(tt.api, time.Second, zap.NewNop())
			got := g.ReverseGeocode(context.Background(), geo.Coordinate{Lat: 12.9752, Lng: 77.6057})
			if got.Address != "12.975200,77.605700" {
				t.Errorf("Address = %q, want coordinate text", got.Address)
			}
		})
	}
}
