package geo

import (
	"math"
	"testing"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Coordinate
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         Coordinate{Lat: 12.9716, Lng: 77.5946},
			b:         Coordinate{Lat: 12.9716, Lng: 77.5946},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "Bangalore to Mysore (~128km great circle)",
			a:         Coordinate{Lat: 12.9716, Lng: 77.5946},
			b:         Coordinate{Lat: 12.2958, Lng: 76.6394},
			wantKm:    128,
			tolerance: 5,
		},
		{
			name:      "Bangalore to Mumbai (~840km)",
			a:         Coordinate{Lat: 12.9716, Lng: 77.5946},
			b:         Coordinate{Lat: 19.0760, Lng: 72.8777},
			wantKm:    840,
			tolerance: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	pairs := []struct{ a, b Coordinate }{
		{Coordinate{12.9716, 77.5946}, Coordinate{12.2958, 76.6394}},
		{Coordinate{-33.8688, 151.2093}, Coordinate{51.5074, -0.1278}},
		{Coordinate{0, 0}, Coordinate{0, 180}},
	}
	for _, p := range pairs {
		d1 := HaversineKm(p.a, p.b)
		d2 := HaversineKm(p.b, p.a)
		if math.Abs(d1-d2) > 1e-9 {
			t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
		}
	}
}

func TestNewCoordinate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr bool
	}{
		{"valid", 12.9716, 77.5946, false},
		{"lat too high", 90.001, 0, true},
		{"lat too low", -90.001, 0, true},
		{"lng too high", 0, 180.001, true},
		{"lng too low", 0, -180.001, true},
		{"boundary poles", 90, 180, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCoordinate(tt.lat, tt.lng)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewCoordinate(%f, %f) error = %v, wantErr %v", tt.lat, tt.lng, err, tt.wantErr)
			}
		})
	}
}

func TestGeofence_IsServiceable(t *testing.T) {
	fence := NewGeofence([]Hub{
		{Name: "Bangalore", Center: Coordinate{Lat: 12.9716, Lng: 77.5946}, RadiusKm: 50},
		{Name: "Mysore", Center: Coordinate{Lat: 12.2958, Lng: 76.6394}, RadiusKm: 50},
	})

	tests := []struct {
		name  string
		point Coordinate
		want  bool
	}{
		{"bangalore city center", Coordinate{Lat: 12.9716, Lng: 77.5946}, true},
		{"bangalore suburb", Coordinate{Lat: 13.1986, Lng: 77.7066}, true},
		{"mysore palace", Coordinate{Lat: 12.3052, Lng: 76.6552}, true},
		{"mumbai is out of zone", Coordinate{Lat: 19.0760, Lng: 72.8777}, false},
		{"midway between hubs is out of both radii", Coordinate{Lat: 12.6337, Lng: 77.1170}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fence.IsServiceable(tt.point); got != tt.want {
				t.Errorf("IsServiceable(%v) = %v, want %v", tt.point, got, tt.want)
			}
		})
	}
}

func TestGeofence_DefaultRadius(t *testing.T) {
	fence := NewGeofence([]Hub{
		{Name: "Bangalore", Center: Coordinate{Lat: 12.9716, Lng: 77.5946}},
	})
	hub, ok := fence.NearestHub(Coordinate{Lat: 12.9716, Lng: 77.5946})
	if !ok {
		t.Fatal("expected hub center to be serviceable")
	}
	if hub.RadiusKm != DefaultHubRadiusKm {
		t.Errorf("radius = %f, want default %f", hub.RadiusKm, DefaultHubRadiusKm)
	}
}
