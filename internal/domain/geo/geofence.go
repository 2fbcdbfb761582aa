package geo

// DefaultHubRadiusKm is used when a hub does not specify its own radius.
const DefaultHubRadiusKm = 50.0

// Hub is a named circular service area.
type Hub struct {
	Name     string
	Center   Coordinate
	RadiusKm float64
}

// Geofence decides whether a coordinate falls inside the serviceable area:
// the union of all configured hubs.
type Geofence struct {
	hubs []Hub
}

// NewGeofence builds a Geofence over the given hubs. Hubs with a
// non-positive radius fall back to DefaultHubRadiusKm.
func NewGeofence(hubs []Hub) *Geofence {
	normalized := make([]Hub, len(hubs))
	copy(normalized, hubs)
	for i := range normalized {
		if normalized[i].RadiusKm <= 0 {
			normalized[i].RadiusKm = DefaultHubRadiusKm
		}
	}
	return &Geofence{hubs: normalized}
}

// IsServiceable reports whether the point lies within any hub's radius.
func (g *Geofence) IsServiceable(point Coordinate) bool {
	_, ok := g.NearestHub(point)
	return ok
}

// NearestHub returns the closest hub covering the point, or false when the
// point is outside every hub.
func (g *Geofence) NearestHub(point Coordinate) (Hub, bool) {
	var (
		best     Hub
		bestDist float64
		found    bool
	)
	for _, hub := range g.hubs {
		d := HaversineKm(point, hub.Center)
		if d > hub.RadiusKm {
			continue
		}
		if !found || d < bestDist {
			best = hub
			bestDist = d
			found = true
		}
	}
	return best, found
}

// Hubs returns the configured hubs.
func (g *Geofence) Hubs() []Hub {
	out := make([]Hub, len(g.hubs))
	copy(out, g.hubs)
	return out
}
