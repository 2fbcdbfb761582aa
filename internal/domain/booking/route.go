package booking

// RouteSpec is the route snapshot frozen onto a booking at creation time.
// The polyline is kept in its encoded form and only decoded for display.
type RouteSpec struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes int     `json:"duration_minutes"`
	Polyline        string  `json:"polyline"`
	Source          string  `json:"source"`
}
