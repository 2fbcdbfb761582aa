package routing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"googlemaps.github.io/maps"

	"github.com/urbanfleet/service-booking/internal/domain/geo"
)

// RouteSource records how a RouteResult was obtained.
type RouteSource string

const (
	// SourceProvider means the Directions provider produced the route.
	SourceProvider RouteSource = "provider"
	// SourceFallback means the straight-line estimate produced the route.
	SourceFallback RouteSource = "fallback"
)

// RouteResult is the computed route between a pickup and a drop.
type RouteResult struct {
	DistanceKm      float64          `json:"distance_km"`
	DurationMinutes int              `json:"duration_minutes"`
	Polyline        []geo.Coordinate `json:"polyline"`
	Source          RouteSource      `json:"source"`
}

// RouteErrorCause classifies a routing failure.
type RouteErrorCause string

const (
	CauseNoRoute        RouteErrorCause = "no_route"
	CauseQuotaExceeded  RouteErrorCause = "quota_exceeded"
	CauseProviderDenied RouteErrorCause = "provider_denied"
	CauseNetwork        RouteErrorCause = "network"
)

// RouteError is a typed routing failure. Callers decide whether to retry or
// fall back; the engine never substitutes the fallback on its own.
type RouteError struct {
	Cause RouteErrorCause
	Err   error
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("route computation failed (%s): %v", e.Cause, e.Err)
	}
	return fmt.Sprintf("route computation failed (%s)", e.Cause)
}

// Unwrap exposes the underlying provider error.
func (e *RouteError) Unwrap() error { return e.Err }

// directionsAPI is the slice of the maps client the engine needs; narrowed
// so tests can substitute a fake provider.
type directionsAPI interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// Engine obtains driving routes from the Directions provider with a bounded
// timeout and a single retry on transport failure.
type Engine struct {
	api              directionsAPI
	timeout          time.Duration
	fallbackSpeedKmh float64
	logger           *zap.Logger
}

// NewEngine creates an Engine backed by the Google Maps client.
func NewEngine(apiKey string, timeout time.Duration, fallbackSpeedKmh float64, logger *zap.Logger) (*Engine, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return newEngine(client, timeout, fallbackSpeedKmh, logger), nil
}

// NewEngineWithAPI creates an Engine over a caller-supplied Directions
// implementation. Used by tests.
func NewEngineWithAPI(api directionsAPI, timeout time.Duration, fallbackSpeedKmh float64, logger *zap.Logger) *Engine {
	return newEngine(api, timeout, fallbackSpeedKmh, logger)
}

func newEngine(api directionsAPI, timeout time.Duration, fallbackSpeedKmh float64, logger *zap.Logger) *Engine {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if fallbackSpeedKmh <= 0 {
		fallbackSpeedKmh = 40.0
	}
	return &Engine{api: api, timeout: timeout, fallbackSpeedKmh: fallbackSpeedKmh, logger: logger}
}

// ComputeRoute asks the Directions provider for a driving route from pickup
// to drop. Transport failures are retried once before surfacing a network
// RouteError; provider rejections surface immediately with their cause.
func (e *Engine) ComputeRoute(ctx context.Context, pickup, drop geo.Coordinate) (*RouteResult, error) {
	req := &maps.DirectionsRequest{
		Origin:      pickup.String(),
		Destination: drop.String(),
		Mode:        maps.TravelModeDriving,
		Units:       maps.UnitsMetric,
	}

	routes, routeErr := e.callProvider(ctx, req)
	if routeErr != nil && routeErr.Cause == CauseNetwork {
		e.logger.Warn("directions call failed, retrying once", zap.Error(routeErr.Err))
		routes, routeErr = e.callProvider(ctx, req)
	}
	if routeErr != nil {
		return nil, routeErr
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, &RouteError{Cause: CauseNoRoute}
	}

	leg := routes[0].Legs[0]
	polyline, err := DecodePolyline(routes[0].OverviewPolyline.Points)
	if err != nil {
		return nil, &RouteError{Cause: CauseNoRoute, Err: fmt.Errorf("undecodable overview polyline: %w", err)}
	}

	return &RouteResult{
		DistanceKm:      float64(leg.Distance.Meters) / 1000.0,
		DurationMinutes: int(math.Round(leg.Duration.Minutes())),
		Polyline:        polyline,
		Source:          SourceProvider,
	}, nil
}

// Fallback builds a straight-line route estimate: a 2-point polyline with
// haversine distance and a duration derived from the configured average
// speed. It is an explicit caller choice (live-tracking polylines that must
// never be empty); fare computation must never consume it.
func (e *Engine) Fallback(pickup, drop geo.Coordinate) *RouteResult {
	distanceKm := geo.HaversineKm(pickup, drop)
	durationMin := int(math.Round(distanceKm / e.fallbackSpeedKmh * 60.0))
	return &RouteResult{
		DistanceKm:      distanceKm,
		DurationMinutes: durationMin,
		Polyline:        []geo.Coordinate{pickup, drop},
		Source:          SourceFallback,
	}
}

func (e *Engine) callProvider(ctx context.Context, req *maps.DirectionsRequest) ([]maps.Route, *RouteError) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	routes, _, err := e.api.Directions(callCtx, req)
	if err != nil {
		return nil, classifyDirectionsError(err)
	}
	return routes, nil
}

// classifyDirectionsError maps provider statuses onto the RouteError
// taxonomy. The maps client reports non-OK API statuses as errors carrying
// the status token.
func classifyDirectionsError(err error) *RouteError {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ZERO_RESULTS"), strings.Contains(msg, "NOT_FOUND"):
		return &RouteError{Cause: CauseNoRoute, Err: err}
	case strings.Contains(msg, "OVER_QUERY_LIMIT"), strings.Contains(msg, "OVER_DAILY_LIMIT"):
		return &RouteError{Cause: CauseQuotaExceeded, Err: err}
	case strings.Contains(msg, "REQUEST_DENIED"):
		return &RouteError{Cause: CauseProviderDenied, Err: err}
	default:
		return &RouteError{Cause: CauseNetwork, Err: err}
	}
}
