package booking

import (
	"fmt"
	"math"
	"time"
)

// ServiceType is the kind of trip being booked.
type ServiceType string

const (
	ServiceCity       ServiceType = "city"
	ServiceRental     ServiceType = "rental"
	ServiceOutstation ServiceType = "outstation"
	ServiceAirport    ServiceType = "airport"
)

// IsValid returns true for a recognized service type.
func (s ServiceType) IsValid() bool {
	switch s {
	case ServiceCity, ServiceRental, ServiceOutstation, ServiceAirport:
		return true
	}
	return false
}

// VehicleType is the vehicle class requested for the trip.
type VehicleType string

const (
	VehicleHatchback VehicleType = "hatchback"
	VehicleSedan     VehicleType = "sedan"
	VehicleSUV       VehicleType = "suv"
)

// IsValid returns true for a recognized vehicle type.
func (v VehicleType) IsValid() bool {
	switch v {
	case VehicleHatchback, VehicleSedan, VehicleSUV:
		return true
	}
	return false
}

// PaymentMode selects how much of the fare is collected up front.
type PaymentMode string

const (
	// PaymentModePartial collects the advance now, the rest after the trip.
	PaymentModePartial PaymentMode = "partial"
	// PaymentModeFull collects the whole fare up front.
	PaymentModeFull PaymentMode = "full"
)

// FareBreakdown is the complete fare for a booking. All amounts are integer
// paise. AdvanceAmount + RemainingAmount == TotalFare always holds exactly.
type FareBreakdown struct {
	BaseFare        int64   `json:"base_fare"`
	DistanceFare    int64   `json:"distance_fare"`
	TimeFare        int64   `json:"time_fare"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	SurgeReason     string  `json:"surge_reason,omitempty"`
	TotalFare       int64   `json:"total_fare"`
	AdvanceAmount   int64   `json:"advance_amount"`
	RemainingAmount int64   `json:"remaining_amount"`
}

// Rate is the pricing row for one service type, in paise.
type Rate struct {
	BaseFare  int64
	PerKm     int64
	PerMinute int64
}

// SurgePolicy derives a demand multiplier (>= 1.0) and a display reason for
// a booking at the given time. The concrete demand signal is deployment
// configuration; NeutralSurge is the default.
type SurgePolicy func(at time.Time, serviceType ServiceType) (multiplier float64, reason string)

// NeutralSurge applies no surge.
func NeutralSurge(time.Time, ServiceType) (float64, string) {
	return 1.0, ""
}

// defaultRates is the compiled-in pricing table, overridable via
// CalculatorConfig.
var defaultRates = map[ServiceType]Rate{
	ServiceCity:       {BaseFare: 5000, PerKm: 1200, PerMinute: 150},
	ServiceRental:     {BaseFare: 20000, PerKm: 1000, PerMinute: 100},
	ServiceOutstation: {BaseFare: 30000, PerKm: 1400, PerMinute: 100},
	ServiceAirport:    {BaseFare: 10000, PerKm: 1300, PerMinute: 150},
}

// defaultVehicleMultipliers scale the fare by vehicle class.
var defaultVehicleMultipliers = map[VehicleType]float64{
	VehicleHatchback: 1.0,
	VehicleSedan:     1.15,
	VehicleSUV:       1.4,
}

// Default fare bounds and advance fraction.
const (
	DefaultMinimumFare     int64   = 5000    // ₹50
	DefaultMaximumFare     int64   = 5000000 // ₹50,000
	DefaultAdvanceFraction float64 = 0.25
)

// CalculatorConfig overrides pieces of the default pricing policy. Zero
// values fall back to the defaults.
type CalculatorConfig struct {
	Rates              map[ServiceType]Rate
	VehicleMultipliers map[VehicleType]float64
	MinimumFare        int64
	MaximumFare        int64
	AdvanceFraction    float64
	Surge              SurgePolicy
}

// FareCalculator turns a route and booking parameters into a FareBreakdown.
type FareCalculator struct {
	rates              map[ServiceType]Rate
	vehicleMultipliers map[VehicleType]float64
	minimumFare        int64
	maximumFare        int64
	advanceFraction    float64
	surge              SurgePolicy
}

// NewFareCalculator creates a calculator with the given overrides.
func NewFareCalculator(cfg CalculatorConfig) *FareCalculator {
	c := &FareCalculator{
		rates:              cfg.Rates,
		vehicleMultipliers: cfg.VehicleMultipliers,
		minimumFare:        cfg.MinimumFare,
		maximumFare:        cfg.MaximumFare,
		advanceFraction:    cfg.AdvanceFraction,
		surge:              cfg.Surge,
	}
	if c.rates == nil {
		c.rates = defaultRates
	}
	if c.vehicleMultipliers == nil {
		c.vehicleMultipliers = defaultVehicleMultipliers
	}
	if c.minimumFare <= 0 {
		c.minimumFare = DefaultMinimumFare
	}
	if c.maximumFare <= 0 {
		c.maximumFare = DefaultMaximumFare
	}
	if c.advanceFraction <= 0 || c.advanceFraction > 1 {
		c.advanceFraction = DefaultAdvanceFraction
	}
	if c.surge == nil {
		c.surge = NeutralSurge
	}
	return c
}

// Compute derives the fare for a trip. distanceKm and durationMinutes come
// from the route engine's provider result; the fallback estimate must never
// be fed here.
func (c *FareCalculator) Compute(
	serviceType ServiceType,
	vehicleType VehicleType,
	distanceKm float64,
	durationMinutes int,
	bookingTime time.Time,
	mode PaymentMode,
) (FareBreakdown, error) {
	if !serviceType.IsValid() {
		return FareBreakdown{}, fmt.Errorf("unknown service type: %s", serviceType)
	}
	if !vehicleType.IsValid() {
		return FareBreakdown{}, fmt.Errorf("unknown vehicle type: %s", vehicleType)
	}
	if distanceKm < 0 || durationMinutes < 0 {
		return FareBreakdown{}, fmt.Errorf("distance and duration must be non-negative")
	}
	if c.minimumFare > c.maximumFare {
		return FareBreakdown{}, ErrFareOutOfBounds
	}

	rate, ok := c.rates[serviceType]
	if !ok {
		return FareBreakdown{}, ErrFareOutOfBounds
	}
	if rate.BaseFare < 0 || rate.PerKm < 0 || rate.PerMinute < 0 {
		return FareBreakdown{}, ErrFareOutOfBounds
	}
	vehicleMult := c.vehicleMultipliers[vehicleType]
	if vehicleMult <= 0 {
		vehicleMult = 1.0
	}

	surgeMult, surgeReason := c.surge(bookingTime, serviceType)
	if surgeMult < 1.0 {
		surgeMult = 1.0
	}

	baseFare := roundPaise(float64(rate.BaseFare) * vehicleMult)
	distanceFare := roundPaise(float64(rate.PerKm) * distanceKm * vehicleMult)
	timeFare := roundPaise(float64(rate.PerMinute) * float64(durationMinutes) * vehicleMult)

	rawTotal := float64(baseFare+distanceFare+timeFare) * surgeMult
	totalFare := clamp(roundPaise(rawTotal), c.minimumFare, c.maximumFare)

	breakdown := FareBreakdown{
		BaseFare:        baseFare,
		DistanceFare:    distanceFare,
		TimeFare:        timeFare,
		SurgeMultiplier: surgeMult,
		SurgeReason:     surgeReason,
		TotalFare:       totalFare,
	}
	breakdown.AdvanceAmount, breakdown.RemainingAmount = c.split(totalFare, mode)
	return breakdown, nil
}

// split divides the total into advance and remaining. Rounding drift is
// absorbed by the remaining amount so the two always sum to the total.
func (c *FareCalculator) split(totalFare int64, mode PaymentMode) (advance, remaining int64) {
	if mode == PaymentModeFull {
		return totalFare, 0
	}
	advance = int64(math.Ceil(float64(totalFare) * c.advanceFraction))
	if advance > totalFare {
		advance = totalFare
	}
	return advance, totalFare - advance
}

// roundPaise rounds a fractional paise amount half-up to the nearest unit.
func roundPaise(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
