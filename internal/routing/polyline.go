package routing

import (
	"fmt"
	"math"
	"strings"

	"github.com/urbanfleet/service-booking/internal/domain/geo"
)

// polylineScale is the coordinate precision of the encoded polyline format:
// five decimal places, ~1.1m of resolution.
const polylineScale = 1e5

// EncodePolyline encodes coordinates into the compact polyline format used
// by routing providers: per-axis deltas, zig-zag signed encoding, 5-bit
// groups with a continuation bit, offset into printable ASCII.
func EncodePolyline(points []geo.Coordinate) string {
	var sb strings.Builder
	var prevLat, prevLng int64

	for _, p := range points {
		lat := int64(math.Round(p.Lat * polylineScale))
		lng := int64(math.Round(p.Lng * polylineScale))

		encodeSignedValue(&sb, lat-prevLat)
		encodeSignedValue(&sb, lng-prevLng)

		prevLat, prevLng = lat, lng
	}
	return sb.String()
}

// DecodePolyline decodes an encoded polyline back into coordinates. It is
// the exact inverse of EncodePolyline for coordinates at 1e-5 precision.
func DecodePolyline(encoded string) ([]geo.Coordinate, error) {
	var points []geo.Coordinate
	var lat, lng int64

	i := 0
	for i < len(encoded) {
		dLat, next, err := decodeSignedValue(encoded, i)
		if err != nil {
			return nil, err
		}
		dLng, after, err := decodeSignedValue(encoded, next)
		if err != nil {
			return nil, err
		}
		i = after

		lat += dLat
		lng += dLng
		points = append(points, geo.Coordinate{
			Lat: float64(lat) / polylineScale,
			Lng: float64(lng) / polylineScale,
		})
	}
	return points, nil
}

// encodeSignedValue writes one zig-zag encoded delta as 5-bit groups.
func encodeSignedValue(sb *strings.Builder, v int64) {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((u&0x1f)|0x20) + 63)
		u >>= 5
	}
	sb.WriteByte(byte(u) + 63)
}

// decodeSignedValue reads one zig-zag encoded delta starting at offset i,
// returning the delta and the offset of the next value.
func decodeSignedValue(encoded string, i int) (int64, int, error) {
	var result uint64
	var shift uint

	for {
		if i >= len(encoded) {
			return 0, 0, fmt.Errorf("truncated polyline at offset %d", i)
		}
		b := encoded[i]
		if b < 63 {
			return 0, 0, fmt.Errorf("invalid polyline byte %q at offset %d", b, i)
		}
		chunk := uint64(b - 63)
		i++

		result |= (chunk & 0x1f) << shift
		shift += 5
		if chunk&0x20 == 0 {
			break
		}
	}

	// Undo zig-zag.
	v := int64(result >> 1)
	if result&1 != 0 {
		v = ^v
	}
	return v, i, nil
}
