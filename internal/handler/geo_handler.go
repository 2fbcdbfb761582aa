package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/urbanfleet/service-booking/internal/common/auth"
	"github.com/urbanfleet/service-booking/internal/common/middleware"
	"github.com/urbanfleet/service-booking/internal/common/response"
	"github.com/urbanfleet/service-booking/internal/domain/geo"
	"github.com/urbanfleet/service-booking/internal/geocoding"
)

// GeoHandler exposes reverse geocoding and the service area.
type GeoHandler struct {
	geocoder *geocoding.Geocoder
	geofence *geo.Geofence
	jwt      *auth.JWTManager
}

// NewGeoHandler creates the handler.
func NewGeoHandler(geocoder *geocoding.Geocoder, geofence *geo.Geofence, jwt *auth.JWTManager) *GeoHandler {
	return &GeoHandler{geocoder: geocoder, geofence: geofence, jwt: jwt}
}

// RegisterRoutes mounts the geo routes under /api/v1/geo.
func (h *GeoHandler) RegisterRoutes(router *gin.Engine) {
	geoGroup := router.Group("/api/v1/geo")
	geoGroup.Use(middleware.AuthMiddleware(h.jwt))

	geoGroup.GET("/reverse", h.Reverse)
	geoGroup.GET("/hubs", h.Hubs)
}

type reverseGeocodeResponse struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Address     string  `json:"address"`
	Serviceable bool    `json:"serviceable"`
}

// Reverse resolves a coordinate to a display address and reports whether
// it falls inside the service area.
func (h *GeoHandler) Reverse(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		response.BadRequest(c, "lat query parameter is required")
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		response.BadRequest(c, "lng query parameter is required")
		return
	}

	coord, err := geo.NewCoordinate(lat, lng)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	point := h.geocoder.ReverseGeocode(c.Request.Context(), coord)
	response.Success(c, reverseGeocodeResponse{
		Lat:         point.Lat,
		Lng:         point.Lng,
		Address:     point.Address,
		Serviceable: h.geofence.IsServiceable(coord),
	})
}

type hubResponse struct {
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	RadiusKm float64 `json:"radius_km"`
}

// Hubs lists the serviceable hubs.
func (h *GeoHandler) Hubs(c *gin.Context) {
	hubs := h.geofence.Hubs()
	out := make([]hubResponse, 0, len(hubs))
	for _, hub := range hubs {
		out = append(out, hubResponse{
			Name:     hub.Name,
			Lat:      hub.Center.Lat,
			Lng:      hub.Center.Lng,
			RadiusKm: hub.RadiusKm,
		})
	}
	response.Success(c, out)
}
