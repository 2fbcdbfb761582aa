package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/urbanfleet/service-booking/internal/application"
	"github.com/urbanfleet/service-booking/internal/common/auth"
	"github.com/urbanfleet/service-booking/internal/common/middleware"
	"github.com/urbanfleet/service-booking/internal/common/response"
)

// AdminHandler exposes operational views over every booking.
type AdminHandler struct {
	bookings *application.BookingService
	jwt      *auth.JWTManager
}

// NewAdminHandler creates the handler.
func NewAdminHandler(bookings *application.BookingService, jwt *auth.JWTManager) *AdminHandler {
	return &AdminHandler{bookings: bookings, jwt: jwt}
}

// RegisterRoutes mounts the admin routes under /api/v1/admin.
func (h *AdminHandler) RegisterRoutes(router *gin.Engine) {
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.AuthMiddleware(h.jwt), middleware.RequireRole(auth.RoleAdmin))

	admin.GET("/bookings", h.List)
	admin.GET("/bookings/stats", h.Stats)
}

// List pages through every booking, optionally filtered by status.
func (h *AdminHandler) List(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.bookings.ListAllBookings(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// Stats returns booking counts per status.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.bookings.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}
