package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/urbanfleet/service-booking/internal/application"
	"github.com/urbanfleet/service-booking/internal/common/auth"
	"github.com/urbanfleet/service-booking/internal/common/middleware"
	"github.com/urbanfleet/service-booking/internal/common/response"
)

// BookingHandler exposes the booking lifecycle over HTTP.
type BookingHandler struct {
	bookings *application.BookingService
	jwt      *auth.JWTManager
}

// NewBookingHandler creates the handler.
func NewBookingHandler(bookings *application.BookingService, jwt *auth.JWTManager) *BookingHandler {
	return &BookingHandler{bookings: bookings, jwt: jwt}
}

// RegisterRoutes mounts the booking routes under /api/v1.
func (h *BookingHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(h.jwt))

	api.POST("/quotes", h.Quote)

	bookings := api.Group("/bookings")
	bookings.POST("", h.Create)
	bookings.GET("", h.ListMine)
	bookings.GET("/:id", h.Get)
	bookings.GET("/number/:number", h.GetByNumber)
	bookings.POST("/:id/cancel", h.Cancel)
	bookings.POST("/:id/rebook", h.Rebook)
	bookings.POST("/:id/start", middleware.RequireRole(auth.RoleDriver), h.Start)
	bookings.POST("/:id/complete", middleware.RequireRole(auth.RoleDriver), h.Complete)
}

// Quote prices a trip without creating a booking.
func (h *BookingHandler) Quote(c *gin.Context) {
	var req application.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	quote, err := h.bookings.Quote(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, quote)
}

// Create books a new trip for the authenticated customer.
func (h *BookingHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user identity")
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	booking, err := h.bookings.CreateBooking(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Get returns one booking by id.
func (h *BookingHandler) Get(c *gin.Context) {
	userID, role, id, ok := h.identityAndID(c)
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), id, userID, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, booking)
}

// GetByNumber returns one booking by its customer-facing number.
func (h *BookingHandler) GetByNumber(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user identity")
		return
	}
	role, _ := middleware.GetUserRole(c)

	booking, err := h.bookings.GetBookingByNumber(c.Request.Context(), c.Param("number"), userID, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, booking)
}

// ListMine pages through the authenticated customer's bookings.
func (h *BookingHandler) ListMine(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user identity")
		return
	}

	page, limit := pageParams(c)
	result, err := h.bookings.ListCustomerBookings(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// Cancel cancels a booking with a reason.
func (h *BookingHandler) Cancel(c *gin.Context) {
	userID, role, id, ok := h.identityAndID(c)
	if !ok {
		return
	}

	var req application.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "cancellation reason is required")
		return
	}

	booking, err := h.bookings.CancelBooking(c.Request.Context(), id, userID, role, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, booking)
}

// Rebook creates a fresh booking from an earlier one's trip parameters.
func (h *BookingHandler) Rebook(c *gin.Context) {
	userID, _, id, ok := h.identityAndID(c)
	if !ok {
		return
	}

	booking, err := h.bookings.Rebook(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Start moves a booking to started. Driver only.
func (h *BookingHandler) Start(c *gin.Context) {
	userID, _, id, ok := h.identityAndID(c)
	if !ok {
		return
	}

	booking, err := h.bookings.StartTrip(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, booking)
}

// Complete moves a booking to completed. Driver only.
func (h *BookingHandler) Complete(c *gin.Context) {
	userID, _, id, ok := h.identityAndID(c)
	if !ok {
		return
	}

	booking, err := h.bookings.CompleteTrip(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, booking)
}

func (h *BookingHandler) identityAndID(c *gin.Context) (userID uuid.UUID, role string, id uuid.UUID, ok bool) {
	userID, found := middleware.GetUserID(c)
	if !found {
		response.Unauthorized(c, "missing user identity")
		return userID, role, id, false
	}
	role, _ = middleware.GetUserRole(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return userID, role, id, false
	}
	return userID, role, id, true
}

func pageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}
