package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/urbanfleet/service-booking/internal/application"
	"github.com/urbanfleet/service-booking/internal/common/auth"
	"github.com/urbanfleet/service-booking/internal/common/middleware"
	"github.com/urbanfleet/service-booking/internal/common/response"
)

// PaymentHandler exposes intent creation and settlement over HTTP.
type PaymentHandler struct {
	payments *application.PaymentService
	jwt      *auth.JWTManager
}

// NewPaymentHandler creates the handler.
func NewPaymentHandler(payments *application.PaymentService, jwt *auth.JWTManager) *PaymentHandler {
	return &PaymentHandler{payments: payments, jwt: jwt}
}

// RegisterRoutes mounts the payment routes under /api/v1/payments. The
// webhook endpoint is unauthenticated; the payload signature is its
// credential.
func (h *PaymentHandler) RegisterRoutes(router *gin.Engine) {
	payments := router.Group("/api/v1/payments")

	payments.POST("/webhook", h.Webhook)

	authed := payments.Group("")
	authed.Use(middleware.AuthMiddleware(h.jwt))
	authed.POST("/intent", h.CreateIntent)
	authed.POST("/verify", h.Verify)
}

// CreateIntent opens a gateway order for one slice of a booking's fare.
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user identity")
		return
	}

	var req application.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	intent, err := h.payments.CreateIntent(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, intent)
}

// Verify settles a client checkout confirmation.
func (h *PaymentHandler) Verify(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user identity")
		return
	}

	var req application.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.payments.VerifyPayment(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Webhook settles a gateway-originated confirmation.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req application.PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid webhook payload: "+err.Error())
		return
	}

	result, err := h.payments.HandleWebhook(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
