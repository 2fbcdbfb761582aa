package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/urbanfleet/service-booking/internal/common/auth"
	"github.com/urbanfleet/service-booking/internal/common/middleware"
	"github.com/urbanfleet/service-booking/internal/common/response"
	"github.com/urbanfleet/service-booking/internal/realtime"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

// RealtimeHandler bridges the notifier onto WebSocket connections. Each
// connection is subscribed to the caller's own notification topic plus an
// optional booking topic.
type RealtimeHandler struct {
	notifier realtime.Notifier
	jwt      *auth.JWTManager
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewRealtimeHandler creates the handler.
func NewRealtimeHandler(notifier realtime.Notifier, jwt *auth.JWTManager, logger *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		notifier: notifier,
		jwt:      jwt,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *RealtimeHandler) RegisterRoutes(router *gin.Engine) {
	ws := router.Group("/ws")
	ws.Use(middleware.AuthMiddleware(h.jwt))
	ws.GET("", h.Serve)
}

// Serve upgrades the connection and streams realtime events until either
// side closes.
func (h *RealtimeHandler) Serve(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user identity")
		return
	}

	topics := []string{realtime.UserTopic(userID)}
	if raw := c.Query("booking_id"); raw != "" {
		bookingID, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid booking id")
			return
		}
		topics = append(topics, realtime.BookingTopic(bookingID))
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	subs := make([]realtime.Subscription, 0, len(topics))
	merged := make(chan realtime.Event, 32)
	done := make(chan struct{})
	defer close(done)

	for _, topic := range topics {
		sub, err := h.notifier.Subscribe(c.Request.Context(), topic)
		if err != nil {
			h.logger.Error("realtime subscribe failed", zap.String("topic", topic), zap.Error(err))
			for _, s := range subs {
				s.Close()
			}
			return
		}
		subs = append(subs, sub)
		go func(s realtime.Subscription) {
			for event := range s.Events() {
				select {
				case merged <- event:
				case <-done:
					return
				}
			}
		}(sub)
	}
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
	}()

	// drain client frames to process control messages and detect close
	go func() {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event := <-merged:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}
