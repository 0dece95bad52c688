package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-query-api/internal/realtime"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
	"github.com/noah-isme/loan-query-api/pkg/response"
)

type pushHub interface {
	ServeSSE(w http.ResponseWriter, r *http.Request, heartbeat time.Duration)
	ServeWS(w http.ResponseWriter, r *http.Request, opts realtime.WebSocketOptions)
}

// RealtimeHandler attaches dashboard clients to the push hub.
type RealtimeHandler struct {
	hub            pushHub
	heartbeat      time.Duration
	allowedOrigins []string
}

// NewRealtimeHandler constructs the handler.
func NewRealtimeHandler(hub pushHub, heartbeat time.Duration, allowedOrigins []string) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, heartbeat: heartbeat, allowedOrigins: allowedOrigins}
}

// Events godoc
// @Summary Server-sent workflow events
// @Tags Realtime
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Router /events [get]
func (h *RealtimeHandler) Events(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "realtime hub not configured"))
		return
	}
	h.hub.ServeSSE(c.Writer, c.Request, h.heartbeat)
}

// WebSocket godoc
// @Summary WebSocket workflow events
// @Tags Realtime
// @Success 101 {string} string "switching protocols"
// @Router /ws [get]
func (h *RealtimeHandler) WebSocket(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "realtime hub not configured"))
		return
	}
	h.hub.ServeWS(c.Writer, c.Request, realtime.WebSocketOptions{
		AllowedOrigins: h.allowedOrigins,
		Heartbeat:      h.heartbeat,
	})
}
