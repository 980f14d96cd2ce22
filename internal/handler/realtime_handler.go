package handler

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-grading-api/internal/realtime"
)

type streamRegistry interface {
	Register(ctx context.Context, userID string) *realtime.Client
	Unregister(ctx context.Context, client *realtime.Client)
}

// RealtimeHandler streams pushed notifications to connected users over server-sent events.
type RealtimeHandler struct {
	registry  streamRegistry
	heartbeat time.Duration
}

// NewRealtimeHandler builds a new handler. A non-positive heartbeat falls back to 25s.
func NewRealtimeHandler(registry streamRegistry, heartbeat time.Duration) *RealtimeHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &RealtimeHandler{registry: registry, heartbeat: heartbeat}
}

// Stream godoc
// @Summary Subscribe to pushed notifications
// @Description Server-sent events. Browsers may pass the bearer token as access_token.
// @Tags Notifications
// @Produce text/event-stream
// @Param access_token query string false "Bearer token for EventSource clients"
// @Success 200
// @Router /realtime/stream [get]
func (h *RealtimeHandler) Stream(c *gin.Context) {
	actor := actorFromContext(c)
	ctx := c.Request.Context()

	client := h.registry.Register(ctx, actor.UserID)
	defer h.registry.Unregister(context.WithoutCancel(ctx), client)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", gin.H{"connection_id": client.ID()})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-client.Events():
			if !ok {
				return false
			}
			c.SSEvent(event.Name, event.Payload)
			return true
		case <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"at": time.Now().UTC().Format(time.RFC3339)})
			return true
		}
	})
}
