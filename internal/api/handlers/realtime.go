package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"webhookrecv/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// keepAliveInterval is how often an idle stream receives a comment line
const keepAliveInterval = 15 * time.Second

// RealtimeHandler handles real-time streaming endpoints
type RealtimeHandler struct {
	feed   *realtime.Feed
	logger *pterm.Logger
}

// NewRealtimeHandler creates a new realtime handler
func NewRealtimeHandler(feed *realtime.Feed, logger *pterm.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		feed:   feed,
		logger: logger,
	}
}

// StreamRequests streams captured requests via Server-Sent Events
func (h *RealtimeHandler) StreamRequests(c *gin.Context) {
	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	events, cancel := h.feed.Subscribe()
	defer cancel()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	h.logger.Debug("Client connected to live stream", h.logger.Args("client_ip", c.ClientIP()))

	// Flush headers so clients see the stream open before the first event
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			h.logger.Debug("Client disconnected from live stream",
				h.logger.Args("client_ip", c.ClientIP()))
			return

		case <-ticker.C:
			if _, err := fmt.Fprint(c.Writer, ": keep-alive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()

		case ev, ok := <-events:
			if !ok {
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("Failed to marshal event", h.logger.Args("error", err))
				continue
			}

			if _, err := fmt.Fprintf(c.Writer, "event: request\ndata: %s\n\n", data); err != nil {
				h.logger.Debug("Failed to write SSE data", h.logger.Args("error", err))
				return
			}
			c.Writer.Flush()
		}
	}
}
