package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpbridge/internal/broadcast"
	"github.com/imyashkale/mcpbridge/internal/logger"
	"github.com/imyashkale/mcpbridge/internal/registry"
)

// keepaliveInterval is how often a comment frame is written to each open
// stream to defeat idle timeouts.
const keepaliveInterval = 30 * time.Second

// SSEHandler streams server events to subscribed clients
type SSEHandler struct {
	registry *registry.Registry
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(reg *registry.Registry) *SSEHandler {
	return &SSEHandler{registry: reg}
}

// Events handles GET /mcp/events?server=<name>. Every message the child
// emits is forwarded to every subscriber of that server, in emit order.
// The stream is closed from the server side after the exit frame.
func (h *SSEHandler) Events(c *gin.Context) {
	name := c.Query("server")
	if name == "" {
		name = c.GetHeader(ServerNameHeader)
	}

	manager, ok := h.registry.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "server_not_found",
			"message": "no server registered under this name",
		})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "streaming_unsupported",
			"message": "response writer does not support streaming",
		})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	events, cancel := manager.Hub().Subscribe()
	defer cancel()

	connected, _ := json.Marshal(gin.H{"name": name})
	fmt.Fprintf(c.Writer, "event: connected\ndata: %s\n\n", connected)
	flusher.Flush()

	logger.WithField("server", name).Debug("SSE client subscribed")

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			logger.WithField("server", name).Debug("SSE client disconnected")
			return

		case event, open := <-events:
			if !open {
				return
			}
			h.writeEvent(c, flusher, event)
			if event.Type == broadcast.TypeExit {
				return
			}

		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) writeEvent(c *gin.Context, flusher http.Flusher, event broadcast.Event) {
	switch event.Type {
	case broadcast.TypeMessage:
		fmt.Fprintf(c.Writer, "data: %s\n\n", event.Data)
	case broadcast.TypeExit:
		payload, _ := json.Marshal(gin.H{"code": event.Code, "signal": event.Signal})
		fmt.Fprintf(c.Writer, "event: exit\ndata: %s\n\n", payload)
	case broadcast.TypeError:
		payload, _ := json.Marshal(gin.H{"error": event.Err})
		fmt.Fprintf(c.Writer, "event: error\ndata: %s\n\n", payload)
	}
	flusher.Flush()
}
