package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpbridge/internal/oauth"
	"github.com/imyashkale/mcpbridge/internal/registry"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	registry *registry.Registry
	oauth    *oauth.Service
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(reg *registry.Registry, svc *oauth.Service) *HealthHandler {
	return &HealthHandler{registry: reg, oauth: svc}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"servers": h.registry.Count(),
		"oauth":   h.oauth.Summary(),
	})
}
