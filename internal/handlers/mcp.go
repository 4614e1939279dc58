package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpbridge/internal/logger"
	"github.com/imyashkale/mcpbridge/internal/models"
	"github.com/imyashkale/mcpbridge/internal/oauth"
	"github.com/imyashkale/mcpbridge/internal/process"
	"github.com/imyashkale/mcpbridge/internal/registry"
)

// ServerNameHeader identifies the target server on the command endpoint.
const ServerNameHeader = "X-MCP-Server"

// MCPHandler handles server lifecycle and command requests
type MCPHandler struct {
	registry *registry.Registry
	oauth    *oauth.Service
	onExit   process.ExitHandler
}

// NewMCPHandler creates a new MCP handler. onExit is invoked whenever a
// managed child process exits.
func NewMCPHandler(reg *registry.Registry, svc *oauth.Service, onExit process.ExitHandler) *MCPHandler {
	return &MCPHandler{
		registry: reg,
		oauth:    svc,
		onExit:   onExit,
	}
}

// Start handles POST /mcp/start
func (h *MCPHandler) Start(c *gin.Context) {
	var req models.StartServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	if req.Name == "" || req.Command == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "name and command are required",
		})
		return
	}

	// Credentials reach the child through its environment; stdio processes
	// have no network handshake of their own.
	env := h.oauth.InjectEnvironment(req.Name, req.Env)

	manager := process.New(req.Name, req.Command, req.Args, env)
	manager.SetExitHandler(h.onExit)

	if err := h.registry.Add(manager); err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "duplicate_server",
			"message": "a server with this name is already running",
		})
		return
	}

	manager.Start()

	logger.WithFields(map[string]interface{}{
		"server":  req.Name,
		"command": req.Command,
	}).Info("Server start requested")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"name":    req.Name,
	})
}

// Stop handles POST /mcp/stop
func (h *MCPHandler) Stop(c *gin.Context) {
	var req models.StopServerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "name is required",
		})
		return
	}

	if err := h.registry.Remove(req.Name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "server_not_found",
			"message": "no server registered under this name",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Command handles POST /mcp/command. The target server is named in the
// X-MCP-Server header or the server query parameter; the body is an
// arbitrary JSON-RPC message forwarded verbatim to the child's stdin.
// Responses are not correlated here: they appear later on the server's
// event stream, and any timeout policy is the client's responsibility.
func (h *MCPHandler) Command(c *gin.Context) {
	name := c.GetHeader(ServerNameHeader)
	if name == "" {
		name = c.Query("server")
	}
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "server name is required (X-MCP-Server header or server query parameter)",
		})
		return
	}

	manager, ok := h.registry.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "server_not_found",
			"message": "no server registered under this name",
		})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "body must be a JSON-RPC message",
		})
		return
	}

	if err := manager.Send(json.RawMessage(body)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "send_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// List handles GET /mcp/list
func (h *MCPHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, models.ListServersResponse{
		Servers: h.registry.List(),
	})
}
