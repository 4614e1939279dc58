package router

import (
	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpbridge/internal/handlers"
	"github.com/imyashkale/mcpbridge/internal/middleware"
	"github.com/imyashkale/mcpbridge/internal/oauth"
)

// Setup configures and returns the application router
func Setup(
	allowedOrigin string,
	authService *oauth.Service,
	healthHandler *handlers.HealthHandler,
	mcpHandler *handlers.MCPHandler,
	sseHandler *handlers.SSEHandler,
	oauthHandler *handlers.OAuthHandler,
) *gin.Engine {

	// Create a new Gin router
	router := gin.Default()

	// Apply CORS middleware globally
	router.Use(middleware.CORS(allowedOrigin))

	// Liveness probe stays unauthenticated
	router.GET("/health", healthHandler.Check)

	// Server lifecycle and streaming routes
	mcp := router.Group("/mcp")
	mcp.Use(middleware.Authentication(authService))
	{
		mcp.POST("/start", mcpHandler.Start)
		mcp.POST("/stop", mcpHandler.Stop)
		mcp.POST("/command", mcpHandler.Command)
		mcp.GET("/events", sseHandler.Events)
		mcp.GET("/list", mcpHandler.List)
	}

	// Credential and token management routes
	oauthGroup := router.Group("/oauth")
	oauthGroup.Use(middleware.Authentication(authService))
	{
		oauthGroup.POST("/credentials", oauthHandler.SetCredentials)
		oauthGroup.GET("/status", oauthHandler.Status)
		oauthGroup.POST("/refresh", oauthHandler.Refresh)
		oauthGroup.POST("/token", oauthHandler.AddToken)
		oauthGroup.DELETE("/token", oauthHandler.RemoveToken)
	}

	return router
}
